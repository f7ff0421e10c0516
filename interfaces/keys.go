package interfaces

import (
	"encoding/hex"
	"errors"
)

// ErrKeyManagerUnavailable is returned whenever the consensus state IKM cannot be read,
// e.g. because the key manager has not been bootstrapped yet.
var ErrKeyManagerUnavailable = errors.New("key manager unavailable")

// IKM is the consensus state input key material every contract key is derived from.
type IKM [HashSize]byte

// KeyManager gives read access to the enclave's long-lived secret material.
// Implementations must allow concurrent readers.
type KeyManager interface {
	// ConsensusStateIKM returns the master IKM or ErrKeyManagerUnavailable.
	ConsensusStateIKM() (IKM, error)
}

// SenderID is HASH(sender || be(block height)).
type SenderID [HashSize]byte

// ContractHash is the SHA-256 content hash of contract code.
type ContractHash [HashSize]byte

// String returns the lowercase hex encoding used in message prefixes.
func (h ContractHash) String() string {
	return hex.EncodeToString(h[:])
}

// AuthenticationTag binds a sender id to a code hash and contract address.
type AuthenticationTag [HashSize]byte

// ContractKey is sender id || authentication tag.
type ContractKey [ContractKeyLength]byte

// NewContractKey assembles a contract key from its halves.
func NewContractKey(senderID SenderID, tag AuthenticationTag) ContractKey {
	var key ContractKey
	copy(key[:HashSize], senderID[:])
	copy(key[HashSize:], tag[:])
	return key
}

// SenderID returns the first half of the key.
func (k ContractKey) SenderID() SenderID {
	var id SenderID
	copy(id[:], k[:HashSize])
	return id
}

// AuthenticationTag returns the second half of the key.
func (k ContractKey) AuthenticationTag() AuthenticationTag {
	var tag AuthenticationTag
	copy(tag[:], k[HashSize:])
	return tag
}

// EncryptionKey is the symmetric key material handed to the execution layer.
// It has the same layout as a ContractKey.
type EncryptionKey [ContractKeyLength]byte

// ContractKey reinterprets the encryption key as the contract key the host persists.
func (k EncryptionKey) ContractKey() ContractKey {
	return ContractKey(k)
}
