package contract

import (
	"github.com/ruteri/secret-contract-enclave/cryptoutils"
	"github.com/ruteri/secret-contract-enclave/interfaces"
)

// CallbackSigner produces the MAC a contract attaches to messages it sends to
// other contracts. The execution layer signs with it and VerifyParams checks with it.
type CallbackSigner interface {
	CreateCallbackSignature(sender interfaces.CanonicalAddr, msg interfaces.SecretMessage) ([]byte, error)
}

// CallbackKeyProvider supplies the callback MAC key, see keymanager.KeyManager.CallbackKey.
type CallbackKeyProvider interface {
	CallbackKey() ([cryptoutils.HashSize]byte, error)
}

// HmacCallbackSigner computes callback signatures under a key derived from the IKM.
type HmacCallbackSigner struct {
	keys CallbackKeyProvider
}

func NewCallbackSigner(keys CallbackKeyProvider) *HmacCallbackSigner {
	return &HmacCallbackSigner{keys: keys}
}

// CreateCallbackSignature returns HMAC-SHA256(callback key, sender || msg).
func (s *HmacCallbackSigner) CreateCallbackSignature(sender interfaces.CanonicalAddr, msg interfaces.SecretMessage) ([]byte, error) {
	key, err := s.keys.CallbackKey()
	if err != nil {
		return nil, err
	}
	defer cryptoutils.Zeroize(key[:])

	sig := CreateCallbackSignature(key, sender, msg)
	return sig[:], nil
}

// CreateCallbackSignature is the callback MAC construction.
func CreateCallbackSignature(key [cryptoutils.HashSize]byte, sender interfaces.CanonicalAddr, msg interfaces.SecretMessage) [cryptoutils.HashSize]byte {
	input := make([]byte, 0, len(sender)+len(msg))
	input = append(input, sender...)
	input = append(input, msg...)
	return cryptoutils.HmacSha256(key[:], input)
}
