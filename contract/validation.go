package contract

import (
	"crypto/hmac"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/ruteri/secret-contract-enclave/cryptoutils"
	"github.com/ruteri/secret-contract-enclave/ffi"
	"github.com/ruteri/secret-contract-enclave/interfaces"
)

// HexEncodedHashSize is the length of the code hash prefix of every inbound message.
const HexEncodedHashSize = interfaces.HashSize * 2

// Validator authenticates contract keys and call parameters against the IKM
// held by the key manager.
type Validator struct {
	km        interfaces.KeyManager
	callbacks CallbackSigner
	log       *slog.Logger
}

// NewValidator creates a validator. callbacks may be nil, in which case every
// callback signature is rejected.
func NewValidator(km interfaces.KeyManager, callbacks CallbackSigner, log *slog.Logger) *Validator {
	return &Validator{
		km:        km,
		callbacks: callbacks,
		log:       log,
	}
}

// ExtractContractKey decodes the base64 contract key carried in env. Anything
// but exactly ContractKeyLength decoded bytes is rejected.
func (v *Validator) ExtractContractKey(env interfaces.Env) (interfaces.ContractKey, error) {
	if env.ContractKey == nil {
		v.log.Error("contract call without a contract key")
		return interfaces.ContractKey{}, ffi.ErrFailedContractAuthentication
	}

	decoded, err := base64.StdEncoding.DecodeString(*env.ContractKey)
	if err != nil {
		v.log.Error("could not decode contract key", "err", err)
		return interfaces.ContractKey{}, ffi.ErrFailedContractAuthentication
	}

	if len(decoded) != interfaces.ContractKeyLength {
		v.log.Error("contract key has wrong length", "length", len(decoded))
		return interfaces.ContractKey{}, ffi.ErrFailedContractAuthentication
	}

	var key interfaces.ContractKey
	copy(key[:], decoded)
	return key, nil
}

// ValidateContractKey recomputes the tag for the sender id embedded in key and
// compares it with the tag in key. It never fails: any problem, including an
// unavailable key manager, yields false.
func (v *Validator) ValidateContractKey(key interfaces.ContractKey, contractAddress []byte, code []byte) bool {
	valid, err := v.ValidateContractKeyErr(key, contractAddress, code)
	if err != nil {
		v.log.Error("could not validate contract key", "err", err)
		return false
	}
	return valid
}

// ValidateContractKeyErr is ValidateContractKey for callers that need to tell a
// mismatch apart from an unavailable key manager.
func (v *Validator) ValidateContractKeyErr(key interfaces.ContractKey, contractAddress []byte, code []byte) (bool, error) {
	ikm, err := v.km.ConsensusStateIKM()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ffi.ErrKeyManagerUnavailable, err)
	}
	defer cryptoutils.Zeroize(ikm[:])

	senderID := key.SenderID()
	expected := key.AuthenticationTag()

	calculated := GenerateContractID(ikm, senderID, CalcContractHash(code), contractAddress)
	return hmac.Equal(calculated[:], expected[:]), nil
}

// ValidateMsg checks that msg starts with the hex encoded hash of code and
// returns what follows the prefix.
func (v *Validator) ValidateMsg(msg []byte, code []byte) ([]byte, error) {
	if len(msg) < HexEncodedHashSize {
		v.log.Error("malformed message, expected the contract code hash prefix", "length", len(msg))
		return nil, ffi.ErrValidationFailure
	}

	decoded, err := hex.DecodeString(string(msg[:HexEncodedHashSize]))
	if err != nil {
		v.log.Error("message has a malformed contract hash prefix")
		return nil, ffi.ErrValidationFailure
	}

	codeHash := CalcContractHash(code)
	if !hmac.Equal(decoded, codeHash[:]) {
		v.log.Error("message contract hash does not match the contract code", "codeHash", codeHash.String())
		return nil, ffi.ErrValidationFailure
	}

	payload := make([]byte, len(msg)-HexEncodedHashSize)
	copy(payload, msg[HexEncodedHashSize:])
	return payload, nil
}
