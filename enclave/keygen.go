package enclave

import (
	"time"

	"github.com/ruteri/secret-contract-enclave/cryptoutils"
	"github.com/ruteri/secret-contract-enclave/ffi"
	"github.com/ruteri/secret-contract-enclave/metrics"
)

const entrypointKeyGen = "keygen"

// GenerateKey creates a fresh secp256k1 node key that never leaves the
// enclave. The output is its compressed public key, signed by the enclave
// signing key. A later call replaces the node key.
func (e *Enclave) GenerateKey() (result ffi.KeyGenResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("key generation panicked", "panic", r)
			result = ffi.KeyGenFailure(ffi.CryptoError{Kind: ffi.CryptoImpossibleError})
		}
		status := "success"
		if !result.IsSuccess() {
			status = "failure"
		}
		metrics.Ecall(entrypointKeyGen, status, time.Since(start))
	}()

	key, err := cryptoutils.GenerateSecp256k1Key()
	if err != nil {
		e.log.Error("could not generate node key", "err", err)
		return ffi.KeyGenFailure(ffi.CryptoError{Kind: ffi.CryptoKeyError, KeyType: "secp256k1"})
	}

	pubKey := cryptoutils.PubKeyFromPrivate(key)

	signingKey, err := e.km.SigningKey()
	if err != nil {
		e.log.Error("enclave signing key unavailable", "err", err)
		return ffi.KeyGenFailure(ffi.CryptoError{Kind: ffi.CryptoDerivationError, KeyType: "enclave-signing"})
	}

	sig, err := cryptoutils.SignDigest(signingKey, ffi.KeyGenDigest(pubKey))
	if err != nil {
		e.log.Error("could not sign node key", "err", err)
		return ffi.KeyGenFailure(ffi.CryptoError{Kind: ffi.CryptoSigningError, KeyType: "enclave-signing"})
	}

	buf, err := e.memory.NewUserSpaceBuffer(pubKey)
	if err != nil {
		e.log.Error("could not allocate output buffer", "err", err)
		return ffi.KeyGenFailure(ffi.CryptoError{Kind: ffi.CryptoImpossibleError})
	}

	e.nodeKeyMu.Lock()
	e.nodeKey = key
	e.nodeKeyMu.Unlock()

	return ffi.KeyGenSuccess(buf, ffi.Signature(sig))
}

// NodePublicKey returns the compressed public key of the current node key, or
// nil before the first GenerateKey.
func (e *Enclave) NodePublicKey() cryptoutils.Secp256k1PubKey {
	e.nodeKeyMu.Lock()
	defer e.nodeKeyMu.Unlock()
	if e.nodeKey == nil {
		return nil
	}
	return cryptoutils.PubKeyFromPrivate(e.nodeKey)
}
