package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"
)

const (
	// Secp256k1PubKeySize is the size of a compressed secp256k1 public key.
	Secp256k1PubKeySize = 33

	// Secp256k1SignatureSize is the size of an R || S transaction signature.
	Secp256k1SignatureSize = 64

	// RecoverableSignatureSize is the size of an R || S || V enclave signature.
	RecoverableSignatureSize = crypto.SignatureLength
)

var (
	ErrInvalidPubKey    = errors.New("invalid secp256k1 public key")
	ErrInvalidSignature = errors.New("invalid secp256k1 signature")
)

// Secp256k1PubKey is a compressed secp256k1 public key as carried in transaction signatures.
type Secp256k1PubKey []byte

// Validate checks the key is a well formed compressed point.
func (pk Secp256k1PubKey) Validate() error {
	if len(pk) != Secp256k1PubKeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPubKey, Secp256k1PubKeySize, len(pk))
	}
	if _, err := crypto.DecompressPubkey(pk); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPubKey, err)
	}
	return nil
}

// Address returns RIPEMD160(SHA256(pk)), the canonical account address of the key.
func (pk Secp256k1PubKey) Address() []byte {
	sha := sha256.Sum256(pk)
	hasher := ripemd160.New()
	hasher.Write(sha[:])
	return hasher.Sum(nil)
}

// VerifyBytes checks that sig is a valid low-S signature over SHA256(msg).
func (pk Secp256k1PubKey) VerifyBytes(msg []byte, sig []byte) error {
	if err := pk.Validate(); err != nil {
		return err
	}
	if len(sig) != Secp256k1SignatureSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, Secp256k1SignatureSize, len(sig))
	}

	digest := sha256.Sum256(msg)
	if !crypto.VerifySignature(pk, digest[:], sig) {
		return ErrInvalidSignature
	}
	return nil
}

// PubKeyFromPrivate returns the compressed public key of a secp256k1 private key.
func PubKeyFromPrivate(key *ecdsa.PrivateKey) Secp256k1PubKey {
	return crypto.CompressPubkey(&key.PublicKey)
}

// SignBytes produces the 64-byte transaction signature over SHA256(msg).
func SignBytes(key *ecdsa.PrivateKey, msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, err
	}
	return sig[:Secp256k1SignatureSize], nil
}

// SignDigest produces a 65-byte recoverable signature over a 32-byte digest.
func SignDigest(key *ecdsa.PrivateKey, digest [HashSize]byte) ([RecoverableSignatureSize]byte, error) {
	var out [RecoverableSignatureSize]byte
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return out, fmt.Errorf("could not sign digest: %w", err)
	}
	copy(out[:], sig)
	return out, nil
}

// RecoverSigner returns the public key that produced a recoverable signature.
func RecoverSigner(digest [HashSize]byte, sig [RecoverableSignatureSize]byte) (*ecdsa.PublicKey, error) {
	return crypto.SigToPub(digest[:], sig[:])
}

// PrivateKeyFromSeed turns 32 bytes of derived material into a secp256k1 key.
func PrivateKeyFromSeed(seed [HashSize]byte) (*ecdsa.PrivateKey, error) {
	return crypto.ToECDSA(seed[:])
}

// GenerateSecp256k1Key creates a fresh random key.
func GenerateSecp256k1Key() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}
