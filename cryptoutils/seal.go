package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
)

const sealNonceSize = 12

// SealSeed encrypts a seed to a P-256 sealing public key (PEM, PKIX).
// ECDH with a fresh ephemeral key, SHA-256 of the shared secret as AES-256-GCM key.
//
// Format: [ephemeral key length:2][ephemeral key][nonce:12][ciphertext+tag]
func SealSeed(publicKeyPEM []byte, seed []byte) ([]byte, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, errors.New("failed to decode public key PEM")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	ecdsaKey, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("not an ECDSA public key")
	}

	recipient, err := ecdsaKey.ECDH()
	if err != nil {
		return nil, fmt.Errorf("unsupported sealing key: %w", err)
	}

	ephemeral, err := recipient.Curve().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	shared, err := ephemeral.ECDH(recipient)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}

	aead, err := sealingAEAD(shared)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, sealNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ephemeralBytes := ephemeral.PublicKey().Bytes()
	ciphertext := aead.Seal(nil, nonce, seed, nil)

	out := make([]byte, 0, 2+len(ephemeralBytes)+len(nonce)+len(ciphertext))
	out = binary.BigEndian.AppendUint16(out, uint16(len(ephemeralBytes)))
	out = append(out, ephemeralBytes...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// UnsealSeed reverses SealSeed with the sealing private key (PEM, SEC1 or PKCS8).
func UnsealSeed(privateKeyPEM []byte, sealed []byte) ([]byte, error) {
	privateKey, err := parseSealingPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}

	if len(sealed) < 2 {
		return nil, errors.New("sealed seed too short")
	}

	keyLen := int(binary.BigEndian.Uint16(sealed[0:2]))
	if len(sealed) < 2+keyLen+sealNonceSize {
		return nil, errors.New("sealed seed has invalid format")
	}

	ephemeral, err := privateKey.Curve().NewPublicKey(sealed[2 : 2+keyLen])
	if err != nil {
		return nil, fmt.Errorf("failed to parse ephemeral public key: %w", err)
	}

	shared, err := privateKey.ECDH(ephemeral)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}

	aead, err := sealingAEAD(shared)
	if err != nil {
		return nil, err
	}

	nonce := sealed[2+keyLen : 2+keyLen+sealNonceSize]
	seed, err := aead.Open(nil, nonce, sealed[2+keyLen+sealNonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal: %w", err)
	}
	return seed, nil
}

// NewSealingKeypair generates a P-256 sealing keypair, returned as PEM.
func NewSealingKeypair() (publicKeyPEM []byte, privateKeyPEM []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	privBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, err
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	publicKeyPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	privateKeyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes})
	return publicKeyPEM, privateKeyPEM, nil
}

func parseSealingPrivateKey(privateKeyPEM []byte) (*ecdh.PrivateKey, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, errors.New("failed to decode private key PEM")
	}

	var ecdsaKey *ecdsa.PrivateKey
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		ecdsaKey = key
	} else {
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		key, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, errors.New("not an ECDSA private key")
		}
		ecdsaKey = key
	}

	return ecdsaKey.ECDH()
}

func sealingAEAD(shared []byte) (cipher.AEAD, error) {
	key := sha256.Sum256(shared)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
