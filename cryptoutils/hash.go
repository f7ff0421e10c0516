package cryptoutils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HashSize is the output size of every hash and derived key in this package.
const HashSize = sha256.Size

// hkdfSalt is the fixed salt used for every derivation from the consensus IKM.
// Changing it changes every derived contract identity.
var hkdfSalt, _ = hex.DecodeString("000000000000000000024bead8df69990852c202db0e0097c1a12ea637d7e96d")

// Sha256 hashes data.
func Sha256(data []byte) [HashSize]byte {
	return sha256.Sum256(data)
}

// DeriveKey derives a 32-byte sub-key from ikm using HKDF-SHA256, with info
// binding the sub-key to its purpose.
func DeriveKey(ikm []byte, info []byte) ([HashSize]byte, error) {
	var key [HashSize]byte
	if len(ikm) == 0 {
		return key, fmt.Errorf("empty input key material")
	}

	reader := hkdf.New(sha256.New, ikm, hkdfSalt, info)
	if _, err := io.ReadFull(reader, key[:]); err != nil {
		return key, fmt.Errorf("hkdf expand: %w", err)
	}
	return key, nil
}

// DeriveSubKey is DeriveKey for fixed-size key material. HKDF cannot fail for a
// non-empty IKM and a single hash-sized output block.
func DeriveSubKey(ikm [HashSize]byte, info []byte) [HashSize]byte {
	var key [HashSize]byte
	reader := hkdf.New(sha256.New, ikm[:], hkdfSalt, info)
	_, _ = io.ReadFull(reader, key[:])
	return key
}

// HmacSha256 computes HMAC-SHA256(key, data).
func HmacSha256(key []byte, data []byte) [HashSize]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)

	var out [HashSize]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// Zeroize overwrites sensitive material in place.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
