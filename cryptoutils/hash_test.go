package cryptoutils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/hkdf"
)

func TestSha256(t *testing.T) {
	got := Sha256([]byte("abc"))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hex.EncodeToString(got[:]))
}

func TestDeriveKey(t *testing.T) {
	ikm := []byte("0123456789abcdef0123456789abcdef")

	k1, err := DeriveKey(ikm, []byte("info-a"))
	require.NoError(t, err)
	k2, err := DeriveKey(ikm, []byte("info-a"))
	require.NoError(t, err)
	k3, err := DeriveKey(ikm, []byte("info-b"))
	require.NoError(t, err)

	assert.Equal(t, k1, k2, "derivation must be deterministic")
	assert.NotEqual(t, k1, k3, "different info must yield different keys")

	// Independent HKDF with the same salt must agree.
	salt, err := hex.DecodeString("000000000000000000024bead8df69990852c202db0e0097c1a12ea637d7e96d")
	require.NoError(t, err)
	var expected [32]byte
	_, err = hkdf.New(sha256.New, ikm, salt, []byte("info-a")).Read(expected[:])
	require.NoError(t, err)
	assert.Equal(t, expected, k1)

	var fixed [32]byte
	copy(fixed[:], ikm)
	assert.Equal(t, k1, DeriveSubKey(fixed, []byte("info-a")))

	_, err = DeriveKey(nil, []byte("info"))
	assert.Error(t, err, "empty ikm must be rejected")
}

func TestHmacSha256(t *testing.T) {
	key := []byte("key")
	data := []byte("The quick brown fox jumps over the lazy dog")

	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	assert.Equal(t, mac.Sum(nil), func() []byte { h := HmacSha256(key, data); return h[:] }())
}

func TestZeroize(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	Zeroize(buf)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf)
}
