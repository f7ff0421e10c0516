package cryptoutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealUnsealSeed(t *testing.T) {
	pubPEM, privPEM, err := NewSealingKeypair()
	require.NoError(t, err)

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "32 byte seed", data: make([]byte, 32)},
		{name: "random bytes", data: []byte{0x00, 0x01, 0x02, 0xFF, 0xFE}},
		{name: "long data", data: make([]byte, 1024)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := SealSeed(pubPEM, tc.data)
			require.NoError(t, err)
			assert.NotEqual(t, tc.data, sealed)

			unsealed, err := UnsealSeed(privPEM, sealed)
			require.NoError(t, err)
			assert.Equal(t, tc.data, unsealed)
		})
	}
}

func TestUnsealSeedFailures(t *testing.T) {
	pubPEM, privPEM, err := NewSealingKeypair()
	require.NoError(t, err)
	_, otherPriv, err := NewSealingKeypair()
	require.NoError(t, err)

	sealed, err := SealSeed(pubPEM, []byte("seed"))
	require.NoError(t, err)

	_, err = UnsealSeed(otherPriv, sealed)
	assert.Error(t, err, "wrong key must fail")

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xFF
	_, err = UnsealSeed(privPEM, tampered)
	assert.Error(t, err, "tampered ciphertext must fail")

	_, err = UnsealSeed(privPEM, []byte{0x00})
	assert.Error(t, err)

	_, err = SealSeed([]byte("not pem"), []byte("seed"))
	assert.Error(t, err)
}
