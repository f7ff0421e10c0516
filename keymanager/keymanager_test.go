package keymanager

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/secret-contract-enclave/cryptoutils"
	"github.com/ruteri/secret-contract-enclave/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomSeed(t *testing.T) []byte {
	seed := make([]byte, SeedSize)
	_, err := rand.Read(seed)
	require.NoError(t, err, "Failed to generate test seed")
	return seed
}

type testAdmin struct {
	id        string
	key       *ecdsa.PrivateKey
	pubKeyPEM []byte
}

func newTestAdmins(t *testing.T, n int) []testAdmin {
	admins := make([]testAdmin, n)
	for i := range admins {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		require.NoError(t, err)
		admins[i] = testAdmin{
			id:        string(rune('a' + i)),
			key:       key,
			pubKeyPEM: pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}),
		}
	}
	return admins
}

func adminConfig(admins []testAdmin, threshold int) ShamirConfig {
	config := ShamirConfig{Threshold: threshold, AdminPubKeys: make(map[string][]byte)}
	for _, admin := range admins {
		config.AdminPubKeys[admin.id] = admin.pubKeyPEM
	}
	return config
}

func TestNewFromSeed(t *testing.T) {
	seed := randomSeed(t)

	km, err := NewFromSeed(seed)
	require.NoError(t, err)
	assert.True(t, km.IsUnlocked())

	ikm, err := km.ConsensusStateIKM()
	require.NoError(t, err)
	assert.Equal(t, seed, ikm[:])

	// The key manager keeps its own copy.
	seed[0] ^= 0xFF
	ikm2, err := km.ConsensusStateIKM()
	require.NoError(t, err)
	assert.Equal(t, ikm, ikm2)

	_, err = NewFromSeed(make([]byte, 16))
	assert.ErrorIs(t, err, ErrInvalidSeed)
	_, err = NewFromSeed(make([]byte, 64))
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestNewFromShares(t *testing.T) {
	seed := randomSeed(t)
	shares, err := Split(seed, 5, 3)
	require.NoError(t, err)
	require.Len(t, shares, 5)

	km, err := NewFromShares(shares[1:4])
	require.NoError(t, err)
	ikm, err := km.ConsensusStateIKM()
	require.NoError(t, err)
	assert.Equal(t, seed, ikm[:])

	_, err = NewFromShares(shares[:1])
	assert.Error(t, err, "a single share cannot be combined")

	_, err = Split(seed, 5, 1)
	assert.Error(t, err, "threshold below 2 must be rejected")
}

func TestNewFromSealedSeed(t *testing.T) {
	seed := randomSeed(t)
	pubPEM, privPEM, err := cryptoutils.NewSealingKeypair()
	require.NoError(t, err)

	sealed, err := cryptoutils.SealSeed(pubPEM, seed)
	require.NoError(t, err)

	km, err := NewFromSealedSeed(privPEM, sealed)
	require.NoError(t, err)
	ikm, err := km.ConsensusStateIKM()
	require.NoError(t, err)
	assert.Equal(t, seed, ikm[:])

	_, otherPriv, err := cryptoutils.NewSealingKeypair()
	require.NoError(t, err)
	_, err = NewFromSealedSeed(otherPriv, sealed)
	assert.Error(t, err)
}

func TestLockedKeyManager(t *testing.T) {
	km, err := NewLocked(ShamirConfig{})
	require.NoError(t, err)
	assert.False(t, km.IsUnlocked())

	_, err = km.ConsensusStateIKM()
	assert.ErrorIs(t, err, interfaces.ErrKeyManagerUnavailable)
	_, err = km.CallbackKey()
	assert.ErrorIs(t, err, interfaces.ErrKeyManagerUnavailable)
	_, err = km.SigningKey()
	assert.ErrorIs(t, err, interfaces.ErrKeyManagerUnavailable)

	admins := newTestAdmins(t, 2)
	_, err = NewLocked(adminConfig(admins, 3))
	assert.Error(t, err, "threshold larger than admin count must be rejected")
	_, err = NewLocked(adminConfig(admins, 1))
	assert.Error(t, err, "threshold below 2 must be rejected")
}

func TestSubmitShares(t *testing.T) {
	seed := randomSeed(t)
	admins := newTestAdmins(t, 5)
	shares, err := Split(seed, 5, 3)
	require.NoError(t, err)

	km, err := NewLocked(adminConfig(admins, 3))
	require.NoError(t, err)

	// Unknown admin
	sig, err := SignShare(shares[0], admins[0].key)
	require.NoError(t, err)
	assert.ErrorIs(t, km.SubmitShare("nobody", shares[0], sig), ErrUnknownAdmin)

	// Signature by a different admin
	assert.Error(t, km.SubmitShare(admins[1].id, shares[0], sig))
	assert.Equal(t, 0, km.ReceivedShares())

	for i := 0; i < 2; i++ {
		sig, err := SignShare(shares[i], admins[i].key)
		require.NoError(t, err)
		require.NoError(t, km.SubmitShare(admins[i].id, shares[i], sig))
		assert.False(t, km.IsUnlocked(), "should stay locked below threshold")
	}

	// Resubmission by the same admin does not count twice.
	sig, err = SignShare(shares[1], admins[1].key)
	require.NoError(t, err)
	require.NoError(t, km.SubmitShare(admins[1].id, shares[1], sig))
	assert.Equal(t, 2, km.ReceivedShares())
	assert.False(t, km.IsUnlocked())

	sig, err = SignShare(shares[4], admins[4].key)
	require.NoError(t, err)
	require.NoError(t, km.SubmitShare(admins[4].id, shares[4], sig))
	assert.True(t, km.IsUnlocked())
	assert.Equal(t, 0, km.ReceivedShares(), "shares should be wiped after reconstruction")

	ikm, err := km.ConsensusStateIKM()
	require.NoError(t, err)
	assert.Equal(t, seed, ikm[:])

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, km.WaitUnlocked(ctx))

	sig, err = SignShare(shares[2], admins[2].key)
	require.NoError(t, err)
	assert.ErrorIs(t, km.SubmitShare(admins[2].id, shares[2], sig), ErrAlreadyUnlocked)
}

func TestWaitUnlockedCancelled(t *testing.T) {
	km, err := NewLocked(ShamirConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, km.WaitUnlocked(ctx), context.DeadlineExceeded)
}

func TestDerivedKeys(t *testing.T) {
	seed := randomSeed(t)
	km1, err := NewFromSeed(seed)
	require.NoError(t, err)
	km2, err := NewFromSeed(seed)
	require.NoError(t, err)

	cb1, err := km1.CallbackKey()
	require.NoError(t, err)
	cb2, err := km2.CallbackKey()
	require.NoError(t, err)
	assert.Equal(t, cb1, cb2, "callback key must be deterministic in the seed")

	sk1, err := km1.SigningKey()
	require.NoError(t, err)
	sk2, err := km2.SigningKey()
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(sk1.PublicKey), crypto.PubkeyToAddress(sk2.PublicKey))

	ikm, err := km1.ConsensusStateIKM()
	require.NoError(t, err)
	assert.NotEqual(t, ikm[:], cb1[:], "callback key must not expose the IKM")
}

func TestZero(t *testing.T) {
	km, err := NewFromSeed(randomSeed(t))
	require.NoError(t, err)

	km.Zero()
	assert.False(t, km.IsUnlocked())
	_, err = km.ConsensusStateIKM()
	assert.ErrorIs(t, err, interfaces.ErrKeyManagerUnavailable)
}

func TestConcurrentReaders(t *testing.T) {
	km, err := NewFromSeed(randomSeed(t))
	require.NoError(t, err)
	expected, err := km.ConsensusStateIKM()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ikm, err := km.ConsensusStateIKM()
				assert.NoError(t, err)
				assert.Equal(t, expected, ikm)
			}
		}()
	}
	wg.Wait()
}

func TestLoadAdminKeys(t *testing.T) {
	admins := newTestAdmins(t, 2)

	var config AdminsConfig
	for _, admin := range admins {
		config.Admins = append(config.Admins, AdminMetadata{ID: admin.id, PubKey: string(admin.pubKeyPEM)})
	}
	data, err := json.Marshal(config)
	require.NoError(t, err)

	keys, err := LoadAdminKeys(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Equal(t, admins[0].pubKeyPEM, keys[admins[0].id])

	_, err = LoadAdminKeys(bytes.NewReader([]byte(`{"admins":[{"id":"x","pubkey":"garbage"}]}`)))
	assert.Error(t, err)
}

func TestAdminID(t *testing.T) {
	admins := newTestAdmins(t, 2)
	id := AdminID(admins[0].pubKeyPEM)
	assert.Len(t, id, 64)
	assert.Equal(t, id, AdminID(admins[0].pubKeyPEM))
	assert.NotEqual(t, id, AdminID(admins[1].pubKeyPEM))
}
