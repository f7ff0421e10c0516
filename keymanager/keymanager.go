package keymanager

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/shamir"
	"github.com/ruteri/secret-contract-enclave/cryptoutils"
	"github.com/ruteri/secret-contract-enclave/interfaces"
	"go.uber.org/atomic"
)

// SeedSize is the size of the consensus seed the IKM is loaded from.
const SeedSize = interfaces.HashSize

var (
	callbackKeyInfo = []byte("contract-callback-key")
	signingKeyInfo  = []byte("enclave-signing")

	ErrInvalidSeed     = fmt.Errorf("seed must be exactly %d bytes", SeedSize)
	ErrAlreadyUnlocked = errors.New("key manager is already unlocked")
)

// KeyManager holds the consensus state IKM. It is either created unlocked from
// a seed, or locked and unlocked later by combining admin-submitted Shamir shares.
//
// After unlocking the IKM is immutable; readers only take the read lock.
type KeyManager struct {
	mu       sync.RWMutex
	ikm      *interfaces.IKM
	unlocked atomic.Bool
	done     chan struct{}

	threshold      int
	adminPubKeys   map[string][]byte
	receivedShares map[string][]byte
}

// ShamirConfig configures a locked key manager that accepts shares from admins.
type ShamirConfig struct {
	// Threshold is the number of shares needed to reconstruct the seed.
	Threshold int
	// AdminPubKeys maps admin ID to its P-256 public key in PEM format.
	AdminPubKeys map[string][]byte
}

// NewFromSeed creates an unlocked key manager. The seed is copied.
func NewFromSeed(seed []byte) (*KeyManager, error) {
	if len(seed) != SeedSize {
		return nil, ErrInvalidSeed
	}

	km := newKeyManager()
	km.unlock(seed)
	return km, nil
}

// NewFromShares combines Shamir shares into the seed and creates an unlocked key manager.
func NewFromShares(shares [][]byte) (*KeyManager, error) {
	seed, err := shamir.Combine(shares)
	if err != nil {
		return nil, fmt.Errorf("failed to combine shares: %w", err)
	}
	defer cryptoutils.Zeroize(seed)

	return NewFromSeed(seed)
}

// NewFromSealedSeed unseals the seed with the sealing private key (PEM).
func NewFromSealedSeed(sealingKeyPEM []byte, sealed []byte) (*KeyManager, error) {
	seed, err := cryptoutils.UnsealSeed(sealingKeyPEM, sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal seed: %w", err)
	}
	defer cryptoutils.Zeroize(seed)

	return NewFromSeed(seed)
}

// NewLocked creates a key manager that stays unavailable until Threshold
// admins have submitted valid shares. A zero config never unlocks.
func NewLocked(config ShamirConfig) (*KeyManager, error) {
	if len(config.AdminPubKeys) > 0 {
		if config.Threshold < 2 {
			return nil, errors.New("threshold must be at least 2")
		}
		if len(config.AdminPubKeys) < config.Threshold {
			return nil, errors.New("total shares must be at least equal to threshold")
		}
	}

	km := newKeyManager()
	km.threshold = config.Threshold
	for adminID, pubKeyPEM := range config.AdminPubKeys {
		if _, err := ParseAdminPubKey(pubKeyPEM); err != nil {
			return nil, fmt.Errorf("invalid admin pubkey for %s: %w", adminID, err)
		}
		km.adminPubKeys[adminID] = pubKeyPEM
	}
	return km, nil
}

func newKeyManager() *KeyManager {
	return &KeyManager{
		done:           make(chan struct{}),
		adminPubKeys:   make(map[string][]byte),
		receivedShares: make(map[string][]byte),
	}
}

// unlock must be called with mu held for writing, or before the key manager is shared.
func (k *KeyManager) unlock(seed []byte) {
	var ikm interfaces.IKM
	copy(ikm[:], seed)
	k.ikm = &ikm
	k.unlocked.Store(true)
	select {
	case <-k.done:
	default:
		close(k.done)
	}
}

// ConsensusStateIKM returns the master IKM, or ErrKeyManagerUnavailable while locked.
func (k *KeyManager) ConsensusStateIKM() (interfaces.IKM, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.ikm == nil {
		return interfaces.IKM{}, interfaces.ErrKeyManagerUnavailable
	}
	return *k.ikm, nil
}

// CallbackKey is the key inter-contract callback signatures are computed under.
func (k *KeyManager) CallbackKey() ([cryptoutils.HashSize]byte, error) {
	ikm, err := k.ConsensusStateIKM()
	if err != nil {
		return [cryptoutils.HashSize]byte{}, err
	}
	defer cryptoutils.Zeroize(ikm[:])

	return cryptoutils.DeriveKey(ikm[:], callbackKeyInfo)
}

// SigningKey is the secp256k1 key the enclave signs result envelopes with.
// It is the same for every enclave instance sharing the seed.
func (k *KeyManager) SigningKey() (*ecdsa.PrivateKey, error) {
	ikm, err := k.ConsensusStateIKM()
	if err != nil {
		return nil, err
	}
	defer cryptoutils.Zeroize(ikm[:])

	seed, err := cryptoutils.DeriveKey(ikm[:], signingKeyInfo)
	if err != nil {
		return nil, err
	}
	return cryptoutils.PrivateKeyFromSeed(seed)
}

// IsUnlocked reports whether the IKM is available.
func (k *KeyManager) IsUnlocked() bool {
	return k.unlocked.Load()
}

// WaitUnlocked blocks until the key manager is unlocked or ctx is done.
func (k *KeyManager) WaitUnlocked(ctx context.Context) error {
	select {
	case <-k.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Threshold returns the number of shares needed to unlock.
func (k *KeyManager) Threshold() int {
	return k.threshold
}

// AdminPubKey returns the registered PEM public key of an admin.
func (k *KeyManager) AdminPubKey(adminID string) ([]byte, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	pubKeyPEM, found := k.adminPubKeys[adminID]
	return pubKeyPEM, found
}

// ReceivedShares returns the number of shares collected so far.
func (k *KeyManager) ReceivedShares() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.receivedShares)
}

// Zero wipes the IKM and any pending shares. The key manager is locked for good afterwards.
func (k *KeyManager) Zero() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.ikm != nil {
		cryptoutils.Zeroize(k.ikm[:])
		k.ikm = nil
	}
	for id, share := range k.receivedShares {
		cryptoutils.Zeroize(share)
		delete(k.receivedShares, id)
	}
	k.unlocked.Store(false)
}

// Split splits a seed into parts Shamir shares, threshold of which recover it.
func Split(seed []byte, parts, threshold int) ([][]byte, error) {
	if len(seed) != SeedSize {
		return nil, ErrInvalidSeed
	}
	if threshold < 2 {
		return nil, errors.New("threshold must be at least 2")
	}
	return shamir.Split(seed, parts, threshold)
}
