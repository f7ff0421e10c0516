package keymanager

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/vault/shamir"
	"github.com/ruteri/secret-contract-enclave/cryptoutils"
)

var ErrUnknownAdmin = errors.New("unregistered admin")

// SubmitShare records a share from an admin. The signature is an ASN.1 ECDSA
// signature over SHA256(share) made with the admin's registered key. Once
// Threshold shares are collected the seed is reconstructed and the key manager
// unlocks.
func (k *KeyManager) SubmitShare(adminID string, share, signature []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.ikm != nil {
		return ErrAlreadyUnlocked
	}

	pubKeyPEM, found := k.adminPubKeys[adminID]
	if !found {
		return ErrUnknownAdmin
	}

	pubKey, err := ParseAdminPubKey(pubKeyPEM)
	if err != nil {
		return err
	}

	digest := sha256.Sum256(share)
	if !ecdsa.VerifyASN1(pubKey, digest[:], signature) {
		return errors.New("invalid share signature")
	}

	if previous, ok := k.receivedShares[adminID]; ok {
		cryptoutils.Zeroize(previous)
	}
	k.receivedShares[adminID] = append([]byte(nil), share...)

	return k.tryReconstruct()
}

func (k *KeyManager) tryReconstruct() error {
	if len(k.receivedShares) < k.threshold {
		return nil
	}

	shares := make([][]byte, 0, len(k.receivedShares))
	for _, share := range k.receivedShares {
		shares = append(shares, share)
	}

	seed, err := shamir.Combine(shares)
	if err != nil {
		return fmt.Errorf("failed to reconstruct seed: %w", err)
	}
	defer cryptoutils.Zeroize(seed)

	if len(seed) != SeedSize {
		return ErrInvalidSeed
	}

	k.unlock(seed)

	for id, share := range k.receivedShares {
		cryptoutils.Zeroize(share)
		delete(k.receivedShares, id)
	}
	return nil
}

// SignShare signs a share for submission with an admin's private key.
func SignShare(share []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	digest := sha256.Sum256(share)
	return ecdsa.SignASN1(rand.Reader, privateKey, digest[:])
}

// ParseAdminPubKey parses a PEM encoded PKIX ECDSA public key.
func ParseAdminPubKey(pubKeyPEM []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(pubKeyPEM)
	if block == nil {
		return nil, errors.New("failed to decode admin public key PEM")
	}

	pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse admin public key: %w", err)
	}

	ecdsaPubKey, ok := pubKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("admin public key is not an ECDSA key")
	}
	return ecdsaPubKey, nil
}

// AdminsConfig is the admin keys file format.
type AdminsConfig struct {
	Admins []AdminMetadata `json:"admins"`
}

type AdminMetadata struct {
	ID string `json:"id"`
	// PubKey is the admin's PKIX public key in PEM format.
	PubKey string `json:"pubkey"`
}

// AdminID derives an admin ID from its PEM public key.
func AdminID(pubKeyPEM []byte) string {
	digest := sha256.Sum256(pubKeyPEM)
	return hex.EncodeToString(digest[:])
}

// LoadAdminKeys reads {"admins": [{"id": ..., "pubkey": PEM}, ...]}.
func LoadAdminKeys(r io.Reader) (map[string][]byte, error) {
	var data AdminsConfig
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode admin keys JSON: %w", err)
	}

	result := make(map[string][]byte, len(data.Admins))
	for _, admin := range data.Admins {
		if _, err := ParseAdminPubKey([]byte(admin.PubKey)); err != nil {
			return nil, fmt.Errorf("invalid public key for admin %s: %w", admin.ID, err)
		}
		result[admin.ID] = []byte(admin.PubKey)
	}
	return result, nil
}
