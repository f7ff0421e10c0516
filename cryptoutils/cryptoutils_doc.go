// Package cryptoutils holds the cryptographic primitives used inside the enclave
// boundary.
//
// # Key derivation and authentication
//
// Contract identity keys are derived with HKDF-SHA256 under a fixed chain-wide salt
// and authenticated with HMAC-SHA256:
//
//	key = HKDF(IKM, salt, info)
//	tag = HMAC-SHA256(key, data)
//
// # secp256k1
//
// Transaction signatures are 64-byte R||S over SHA-256 of the sign bytes, verified
// against a 33-byte compressed public key. Low-S is enforced. Enclave result
// envelopes use 65-byte recoverable signatures.
//
// # Seed sealing
//
// The master seed can be stored sealed to a P-256 key. The sealed format is:
//
//	[ephemeral key length (2 bytes)][ephemeral key][nonce (12 bytes)][ciphertext]
//
// where the AES-256-GCM key is SHA-256 of the ECDH shared secret.
package cryptoutils
