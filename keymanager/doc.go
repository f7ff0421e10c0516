// Package keymanager holds the enclave's consensus state IKM, the root secret
// every contract key is derived from.
//
// A KeyManager is created in one of three ways:
//
//   - NewFromSeed: from the 32-byte consensus seed directly (development, tests).
//   - NewFromShares / NewFromSealedSeed: from Shamir shares or a sealed seed at startup.
//   - NewLocked: without the seed. Admins submit signed Shamir shares through
//     SubmitShare until the threshold is met and the seed is reconstructed.
//
// While locked, ConsensusStateIKM returns interfaces.ErrKeyManagerUnavailable.
// Once unlocked the IKM never changes, so concurrent readers only contend on a read lock.
package keymanager
