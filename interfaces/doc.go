// Package interfaces defines the types shared across the enclave boundary and
// the interfaces that separate the enclave from its host-side collaborators.
//
// # Key material
//
// IKM, SenderID, ContractHash, AuthenticationTag, ContractKey and EncryptionKey
// are fixed-size byte arrays. KeyManager gives read access to the consensus
// state IKM and reports ErrKeyManagerUnavailable while it is locked.
//
// # Chain types
//
// Env, SigInfo, SignDoc and SecretMessage are the chain-provided inputs of an
// ecall. Addresses are CanonicalAddr bytes; HumanAddr is their bech32 form.
//
// # Collaborators
//
// StorageBackend is the content-addressed code store, and Executor runs
// contract code once the caller has been authenticated.
package interfaces
