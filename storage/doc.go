// Package storage is the content-addressed store contract code is loaded from
// when the host passes a code hash instead of the code itself.
//
// Content is addressed by the SHA-256 of its bytes, which for contract code is
// exactly the contract hash. Every backend verifies fetched bytes against the
// requested ID, so a misbehaving backend can at worst make a fetch fail.
//
// # Storage URI Format
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/enclave/code
//   - s3://[key:secret@]bucket/prefix?region=us-west-2&endpoint=http://minio:9000
//   - ipfs://localhost:5001/?root=/secret-contracts
//   - vault://[token@]vault.example.com:8200/secret/contracts?tls=false
//
// Multiple URIs are combined into a MultiStorageBackend: stores go to every
// available backend, fetches return the first verified copy.
package storage
