// Package ffi defines the types that cross the enclave call boundary: opaque
// buffer handles, the closed error taxonomies and the per entry point result
// envelopes.
//
// Result envelopes are tagged unions: a ResultTag discriminant plus the fields
// of the selected variant. On success the envelope carries a handle to the
// output buffer (ownership passes to the host), the gas used where applicable
// and a SignatureLength-byte recoverable secp256k1 signature [R || S || V] made
// by the enclave over the result:
//
//	init, handle, query: SHA256(output || be64(gas used))
//	key generation:      SHA256(output)
package ffi
