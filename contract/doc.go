// Package contract derives and validates contract identities and authenticates
// the parameters of every call before a contract is executed.
//
// A contract key is sender_id || tag where
//
//	sender_id = SHA256(sender || be64(block height))
//	tag       = HMAC-SHA256(HKDF(IKM, sender_id), sender_id || code_hash || contract_address)
//
// The concatenation order is part of the chain state: changing it invalidates
// every deployed contract.
package contract
