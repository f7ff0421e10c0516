// Package main (cmd/admin) implements the admin client that unlocks an
// enclave started with --km-type=shamir.
//
// Commands:
//
//	status               - Print whether the key manager is unlocked and how many shares it holds
//	generate-admin       - Generate an administrator P-256 key pair and print its admin ID
//	generate-admins-file - Collect admin public keys into the enclave's admin keys file
//	submit-share         - Sign and submit this admin's Shamir share
//
// Example workflow:
//
//  1. Generate a keypair for each administrator:
//     admin generate-admin --admin-privkey-file=admin1-private.pem --admin-pubkey-file=admin1-public.pem
//
//  2. Create the admin keys file:
//     admin generate-admins-file --admin-pubkey-files=admin1-public.pem --admin-pubkey-files=admin2-public.pem
//
//  3. Split the consensus seed offline and hand one share to each admin:
//     keytool split-seed --seed=... --shares=3 --threshold=2
//
//  4. Start the enclave with --km-type=shamir --km-admin-keys-file=admin-keys.json
//
//  5. Each admin submits their share until the threshold is reached:
//     admin submit-share --share-file=share-0.hex
//
// Share submissions are authenticated twice: the request is signed over
// SHA256(path || body), and the share itself is signed over SHA256(share).
package main
