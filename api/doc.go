/*
Package api exposes the enclave to the untrusted host over HTTP.

The package itself holds the server configuration and the wire types. The
subpackages implement the pieces:

 1. server - HTTP server lifecycle, health checks and drain handling
 2. ecallhandler - the init, handle, query and keygen ecalls and code upload
 3. adminhandler - key manager status and Shamir share submission
 4. clients - Go clients for the ecall and admin endpoints

# Results versus transport errors

An ecall that the enclave rejects is still a successful HTTP exchange: the
response carries the failure envelope with the error display string and
status 200. Only malformed HTTP input (bad JSON, bad encodings) is answered
with 4xx.

# Admin authentication

Admin requests carry X-Admin-ID and X-Admin-Signature headers. The signature is
an ASN.1 ECDSA signature over SHA256(path || body) made with the admin key
registered in the admin keys file.
*/
package api
