/*
Package clients provides HTTP clients for the enclave API.

# Client Types

  - EnclaveClient drives the ecall endpoints: Init, Handle, Query, GenerateKey
    and UploadCode.
  - AdminClient talks to the key manager admin endpoints: GetStatus,
    SubmitShare and WaitUnlocked.

# Admin Authentication

Admin requests carry the X-Admin-ID header and an X-Admin-Signature header
holding the base64 ASN.1 ECDSA signature over SHA256(path || body).
CreateSignedAdminRequest builds such requests.

# Example Usage

	adminClient := clients.NewAdminClient("http://127.0.0.1:8080", adminID, privateKey)
	if _, err := adminClient.SubmitShare(share); err != nil {
	    return err
	}

	enclaveClient := clients.NewEnclaveClient("http://127.0.0.1:8080")
	resp, err := enclaveClient.Query(ctx, api.CallRequest{Env: env, Msg: msg, CodeHash: codeHash})
*/
package clients
