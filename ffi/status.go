package ffi

import "fmt"

// NodeAuthResult is the outcome of authenticating a new node during bootstrap.
type NodeAuthResult uint8

const (
	NodeAuthSuccess NodeAuthResult = iota
	NodeAuthInvalidInput
	NodeAuthInvalidCert
	NodeAuthCantWriteToStorage
	NodeAuthMalformedPublicKey
	NodeAuthSeedEncryptionFailed
	NodeAuthPanic
)

func (r NodeAuthResult) String() string {
	switch r {
	case NodeAuthSuccess:
		return "Success"
	case NodeAuthInvalidInput:
		return "Enclave received invalid inputs"
	case NodeAuthInvalidCert:
		return "The provided certificate was invalid"
	case NodeAuthCantWriteToStorage:
		return "Writing to file system from the enclave failed"
	case NodeAuthMalformedPublicKey:
		return "The public key in the certificate appears to be malformed"
	case NodeAuthSeedEncryptionFailed:
		return "Encrypting the seed failed"
	case NodeAuthPanic:
		return "Enclave panicked :( please file a bug report!"
	}
	return fmt.Sprintf("NodeAuthResult(%d)", uint8(r))
}

// Err returns nil for NodeAuthSuccess and an error carrying the display string otherwise.
func (r NodeAuthResult) Err() error {
	if r == NodeAuthSuccess {
		return nil
	}
	return nodeAuthError(r)
}

type nodeAuthError NodeAuthResult

func (e nodeAuthError) Error() string { return NodeAuthResult(e).String() }

// OcallReturn is the status of a call from the enclave out to the host.
type OcallReturn uint8

const (
	OcallReturnSuccess OcallReturn = iota
	OcallReturnFailure
	OcallReturnPanic
)

func (r OcallReturn) String() string {
	switch r {
	case OcallReturnSuccess:
		return "Success"
	case OcallReturnFailure:
		return "Failure"
	case OcallReturnPanic:
		return "Panic"
	}
	return fmt.Sprintf("OcallReturn(%d)", uint8(r))
}
