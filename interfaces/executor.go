package interfaces

import "context"

// Entrypoint names the contract export an execution runs.
type Entrypoint string

const (
	EntrypointInit   Entrypoint = "init"
	EntrypointHandle Entrypoint = "handle"
	EntrypointQuery  Entrypoint = "query"
)

// ExecutionRequest is an authenticated call handed to the WASM runtime.
type ExecutionRequest struct {
	Entrypoint Entrypoint
	Code       []byte
	Env        Env
	// Msg is the message payload with the code hash prefix removed.
	Msg           []byte
	EncryptionKey EncryptionKey
	GasLimit      uint64
	// ReadOnly executions must fail with UnauthorizedWrite on any storage write.
	ReadOnly bool
}

// ExecutionResult is what the runtime produced for a successful call.
type ExecutionResult struct {
	Output  []byte
	UsedGas uint64
}

// Executor runs contract code. Errors that are ffi.EnclaveError values are
// reported to the host as-is, anything else as FailedFunctionCall.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}
