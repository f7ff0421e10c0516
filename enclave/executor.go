package enclave

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/ruteri/secret-contract-enclave/ffi"
	"github.com/ruteri/secret-contract-enclave/interfaces"
)

// UnimplementedExecutor is used when no WASM runtime is wired in. Every call
// fails with NotImplemented after authentication succeeded.
type UnimplementedExecutor struct{}

func (UnimplementedExecutor) Execute(context.Context, interfaces.ExecutionRequest) (interfaces.ExecutionResult, error) {
	return interfaces.ExecutionResult{}, ffi.ErrNotImplemented
}

func marshalInitOutput(key interfaces.ContractKey, data []byte) ([]byte, error) {
	out, err := json.Marshal(InitOutput{
		ContractKey: base64.StdEncoding.EncodeToString(key[:]),
		Data:        data,
	})
	if err != nil {
		return nil, ffi.ErrFailedToSerialize
	}
	return out, nil
}
