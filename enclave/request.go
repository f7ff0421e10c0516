package enclave

import (
	"encoding/json"

	"github.com/ruteri/secret-contract-enclave/ffi"
	"github.com/ruteri/secret-contract-enclave/interfaces"
)

// MaxGas caps the gas limit of every call.
const MaxGas uint64 = 900_000_000

// CallRequest is the raw input of an init, handle or query ecall. Env and
// SigInfo are the JSON documents provided by the chain.
type CallRequest struct {
	Env     []byte
	SigInfo []byte
	Msg     []byte

	// Code is the contract code. When empty it is loaded by CodeHash through
	// the code ocall.
	Code     []byte
	CodeHash *interfaces.ContractHash

	GasLimit uint64
}

// InitOutput is the output of a successful init. The host persists ContractKey
// and passes it back in the env of every later call to the contract.
type InitOutput struct {
	ContractKey string          `json:"contract_key"`
	Data        []byte `json:"data"`
}

func decodeEnv(raw []byte) (interfaces.Env, error) {
	var env interfaces.Env
	if err := json.Unmarshal(raw, &env); err != nil {
		return interfaces.Env{}, ffi.ErrFailedToDeserialize
	}
	return env, nil
}

func decodeSigInfo(raw []byte) (interfaces.SigInfo, error) {
	var sigInfo interfaces.SigInfo
	if err := json.Unmarshal(raw, &sigInfo); err != nil {
		return interfaces.SigInfo{}, ffi.ErrFailedToDeserialize
	}
	return sigInfo, nil
}

func capGas(limit, ceiling uint64) uint64 {
	if limit > ceiling {
		return ceiling
	}
	return limit
}
