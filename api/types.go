package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ruteri/secret-contract-enclave/enclave"
	"github.com/ruteri/secret-contract-enclave/ffi"
	"github.com/ruteri/secret-contract-enclave/interfaces"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// CallRequest is the body of the init, handle and query ecalls. Exactly one
// of Code and CodeHash should be set; Code wins if both are.
type CallRequest struct {
	Env      json.RawMessage `json:"env"`
	SigInfo  json.RawMessage `json:"sig_info,omitempty"`
	Msg      []byte          `json:"msg"`
	Code     []byte          `json:"code,omitempty"`
	CodeHash string          `json:"code_hash,omitempty"`
	GasLimit uint64          `json:"gas_limit"`
}

// ToEnclave converts the wire request. Only the code hash encoding is checked
// here; env and sig info are decoded inside the enclave.
func (r CallRequest) ToEnclave() (enclave.CallRequest, error) {
	req := enclave.CallRequest{
		Env:      r.Env,
		SigInfo:  r.SigInfo,
		Msg:      r.Msg,
		Code:     r.Code,
		GasLimit: r.GasLimit,
	}

	if len(r.Code) == 0 && r.CodeHash != "" {
		id, err := interfaces.NewContentIDFromHex(r.CodeHash)
		if err != nil {
			return enclave.CallRequest{}, fmt.Errorf("invalid code hash: %w", err)
		}
		hash := id.ContractHash()
		req.CodeHash = &hash
	}
	return req, nil
}

// CallResponse carries an ecall result envelope. Output is the data copied out
// of the user space buffer; Signature is the hex encoded 65-byte enclave
// signature over the result digest.
type CallResponse struct {
	Result    string `json:"result"`
	Output    []byte `json:"output,omitempty"`
	GasUsed   uint64 `json:"gas_used,omitempty"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewFailureResponse builds the failure variant from an enclave error. The
// error text is the display string only; untrusted ocall errors are never
// echoed.
func NewFailureResponse(err error) CallResponse {
	return CallResponse{
		Result: ResultFailure,
		Error:  ffi.AsEnclaveError(err, ffi.KindUnknown).Error(),
	}
}

// NewSuccessResponse builds the success variant.
func NewSuccessResponse(output []byte, gasUsed uint64, signature ffi.Signature) CallResponse {
	return CallResponse{
		Result:    ResultSuccess,
		Output:    output,
		GasUsed:   gasUsed,
		Signature: hex.EncodeToString(signature[:]),
	}
}

// KeyGenResponse carries the node public key generated inside the enclave.
type KeyGenResponse struct {
	Result    string `json:"result"`
	PubKey    []byte `json:"pub_key,omitempty"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CodeUploadResponse is returned after contract code has been stored.
type CodeUploadResponse struct {
	CodeHash string `json:"code_hash"`
}

// AdminStatusResponse reports the key manager state.
type AdminStatusResponse struct {
	Unlocked       bool `json:"unlocked"`
	Threshold      int  `json:"threshold,omitempty"`
	ReceivedShares int  `json:"received_shares,omitempty"`
}

// ShareSubmission is the body of POST /admin/share.
type ShareSubmission struct {
	// Share is the admin's Shamir share.
	Share []byte `json:"share"`
	// Signature is the admin's ASN.1 ECDSA signature over SHA256(share).
	Signature []byte `json:"signature"`
}
