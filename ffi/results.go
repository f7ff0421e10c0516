package ffi

import (
	"crypto/sha256"
	"encoding/binary"
)

// SignatureLength is the size of the enclave signature in every success envelope.
const SignatureLength = 65

// Signature is a recoverable secp256k1 signature [R || S || V].
type Signature [SignatureLength]byte

// ResultTag discriminates success and failure envelopes.
type ResultTag uint8

const (
	ResultSuccess ResultTag = iota
	ResultFailure
)

// ExecutionDigest is what the enclave signs for init, handle and query results.
func ExecutionDigest(output []byte, usedGas uint64) [32]byte {
	h := sha256.New()
	h.Write(output)
	_ = binary.Write(h, binary.BigEndian, usedGas)

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// KeyGenDigest is what the enclave signs for key generation results.
func KeyGenDigest(output []byte) [32]byte {
	return sha256.Sum256(output)
}

type execResult struct {
	Tag       ResultTag
	Output    UserSpaceBuffer
	UsedGas   uint64
	Signature Signature
	Err       EnclaveError
}

// IsSuccess reports whether the envelope holds the success variant.
func (r execResult) IsSuccess() bool { return r.Tag == ResultSuccess }

// Failure returns the error of a failure envelope, or nil on success.
func (r execResult) Failure() error {
	if r.Tag == ResultSuccess {
		return nil
	}
	return r.Err
}

func execSuccess(output UserSpaceBuffer, usedGas uint64, signature Signature) execResult {
	return execResult{Tag: ResultSuccess, Output: output, UsedGas: usedGas, Signature: signature}
}

func execFailure(err EnclaveError) execResult {
	return execResult{Tag: ResultFailure, Err: err}
}

// InitResult is returned by the init entry point.
type InitResult struct{ execResult }

// HandleResult is returned by the handle entry point.
type HandleResult struct{ execResult }

// QueryResult is returned by the query entry point.
type QueryResult struct{ execResult }

func InitSuccess(output UserSpaceBuffer, usedGas uint64, signature Signature) InitResult {
	return InitResult{execSuccess(output, usedGas, signature)}
}

func InitFailure(err EnclaveError) InitResult {
	return InitResult{execFailure(err)}
}

func HandleSuccess(output UserSpaceBuffer, usedGas uint64, signature Signature) HandleResult {
	return HandleResult{execSuccess(output, usedGas, signature)}
}

func HandleFailure(err EnclaveError) HandleResult {
	return HandleResult{execFailure(err)}
}

func QuerySuccess(output UserSpaceBuffer, usedGas uint64, signature Signature) QueryResult {
	return QueryResult{execSuccess(output, usedGas, signature)}
}

func QueryFailure(err EnclaveError) QueryResult {
	return QueryResult{execFailure(err)}
}

// KeyGenResult is returned by the key generation entry point. It has no gas
// and fails with a CryptoError.
type KeyGenResult struct {
	Tag       ResultTag
	Output    UserSpaceBuffer
	Signature Signature
	Err       CryptoError
}

func KeyGenSuccess(output UserSpaceBuffer, signature Signature) KeyGenResult {
	return KeyGenResult{Tag: ResultSuccess, Output: output, Signature: signature}
}

func KeyGenFailure(err CryptoError) KeyGenResult {
	return KeyGenResult{Tag: ResultFailure, Err: err}
}

// IsSuccess reports whether the envelope holds the success variant.
func (r KeyGenResult) IsSuccess() bool { return r.Tag == ResultSuccess }

// Failure returns the error of a failure envelope, or nil on success.
func (r KeyGenResult) Failure() error {
	if r.Tag == ResultSuccess {
		return nil
	}
	return r.Err
}
