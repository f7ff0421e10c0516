package ffi

import (
	"errors"
	"fmt"
)

// ErrorKind is the discriminant of EnclaveError.
type ErrorKind uint8

const (
	KindFailedOcall ErrorKind = iota

	// module binary
	KindInvalidWasm
	KindCannotInitializeWasmMemory
	KindWasmModuleWithStart
	KindWasmModuleWithFP
	KindFailedGasMeteringInjection

	// module runtime
	KindOutOfGas
	KindFailedFunctionCall
	KindContractPanicUnreachable
	KindContractPanicMemoryAccessOutOfBounds
	KindContractPanicTableAccessOutOfBounds
	KindContractPanicElemUninitialized
	KindContractPanicDivisionByZero
	KindContractPanicInvalidConversionToInt
	KindContractPanicStackOverflow
	KindContractPanicUnexpectedSignature

	// contract ABI
	KindFailedSeal
	KindFailedUnseal
	KindFailedContractAuthentication
	KindFailedToDeserialize
	KindFailedToSerialize
	KindEncryptionError
	KindDecryptionError
	KindMemoryAllocationError
	KindMemoryReadError
	KindMemoryWriteError
	KindUnauthorizedWrite
	KindNotImplemented
	KindValidationFailure
	KindFailedTxVerification
	KindKeyManagerUnavailable

	KindPanic
	KindUnknown
)

var kindMessages = map[ErrorKind]string{
	KindFailedOcall:                          "failed to execute ocall",
	KindInvalidWasm:                          "tried to load invalid wasm code",
	KindCannotInitializeWasmMemory:           "failed to initialize wasm memory",
	KindWasmModuleWithStart:                  "found start section in module code",
	KindWasmModuleWithFP:                     "found floating point operation in module code",
	KindFailedGasMeteringInjection:           "failed to inject gas metering",
	KindOutOfGas:                             "execution ran out of gas",
	KindFailedFunctionCall:                   "calling a function in the contract failed for an unexpected reason",
	KindContractPanicUnreachable:             "the contract panicked",
	KindContractPanicMemoryAccessOutOfBounds: "the contract tried to access memory out of bounds",
	KindContractPanicTableAccessOutOfBounds:  "the contract tried to access a nonexistent resource",
	KindContractPanicElemUninitialized:       "the contract tried to access an uninitialized resource",
	KindContractPanicDivisionByZero:          "the contract tried to divide by zero",
	KindContractPanicInvalidConversionToInt:  "the contract tried to perform an invalid conversion to an integer",
	KindContractPanicStackOverflow:           "the contract has run out of space on the stack",
	KindContractPanicUnexpectedSignature:     "the contract tried to call a function but expected an incorrect function signature",
	KindFailedSeal:                           "failed to seal data",
	KindFailedUnseal:                         "failed to unseal data",
	KindFailedContractAuthentication:         "failed to authenticate secret contract",
	KindFailedToDeserialize:                  "failed to deserialize data",
	KindFailedToSerialize:                    "failed to serialize data",
	KindEncryptionError:                      "failed to encrypt data",
	KindDecryptionError:                      "failed to decrypt data",
	KindMemoryAllocationError:                "failed to allocate memory",
	KindMemoryReadError:                      "failed to read memory",
	KindMemoryWriteError:                     "failed to write memory",
	KindUnauthorizedWrite:                    "contract tried to write to storage during a query",
	KindNotImplemented:                       "not implemented",
	KindValidationFailure:                    "failed to validate message",
	KindFailedTxVerification:                 "failed to verify transaction",
	KindKeyManagerUnavailable:                "key manager unavailable",
	KindPanic:                                "panic'd due to unexpected behavior",
	KindUnknown:                              "unknown error",
}

// String returns the display string of the kind.
func (k ErrorKind) String() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return fmt.Sprintf("unknown error kind %d", uint8(k))
}

// UntrustedVmError carries an error raised on the untrusted side of an ocall.
// The enclave passes it through without interpreting it.
type UntrustedVmError struct {
	err error
}

// NewUntrustedVmError boxes an untrusted-side error.
func NewUntrustedVmError(err error) *UntrustedVmError {
	return &UntrustedVmError{err: err}
}

func (e *UntrustedVmError) Error() string { return "VmError" }

// Unwrap gives the host back its original error.
func (e *UntrustedVmError) Unwrap() error { return e.err }

// EnclaveError is the closed set of failures an ecall can report. Only
// FailedOcall carries a payload.
type EnclaveError struct {
	Kind    ErrorKind
	VmError *UntrustedVmError
}

func (e EnclaveError) Error() string {
	return e.Kind.String()
}

// Is matches on the kind, so errors.Is(err, ErrFailedTxVerification) works for
// any wrapped EnclaveError.
func (e EnclaveError) Is(target error) bool {
	var t EnclaveError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Unwrap exposes the untrusted-side error of a failed ocall.
func (e EnclaveError) Unwrap() error {
	if e.VmError == nil {
		return nil
	}
	return e.VmError
}

// NewFailedOcall reports a failed ocall. vmErr may be nil when the ocall itself
// could not run.
func NewFailedOcall(vmErr error) EnclaveError {
	e := EnclaveError{Kind: KindFailedOcall}
	if vmErr != nil {
		e.VmError = NewUntrustedVmError(vmErr)
	}
	return e
}

var (
	ErrFailedOcall                  = EnclaveError{Kind: KindFailedOcall}
	ErrInvalidWasm                  = EnclaveError{Kind: KindInvalidWasm}
	ErrOutOfGas                     = EnclaveError{Kind: KindOutOfGas}
	ErrFailedFunctionCall           = EnclaveError{Kind: KindFailedFunctionCall}
	ErrFailedContractAuthentication = EnclaveError{Kind: KindFailedContractAuthentication}
	ErrFailedToDeserialize          = EnclaveError{Kind: KindFailedToDeserialize}
	ErrFailedToSerialize            = EnclaveError{Kind: KindFailedToSerialize}
	ErrEncryptionError              = EnclaveError{Kind: KindEncryptionError}
	ErrDecryptionError              = EnclaveError{Kind: KindDecryptionError}
	ErrMemoryAllocationError        = EnclaveError{Kind: KindMemoryAllocationError}
	ErrMemoryReadError              = EnclaveError{Kind: KindMemoryReadError}
	ErrMemoryWriteError             = EnclaveError{Kind: KindMemoryWriteError}
	ErrUnauthorizedWrite            = EnclaveError{Kind: KindUnauthorizedWrite}
	ErrNotImplemented               = EnclaveError{Kind: KindNotImplemented}
	ErrValidationFailure            = EnclaveError{Kind: KindValidationFailure}
	ErrFailedTxVerification         = EnclaveError{Kind: KindFailedTxVerification}
	ErrKeyManagerUnavailable        = EnclaveError{Kind: KindKeyManagerUnavailable}
	ErrPanic                        = EnclaveError{Kind: KindPanic}
	ErrUnknown                      = EnclaveError{Kind: KindUnknown}
)

// AsEnclaveError extracts the EnclaveError from err, or falls back to the
// given kind when err carries none.
func AsEnclaveError(err error, fallback ErrorKind) EnclaveError {
	var enclaveErr EnclaveError
	if errors.As(err, &enclaveErr) {
		return enclaveErr
	}
	return EnclaveError{Kind: fallback}
}
