package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ruteri/secret-contract-enclave/ffi"
	"github.com/ruteri/secret-contract-enclave/interfaces"
	"github.com/ruteri/secret-contract-enclave/metrics"
)

// CodeOcall fetches contract code by hash from the untrusted code store.
type CodeOcall struct {
	store interfaces.StorageBackend
	log   *slog.Logger
}

func NewCodeOcall(store interfaces.StorageBackend, log *slog.Logger) *CodeOcall {
	return &CodeOcall{store: store, log: log}
}

// FetchCode runs on the host side of the boundary. It never panics across the
// boundary: a panic in the store is reported as OcallReturnPanic.
func (o *CodeOcall) FetchCode(ctx context.Context, hash interfaces.ContractHash) (ret ffi.OcallReturn, code []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("Code ocall panicked", "panic", r)
			metrics.CodeFetch(o.store.Name(), "panic")
			ret, code, err = ffi.OcallReturnPanic, nil, fmt.Errorf("code store panicked: %v", r)
		}
	}()

	code, err = o.store.Fetch(ctx, interfaces.ContentID(hash), interfaces.CodeType)
	if err != nil {
		result := "error"
		if errors.Is(err, interfaces.ErrContentNotFound) {
			result = "not_found"
		}
		metrics.CodeFetch(o.store.Name(), result)
		o.log.Warn("Code ocall failed", slog.String("code_hash", hash.String()), "err", err)
		return ffi.OcallReturnFailure, nil, err
	}

	metrics.CodeFetch(o.store.Name(), "success")
	return ffi.OcallReturnSuccess, code, nil
}

// LoadCode is the enclave side of the ocall. Any status other than success
// becomes FailedOcall carrying the untrusted error, which the enclave never
// inspects.
func (o *CodeOcall) LoadCode(ctx context.Context, hash interfaces.ContractHash) ([]byte, error) {
	ret, code, err := o.FetchCode(ctx, hash)
	if ret != ffi.OcallReturnSuccess {
		if err == nil {
			err = fmt.Errorf("ocall returned %s", ret)
		}
		return nil, ffi.NewFailedOcall(err)
	}
	return code, nil
}
