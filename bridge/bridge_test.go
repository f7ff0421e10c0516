package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/secret-contract-enclave/contract"
	"github.com/ruteri/secret-contract-enclave/ffi"
	"github.com/ruteri/secret-contract-enclave/interfaces"
	"github.com/ruteri/secret-contract-enclave/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUserSpaceBuffers(t *testing.T) {
	mem := NewMemory()

	data := []byte("result")
	buf, err := mem.NewUserSpaceBuffer(data)
	require.NoError(t, err)
	assert.False(t, buf.IsNull())

	// The buffer owns a copy.
	data[0] = 'X'
	out, err := mem.CopyOut(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("result"), out)

	other, err := mem.NewUserSpaceBuffer(nil)
	require.NoError(t, err)
	assert.NotEqual(t, buf.Handle(), other.Handle())

	require.NoError(t, mem.ReleaseUserSpaceBuffer(buf))
	assert.ErrorIs(t, mem.ReleaseUserSpaceBuffer(buf), ffi.ErrMemoryReadError)

	_, err = mem.CopyOut(buf)
	assert.ErrorIs(t, err, ffi.ErrMemoryReadError)

	_, err = mem.CopyOut(ffi.UserSpaceBuffer{})
	assert.ErrorIs(t, err, ffi.ErrMemoryReadError)

	user, enclave := mem.Outstanding()
	assert.Equal(t, 1, user)
	assert.Equal(t, 0, enclave)
}

func TestEnclaveBuffers(t *testing.T) {
	mem := NewMemory()

	buf, err := mem.NewEnclaveBuffer([]byte("input"))
	require.NoError(t, err)

	clone := buf.UnsafeClone()
	assert.Equal(t, buf.Handle(), clone.Handle())

	data, err := mem.ReadEnclaveBuffer(clone)
	require.NoError(t, err)
	assert.Equal(t, []byte("input"), data)

	require.NoError(t, mem.ReleaseEnclaveBuffer(buf))
	assert.ErrorIs(t, mem.ReleaseEnclaveBuffer(clone), ffi.ErrMemoryReadError)

	_, err = mem.ReadEnclaveBuffer(buf)
	assert.ErrorIs(t, err, ffi.ErrMemoryReadError)
}

type panickingStore struct {
	interfaces.StorageBackend
}

func (panickingStore) Fetch(context.Context, interfaces.ContentID, interfaces.ContentType) ([]byte, error) {
	panic("backend bug")
}

func (panickingStore) Name() string { return "panicking" }

func TestCodeOcall(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewFileBackend(t.TempDir(), discardLogger())
	require.NoError(t, err)

	code := []byte("\x00asm\x01\x00\x00\x00")
	_, err = store.Store(ctx, code, interfaces.CodeType)
	require.NoError(t, err)

	ocall := NewCodeOcall(store, discardLogger())

	t.Run("found", func(t *testing.T) {
		ret, fetched, err := ocall.FetchCode(ctx, contract.CalcContractHash(code))
		require.NoError(t, err)
		assert.Equal(t, ffi.OcallReturnSuccess, ret)
		assert.Equal(t, code, fetched)

		loaded, err := ocall.LoadCode(ctx, contract.CalcContractHash(code))
		require.NoError(t, err)
		assert.Equal(t, code, loaded)
	})

	t.Run("missing", func(t *testing.T) {
		missing := contract.CalcContractHash([]byte("other"))
		ret, _, err := ocall.FetchCode(ctx, missing)
		assert.Equal(t, ffi.OcallReturnFailure, ret)
		assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

		_, err = ocall.LoadCode(ctx, missing)
		assert.ErrorIs(t, err, ffi.ErrFailedOcall)
		var vmErr *ffi.UntrustedVmError
		require.True(t, errors.As(err, &vmErr))
		assert.ErrorIs(t, vmErr, interfaces.ErrContentNotFound)
	})

	t.Run("panic", func(t *testing.T) {
		ocall := NewCodeOcall(panickingStore{}, discardLogger())
		ret, _, err := ocall.FetchCode(ctx, contract.CalcContractHash(code))
		assert.Equal(t, ffi.OcallReturnPanic, ret)
		assert.Error(t, err)

		_, err = ocall.LoadCode(ctx, contract.CalcContractHash(code))
		assert.ErrorIs(t, err, ffi.ErrFailedOcall)
	})
}
