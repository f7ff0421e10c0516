package ffi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleUnsafeClone(t *testing.T) {
	buf := NewEnclaveBuffer(0x1234)
	clone := buf.UnsafeClone()
	assert.Equal(t, buf.Handle(), clone.Handle())
	assert.False(t, clone.IsNull())

	assert.True(t, EnclaveBuffer{}.IsNull())
	assert.True(t, UserSpaceBuffer{}.IsNull())

	ctx := NewCtx(7)
	assert.Equal(t, uintptr(7), ctx.UnsafeClone().Handle())
}

func TestResultEnvelopes(t *testing.T) {
	var sig Signature
	sig[0] = 1

	ok := HandleSuccess(NewUserSpaceBuffer(5), 42, sig)
	assert.True(t, ok.IsSuccess())
	assert.NoError(t, ok.Failure())
	assert.Equal(t, uint64(42), ok.UsedGas)
	assert.Equal(t, sig, ok.Signature)

	failed := InitFailure(ErrFailedContractAuthentication)
	assert.False(t, failed.IsSuccess())
	assert.ErrorIs(t, failed.Failure(), ErrFailedContractAuthentication)
	assert.True(t, failed.Output.IsNull(), "failure envelopes carry no output buffer")

	q := QueryFailure(ErrUnauthorizedWrite)
	assert.ErrorIs(t, q.Failure(), ErrUnauthorizedWrite)

	kg := KeyGenFailure(CryptoError{Kind: CryptoSigningError})
	assert.False(t, kg.IsSuccess())
	assert.ErrorIs(t, kg.Failure(), CryptoError{Kind: CryptoSigningError})
	assert.True(t, KeyGenSuccess(NewUserSpaceBuffer(1), sig).IsSuccess())
}

func TestDigests(t *testing.T) {
	out := []byte("output")
	assert.NotEqual(t, ExecutionDigest(out, 1), ExecutionDigest(out, 2), "gas must be bound into the digest")
	assert.Equal(t, ExecutionDigest(out, 1), ExecutionDigest(out, 1))
	assert.NotEqual(t, KeyGenDigest(out), ExecutionDigest(out, 0))
}
