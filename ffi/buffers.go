package ffi

// UserSpaceBuffer is an opaque handle to memory owned by the untrusted host.
// The enclave never dereferences it; data moves through the memory bridge.
type UserSpaceBuffer struct {
	ptr uintptr
}

// EnclaveBuffer is an opaque handle to memory owned by the enclave.
type EnclaveBuffer struct {
	ptr uintptr
}

// Ctx is an opaque handle to host state (e.g. contract storage) passed through
// the enclave back to ocalls.
type Ctx struct {
	data uintptr
}

// NewUserSpaceBuffer wraps a raw handle value. Only the memory bridge creates handles.
func NewUserSpaceBuffer(ptr uintptr) UserSpaceBuffer { return UserSpaceBuffer{ptr: ptr} }

// NewEnclaveBuffer wraps a raw handle value.
func NewEnclaveBuffer(ptr uintptr) EnclaveBuffer { return EnclaveBuffer{ptr: ptr} }

// NewCtx wraps a raw handle value.
func NewCtx(data uintptr) Ctx { return Ctx{data: data} }

// Handle returns the raw handle value.
func (b UserSpaceBuffer) Handle() uintptr { return b.ptr }

// IsNull reports whether the handle is the zero handle.
func (b UserSpaceBuffer) IsNull() bool { return b.ptr == 0 }

// Handle returns the raw handle value.
func (b EnclaveBuffer) Handle() uintptr { return b.ptr }

// IsNull reports whether the handle is the zero handle.
func (b EnclaveBuffer) IsNull() bool { return b.ptr == 0 }

// UnsafeClone copies the handle value only. Both copies refer to the same
// memory; the caller must make sure it is released exactly once.
func (b EnclaveBuffer) UnsafeClone() EnclaveBuffer { return EnclaveBuffer{ptr: b.ptr} }

// Handle returns the raw handle value.
func (c Ctx) Handle() uintptr { return c.data }

// UnsafeClone copies the handle value only.
func (c Ctx) UnsafeClone() Ctx { return Ctx{data: c.data} }
