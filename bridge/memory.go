package bridge

import (
	"fmt"
	"sync"

	"github.com/ruteri/secret-contract-enclave/ffi"
)

// Memory maps ffi buffer handles to byte slices. User-space buffers hold
// results produced by the enclave for the host; enclave buffers hold data the
// host passed in. Handles are never zero and are not reused.
type Memory struct {
	mu      sync.Mutex
	next    uintptr
	user    map[uintptr][]byte
	enclave map[uintptr][]byte
}

func NewMemory() *Memory {
	return &Memory{
		user:    make(map[uintptr][]byte),
		enclave: make(map[uintptr][]byte),
	}
}

func (m *Memory) allocate() uintptr {
	m.next++
	return m.next
}

// NewUserSpaceBuffer copies data into host-owned memory and returns its handle.
// Ownership passes to the host, which must release it exactly once.
func (m *Memory) NewUserSpaceBuffer(data []byte) (ffi.UserSpaceBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle := m.allocate()
	if handle == 0 {
		return ffi.UserSpaceBuffer{}, fmt.Errorf("%w: handle space exhausted", ffi.ErrMemoryAllocationError)
	}
	m.user[handle] = append([]byte{}, data...)
	return ffi.NewUserSpaceBuffer(handle), nil
}

// CopyOut returns a copy of the buffer contents. The buffer stays allocated.
func (m *Memory) CopyOut(buf ffi.UserSpaceBuffer) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, found := m.user[buf.Handle()]
	if !found {
		return nil, fmt.Errorf("%w: unknown user space buffer %d", ffi.ErrMemoryReadError, buf.Handle())
	}
	return append([]byte{}, data...), nil
}

// ReleaseUserSpaceBuffer frees a user-space buffer. Releasing an unknown or
// already released handle fails.
func (m *Memory) ReleaseUserSpaceBuffer(buf ffi.UserSpaceBuffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, found := m.user[buf.Handle()]; !found {
		return fmt.Errorf("%w: unknown user space buffer %d", ffi.ErrMemoryReadError, buf.Handle())
	}
	delete(m.user, buf.Handle())
	return nil
}

// NewEnclaveBuffer copies host data into an enclave-owned buffer.
func (m *Memory) NewEnclaveBuffer(data []byte) (ffi.EnclaveBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle := m.allocate()
	if handle == 0 {
		return ffi.EnclaveBuffer{}, fmt.Errorf("%w: handle space exhausted", ffi.ErrMemoryAllocationError)
	}
	m.enclave[handle] = append([]byte{}, data...)
	return ffi.NewEnclaveBuffer(handle), nil
}

// ReadEnclaveBuffer returns a copy of an enclave buffer.
func (m *Memory) ReadEnclaveBuffer(buf ffi.EnclaveBuffer) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, found := m.enclave[buf.Handle()]
	if !found {
		return nil, fmt.Errorf("%w: unknown enclave buffer %d", ffi.ErrMemoryReadError, buf.Handle())
	}
	return append([]byte{}, data...), nil
}

// ReleaseEnclaveBuffer frees an enclave buffer. Clones made with UnsafeClone
// share the handle, so only one of them may be released.
func (m *Memory) ReleaseEnclaveBuffer(buf ffi.EnclaveBuffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, found := m.enclave[buf.Handle()]
	if !found {
		return fmt.Errorf("%w: unknown enclave buffer %d", ffi.ErrMemoryReadError, buf.Handle())
	}
	clear(data)
	delete(m.enclave, buf.Handle())
	return nil
}

// Outstanding returns the number of live user-space and enclave buffers.
func (m *Memory) Outstanding() (user, enclave int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.user), len(m.enclave)
}
