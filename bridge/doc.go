// Package bridge is the host side of the enclave boundary. It owns the handle
// tables behind ffi buffers and serves the ocalls the enclave makes to fetch
// contract code from the untrusted code store.
package bridge
