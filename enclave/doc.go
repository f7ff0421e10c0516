// Package enclave implements the ecall entry points: contract instantiation,
// execution, queries and node key generation.
//
// Every entry point authenticates its inputs with the contract package before
// anything reaches the Executor, signs what the executor produced with the
// enclave signing key and hands the output to the host through the memory
// bridge. Entry points never panic across the boundary; a panic is reported as
// the Panic error kind.
package enclave
