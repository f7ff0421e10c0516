// Package common holds process-level helpers shared by the binaries: logger
// construction and build metadata.
package common

// Version is overridden at build time with -ldflags "-X ...common.Version=...".
var Version = "dev"

// PackageName is used as the Prometheus namespace.
const PackageName = "secret_contract_enclave"
