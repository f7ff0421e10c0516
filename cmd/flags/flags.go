package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/secret-contract-enclave/api"
	"github.com/ruteri/secret-contract-enclave/common"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: common.Version,
	})

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *api.HTTPServerConfig {
	return &api.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		MetricsAddr:              cCtx.String(MetricsAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
		MaxBodySize:              cCtx.Int64(MaxBodySizeFlag.Name),
	}
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for the ecall and admin API",
}

var KeyManagerTypeFlag = &cli.StringFlag{
	Name:  "km-type",
	Value: "seed",
	Usage: "how the consensus seed is loaded: 'seed', 'sealed' or 'shamir'",
}
var KeyManagerSeedFlag = &cli.StringFlag{
	Name:    "km-seed",
	EnvVars: []string{"ENCLAVE_KM_SEED"},
	Usage:   "hex-encoded 32-byte consensus seed (km-type 'seed')",
}
var SealedSeedFileFlag = &cli.StringFlag{
	Name:  "km-sealed-seed",
	Usage: "file with the sealed consensus seed (km-type 'sealed')",
}
var SealingKeyFileFlag = &cli.StringFlag{
	Name:  "km-sealing-key-file",
	Usage: "PEM file with the sealing private key (km-type 'sealed')",
}
var AdminKeysFileFlag = &cli.StringFlag{
	Name:  "km-admin-keys-file",
	Usage: "JSON file with admin public keys (km-type 'shamir')",
}
var ThresholdFlag = &cli.IntFlag{
	Name:  "km-threshold",
	Value: 2,
	Usage: "number of admin shares needed to unlock the key manager (km-type 'shamir')",
}
var BootstrapTimeoutFlag = &cli.IntFlag{
	Name:  "bootstrap-timeout",
	Value: 300,
	Usage: "seconds to wait for admins to unlock the key manager, 0 waits forever (km-type 'shamir')",
}

var CodeStoreFlag = &cli.StringSliceFlag{
	Name:  "code-store",
	Usage: "contract code storage location URI, may be repeated (file://, s3://, ipfs://, vault://)",
}
var QueryGasLimitFlag = &cli.Uint64Flag{
	Name:  "query-gas-limit",
	Value: 0,
	Usage: "gas ceiling applied to queries, 0 uses the enclave maximum",
}
var MaxBodySizeFlag = &cli.Int64Flag{
	Name:  "max-body-size",
	Value: 8 << 20,
	Usage: "maximum request body size in bytes",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "secret-contract-enclave",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}

var KeyManagerFlags = []cli.Flag{
	KeyManagerTypeFlag,
	KeyManagerSeedFlag,
	SealedSeedFileFlag,
	SealingKeyFileFlag,
	AdminKeysFileFlag,
	ThresholdFlag,
	BootstrapTimeoutFlag,
}
