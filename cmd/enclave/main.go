package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ruteri/secret-contract-enclave/api/adminhandler"
	"github.com/ruteri/secret-contract-enclave/api/ecallhandler"
	"github.com/ruteri/secret-contract-enclave/api/server"
	"github.com/ruteri/secret-contract-enclave/bridge"
	"github.com/ruteri/secret-contract-enclave/cmd/flags"
	"github.com/ruteri/secret-contract-enclave/enclave"
	"github.com/ruteri/secret-contract-enclave/interfaces"
	"github.com/ruteri/secret-contract-enclave/keymanager"
	"github.com/ruteri/secret-contract-enclave/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "secret-contract-enclave",
		Usage: "Serve the contract enclave ecall API",
		Flags: append(append([]cli.Flag{
			flags.ListenAddrFlag,
			flags.CodeStoreFlag,
			flags.QueryGasLimitFlag,
			flags.MaxBodySizeFlag,
		}, flags.KeyManagerFlags...), flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			km, err := loadKeyManager(cCtx, logger)
			if err != nil {
				logger.Error("Failed to set up key manager", "err", err)
				return err
			}
			defer km.Zero()

			var codeStore interfaces.StorageBackend
			if uris := cCtx.StringSlice(flags.CodeStoreFlag.Name); len(uris) > 0 {
				locations, err := storage.ParseLocations(uris)
				if err != nil {
					logger.Error("Invalid code store location", "err", err)
					return err
				}

				codeStore, err = storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
				if err != nil {
					logger.Error("Failed to create code store", "err", err)
					return err
				}
				logger.Info("Code store configured", "backends", len(locations))
			}

			memory := bridge.NewMemory()
			enclaveCfg := enclave.Config{
				KeyManager:    km,
				Memory:        memory,
				Log:           logger,
				QueryGasLimit: cCtx.Uint64(flags.QueryGasLimitFlag.Name),
			}
			if codeStore != nil {
				enclaveCfg.CodeLoader = bridge.NewCodeOcall(codeStore, logger)
			}

			e, err := enclave.New(enclaveCfg)
			if err != nil {
				logger.Error("Failed to create enclave", "err", err)
				return err
			}

			cfg := flags.ConfigureServer(cCtx, logger)
			srv, err := server.New(cfg,
				ecallhandler.NewHandler(e, memory, codeStore, logger),
				adminhandler.NewAdminHandler(km, logger),
			)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			srv.RunInBackground()
			defer srv.Shutdown()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !km.IsUnlocked() {
				if err := waitForUnlock(ctx, km, cCtx.Int(flags.BootstrapTimeoutFlag.Name), logger); err != nil {
					if ctx.Err() != nil {
						logger.Info("Shutdown signal received")
						return nil
					}
					return err
				}
			}

			logger.Info("Enclave is running, press Ctrl+C to stop")
			<-ctx.Done()
			logger.Info("Shutdown signal received")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadKeyManager(cCtx *cli.Context, logger *slog.Logger) (*keymanager.KeyManager, error) {
	switch kmType := cCtx.String(flags.KeyManagerTypeFlag.Name); kmType {
	case "seed":
		seedHex := cCtx.String(flags.KeyManagerSeedFlag.Name)
		if seedHex == "" {
			return nil, errors.New("km-seed is required for km-type 'seed'")
		}
		seed, err := hex.DecodeString(seedHex)
		if err != nil {
			return nil, fmt.Errorf("invalid km-seed: %w", err)
		}
		logger.Info("Using key manager from seed")
		return keymanager.NewFromSeed(seed)

	case "sealed":
		sealingKeyFile := cCtx.String(flags.SealingKeyFileFlag.Name)
		sealedSeedFile := cCtx.String(flags.SealedSeedFileFlag.Name)
		if sealingKeyFile == "" || sealedSeedFile == "" {
			return nil, errors.New("km-sealing-key-file and km-sealed-seed are required for km-type 'sealed'")
		}
		sealingKey, err := os.ReadFile(sealingKeyFile)
		if err != nil {
			return nil, err
		}
		sealed, err := os.ReadFile(sealedSeedFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Using key manager from sealed seed", "file", sealedSeedFile)
		return keymanager.NewFromSealedSeed(sealingKey, sealed)

	case "shamir":
		adminKeysFile := cCtx.String(flags.AdminKeysFileFlag.Name)
		if adminKeysFile == "" {
			return nil, errors.New("km-admin-keys-file is required for km-type 'shamir'")
		}

		logger.Info("Loading admin keys", "file", adminKeysFile)
		f, err := os.Open(adminKeysFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		adminKeys, err := keymanager.LoadAdminKeys(f)
		if err != nil {
			return nil, err
		}

		logger.Info("Using locked key manager, waiting for admin shares",
			"admins", len(adminKeys), "threshold", cCtx.Int(flags.ThresholdFlag.Name))
		return keymanager.NewLocked(keymanager.ShamirConfig{
			Threshold:    cCtx.Int(flags.ThresholdFlag.Name),
			AdminPubKeys: adminKeys,
		})

	default:
		return nil, fmt.Errorf("invalid km-type: %s", kmType)
	}
}

func waitForUnlock(ctx context.Context, km *keymanager.KeyManager, timeoutSeconds int, logger *slog.Logger) error {
	if timeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		defer cancel()
	}

	logger.Info("Waiting for key manager unlock", "timeout", timeoutSeconds)
	if err := km.WaitUnlocked(ctx); err != nil {
		logger.Error("Key manager was not unlocked", "err", err)
		return err
	}
	logger.Info("Key manager unlocked, enclave is fully operational")
	return nil
}
