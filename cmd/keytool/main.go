package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruteri/secret-contract-enclave/contract"
	"github.com/ruteri/secret-contract-enclave/cryptoutils"
	"github.com/ruteri/secret-contract-enclave/interfaces"
	"github.com/ruteri/secret-contract-enclave/keymanager"
	"github.com/urfave/cli/v2"
)

var flagSeed *cli.StringFlag = &cli.StringFlag{
	Name:     "seed",
	EnvVars:  []string{"ENCLAVE_KM_SEED"},
	Required: true,
	Usage:    "hex-encoded 32-byte consensus seed",
}
var flagSealingPubkey *cli.StringFlag = &cli.StringFlag{
	Name:  "sealing-pubkey-file",
	Value: "sealing-public.pem",
	Usage: "Path to the sealing public key",
}
var flagSealingPrivkey *cli.StringFlag = &cli.StringFlag{
	Name:  "sealing-privkey-file",
	Value: "sealing-private.pem",
	Usage: "Path to the sealing private key",
}
var flagSender *cli.StringFlag = &cli.StringFlag{
	Name:     "sender",
	Required: true,
	Usage:    "sender address, bech32 or hex",
}
var flagHeight *cli.Uint64Flag = &cli.Uint64Flag{
	Name:     "height",
	Required: true,
	Usage:    "block height the contract was instantiated at",
}

func main() {
	app := &cli.App{
		Name:  "keytool",
		Usage: "Offline consensus seed and contract key utilities",
		Commands: []*cli.Command{
			{
				Name:  "gen-seed",
				Usage: "Print a new random consensus seed",
				Action: func(cCtx *cli.Context) error {
					seed := make([]byte, keymanager.SeedSize)
					if _, err := rand.Read(seed); err != nil {
						return err
					}
					fmt.Println(hex.EncodeToString(seed))
					return nil
				},
			},
			{
				Name:  "split-seed",
				Usage: "Split the seed into Shamir shares, one hex file per share",
				Flags: []cli.Flag{
					flagSeed,
					&cli.IntFlag{Name: "shares", Value: 3},
					&cli.IntFlag{Name: "threshold", Value: 2},
					&cli.StringFlag{Name: "out-dir", Value: "."},
				},
				Action: func(cCtx *cli.Context) error {
					seed, err := parseSeed(cCtx)
					if err != nil {
						return err
					}
					defer cryptoutils.Zeroize(seed)

					shares, err := keymanager.Split(seed, cCtx.Int("shares"), cCtx.Int("threshold"))
					if err != nil {
						return err
					}

					for i, share := range shares {
						path := filepath.Join(cCtx.String("out-dir"), fmt.Sprintf("share-%d.hex", i))
						if err := os.WriteFile(path, []byte(hex.EncodeToString(share)), 0600); err != nil {
							return err
						}
						fmt.Println(path)
					}
					return nil
				},
			},
			{
				Name:  "gen-sealing-key",
				Usage: "Generate the keypair the seed is sealed to",
				Flags: []cli.Flag{
					flagSealingPubkey,
					flagSealingPrivkey,
				},
				Action: func(cCtx *cli.Context) error {
					publicKeyPEM, privateKeyPEM, err := cryptoutils.NewSealingKeypair()
					if err != nil {
						return err
					}
					if err := os.WriteFile(cCtx.String(flagSealingPrivkey.Name), privateKeyPEM, 0600); err != nil {
						return err
					}
					return os.WriteFile(cCtx.String(flagSealingPubkey.Name), publicKeyPEM, 0644)
				},
			},
			{
				Name:  "seal-seed",
				Usage: "Seal the seed to a sealing public key",
				Flags: []cli.Flag{
					flagSeed,
					flagSealingPubkey,
					&cli.StringFlag{Name: "out", Value: "sealed-seed.bin"},
				},
				Action: func(cCtx *cli.Context) error {
					seed, err := parseSeed(cCtx)
					if err != nil {
						return err
					}
					defer cryptoutils.Zeroize(seed)

					publicKeyPEM, err := os.ReadFile(cCtx.String(flagSealingPubkey.Name))
					if err != nil {
						return err
					}

					sealed, err := cryptoutils.SealSeed(publicKeyPEM, seed)
					if err != nil {
						return err
					}
					return os.WriteFile(cCtx.String("out"), sealed, 0600)
				},
			},
			{
				Name:  "sender-id",
				Usage: "Print the sender id for a sender and block height",
				Flags: []cli.Flag{
					flagSender,
					flagHeight,
				},
				Action: func(cCtx *cli.Context) error {
					sender, err := parseAddr(cCtx.String(flagSender.Name))
					if err != nil {
						return err
					}
					senderID := contract.GenerateSenderID(sender, cCtx.Uint64(flagHeight.Name))
					fmt.Println(hex.EncodeToString(senderID[:]))
					return nil
				},
			},
			{
				Name:  "contract-key",
				Usage: "Derive the base64 contract key a contract was instantiated with",
				Flags: []cli.Flag{
					flagSeed,
					flagSender,
					flagHeight,
					&cli.StringFlag{Name: "code-file", Required: true},
					&cli.StringFlag{Name: "contract-address", Required: true, Usage: "bech32 or hex"},
				},
				Action: func(cCtx *cli.Context) error {
					seed, err := parseSeed(cCtx)
					if err != nil {
						return err
					}
					defer cryptoutils.Zeroize(seed)

					km, err := keymanager.NewFromSeed(seed)
					if err != nil {
						return err
					}
					defer km.Zero()

					sender, err := parseAddr(cCtx.String(flagSender.Name))
					if err != nil {
						return err
					}
					contractAddr, err := parseAddr(cCtx.String("contract-address"))
					if err != nil {
						return err
					}
					code, err := os.ReadFile(cCtx.String("code-file"))
					if err != nil {
						return err
					}

					env := interfaces.Env{
						Block:   interfaces.BlockInfo{Height: cCtx.Uint64(flagHeight.Name)},
						Message: interfaces.MessageInfo{Sender: sender},
					}

					validator := contract.NewValidator(km, contract.NewCallbackSigner(km), slog.Default())
					key, err := validator.GenerateEncryptionKey(env, code, contractAddr)
					if err != nil {
						return err
					}

					contractKey := key.ContractKey()
					fmt.Println(base64.StdEncoding.EncodeToString(contractKey[:]))
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func parseSeed(cCtx *cli.Context) ([]byte, error) {
	seed, err := hex.DecodeString(cCtx.String(flagSeed.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	if len(seed) != keymanager.SeedSize {
		return nil, keymanager.ErrInvalidSeed
	}
	return seed, nil
}

func parseAddr(addr string) (interfaces.CanonicalAddr, error) {
	if strings.HasPrefix(addr, interfaces.Bech32PrefixAccAddr+"1") {
		return interfaces.CanonicalAddrFromHuman(interfaces.HumanAddr(addr))
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(addr, "0x"))
	if err != nil {
		return nil, fmt.Errorf("address is neither bech32 nor hex: %w", err)
	}
	return raw, nil
}
