package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ruteri/secret-contract-enclave/api/clients"
	"github.com/ruteri/secret-contract-enclave/keymanager"
	"github.com/urfave/cli/v2"
)

var flagEnclaveServer *cli.StringFlag = &cli.StringFlag{
	Name:  "enclave-addr",
	Value: "http://127.0.0.1:8080",
	Usage: "Enclave API address",
}
var flagAdminPrivkey *cli.StringFlag = &cli.StringFlag{
	Name:  "admin-privkey-file",
	Value: "admin-private.pem",
	Usage: "Path to admin private key",
}
var flagAdminPubkey *cli.StringFlag = &cli.StringFlag{
	Name:  "admin-pubkey-file",
	Value: "admin-public.pem",
	Usage: "Path to admin public key",
}
var flagAdminsFile *cli.StringFlag = &cli.StringFlag{
	Name:  "admin-keys-file",
	Value: "admin-keys.json",
	Usage: "Path to the admin keys file loaded by the enclave",
}
var flagShareFile *cli.StringFlag = &cli.StringFlag{
	Name:  "share-file",
	Value: "share.hex",
	Usage: "Path to the hex-encoded Shamir share",
}
var flagWait *cli.DurationFlag = &cli.DurationFlag{
	Name:  "wait",
	Value: 0,
	Usage: "After submitting, wait this long for the key manager to unlock",
}

func main() {
	app := &cli.App{
		Name:           "enclave admin client",
		Usage:          "Manage admin keys and unlock the enclave key manager",
		DefaultCommand: "status",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Print the key manager state",
				Flags: []cli.Flag{
					flagEnclaveServer,
				},
				Action: func(cCtx *cli.Context) error {
					adminClient := clients.NewAdminClient(cCtx.String(flagEnclaveServer.Name), "", nil)
					status, err := adminClient.GetStatus()
					if err != nil {
						return err
					}

					if status.Unlocked {
						fmt.Println("unlocked")
					} else {
						fmt.Printf("locked (%d/%d shares)\n", status.ReceivedShares, status.Threshold)
					}
					return nil
				},
			},
			{
				Name:  "generate-admin",
				Usage: "Generate an admin P-256 keypair",
				Flags: []cli.Flag{
					flagAdminPrivkey,
					flagAdminPubkey,
				},
				Action: func(cCtx *cli.Context) error {
					privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
					if err != nil {
						return fmt.Errorf("failed to generate ECDSA key: %w", err)
					}

					privateKeyBytes, err := x509.MarshalECPrivateKey(privateKey)
					if err != nil {
						return fmt.Errorf("failed to marshal private key: %w", err)
					}
					privateKeyPEM := pem.EncodeToMemory(&pem.Block{
						Type:  "EC PRIVATE KEY",
						Bytes: privateKeyBytes,
					})

					publicKeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
					if err != nil {
						return fmt.Errorf("failed to marshal public key: %w", err)
					}
					publicKeyPEM := pem.EncodeToMemory(&pem.Block{
						Type:  "PUBLIC KEY",
						Bytes: publicKeyBytes,
					})

					if err := os.WriteFile(cCtx.String(flagAdminPrivkey.Name), privateKeyPEM, 0600); err != nil {
						return err
					}
					if err := os.WriteFile(cCtx.String(flagAdminPubkey.Name), publicKeyPEM, 0644); err != nil {
						return err
					}

					fmt.Println(keymanager.AdminID(publicKeyPEM))
					return nil
				},
			},
			{
				Name:  "generate-admins-file",
				Usage: "Collect admin public keys into the file passed to --km-admin-keys-file",
				Flags: []cli.Flag{
					flagAdminsFile,
					&cli.StringSliceFlag{
						Name:     "admin-pubkey-files",
						Required: true,
					},
				},
				Action: func(cCtx *cli.Context) error {
					config := keymanager.AdminsConfig{}

					for _, pubkey := range cCtx.StringSlice("admin-pubkey-files") {
						publicKeyPEM, err := os.ReadFile(pubkey)
						if err != nil {
							return err
						}
						if _, err := keymanager.ParseAdminPubKey(publicKeyPEM); err != nil {
							return fmt.Errorf("%s: %w", pubkey, err)
						}

						config.Admins = append(config.Admins, keymanager.AdminMetadata{
							ID:     keymanager.AdminID(publicKeyPEM),
							PubKey: string(publicKeyPEM),
						})
					}

					configBytes, err := json.MarshalIndent(config, "", "  ")
					if err != nil {
						return err
					}

					return os.WriteFile(cCtx.String(flagAdminsFile.Name), configBytes, 0644)
				},
			},
			{
				Name:  "submit-share",
				Usage: "Sign and submit this admin's share to a locked enclave",
				Flags: []cli.Flag{
					flagEnclaveServer,
					flagAdminPrivkey,
					flagAdminPubkey,
					flagShareFile,
					flagWait,
				},
				Action: func(cCtx *cli.Context) error {
					publicKeyPEM, err := os.ReadFile(cCtx.String(flagAdminPubkey.Name))
					if err != nil {
						return err
					}

					privateKeyPEM, err := os.ReadFile(cCtx.String(flagAdminPrivkey.Name))
					if err != nil {
						return err
					}

					pkBlock, _ := pem.Decode(privateKeyPEM)
					if pkBlock == nil {
						return errors.New("failed to decode admin private key PEM")
					}
					privateKey, err := x509.ParseECPrivateKey(pkBlock.Bytes)
					if err != nil {
						return err
					}

					shareHex, err := os.ReadFile(cCtx.String(flagShareFile.Name))
					if err != nil {
						return err
					}
					share, err := hex.DecodeString(strings.TrimSpace(string(shareHex)))
					if err != nil {
						return fmt.Errorf("invalid share file: %w", err)
					}

					adminClient := clients.NewAdminClient(cCtx.String(flagEnclaveServer.Name), keymanager.AdminID(publicKeyPEM), privateKey)
					status, err := adminClient.SubmitShare(share)
					if err != nil {
						return err
					}
					if status.Unlocked {
						fmt.Println("share accepted, key manager unlocked")
						return nil
					}
					fmt.Printf("share accepted (%d/%d shares)\n", status.ReceivedShares, status.Threshold)

					if wait := cCtx.Duration(flagWait.Name); wait > 0 {
						if err := adminClient.WaitUnlocked(wait, time.Second); err != nil {
							return err
						}
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
