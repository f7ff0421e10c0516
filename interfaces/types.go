// Package interfaces defines the domain types shared by the enclave components
// and the contracts between them, without implementation details.
package interfaces

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	// HashSize is the size of every content hash, sender id and tag.
	HashSize = 32

	// ContractKeyLength is the size of a ContractKey: sender id || tag.
	ContractKeyLength = HashSize + HashSize

	// Bech32PrefixAccAddr is the human readable part of account and contract addresses.
	Bech32PrefixAccAddr = "secret"
)

// CanonicalAddr is the raw byte form of an account or contract address.
// It is base64 encoded in JSON.
type CanonicalAddr []byte

// Equal compares two canonical addresses.
func (a CanonicalAddr) Equal(other CanonicalAddr) bool {
	return bytes.Equal(a, other)
}

// HumanAddr is the bech32 form of an address, e.g. secret1...
type HumanAddr string

// String returns the address as a string.
func (h HumanAddr) String() string {
	return string(h)
}

// HumanAddrFromCanonical converts a canonical address to its bech32 form.
func HumanAddrFromCanonical(addr CanonicalAddr) (HumanAddr, error) {
	if len(addr) == 0 {
		return "", errors.New("empty canonical address")
	}
	conv, err := bech32.ConvertBits(addr, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("could not convert address bits: %w", err)
	}
	encoded, err := bech32.Encode(Bech32PrefixAccAddr, conv)
	if err != nil {
		return "", fmt.Errorf("could not encode address: %w", err)
	}
	return HumanAddr(encoded), nil
}

// CanonicalAddrFromHuman parses a bech32 address and checks its prefix.
func CanonicalAddrFromHuman(addr HumanAddr) (CanonicalAddr, error) {
	hrp, data, err := bech32.Decode(string(addr))
	if err != nil {
		return nil, fmt.Errorf("invalid bech32 address: %w", err)
	}
	if hrp != Bech32PrefixAccAddr {
		return nil, fmt.Errorf("invalid address prefix %q, expected %q", hrp, Bech32PrefixAccAddr)
	}
	conv, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("could not convert address bits: %w", err)
	}
	return CanonicalAddr(conv), nil
}

// Coin is a single denomination amount. Amount is kept as the decimal string
// the user signed so that comparisons are exact.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// Coins is an ordered list of coins. A nil list and an empty list are equal.
type Coins []Coin

// Equal compares two coin lists element-wise, in order.
func (c Coins) Equal(other Coins) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// BlockInfo is the chain context of the block being executed.
type BlockInfo struct {
	Height  uint64 `json:"height"`
	Time    uint64 `json:"time"`
	ChainID string `json:"chain_id"`
}

// MessageInfo describes who sent the message and the funds attached to it.
// SentFunds == nil means no funds were attached.
type MessageInfo struct {
	Sender    CanonicalAddr `json:"sender"`
	SentFunds Coins         `json:"sent_funds"`
}

// ContractInfo identifies the contract being called.
type ContractInfo struct {
	Address CanonicalAddr `json:"address"`
}

// Env is the chain-provided context of a single call. It is immutable for the
// duration of the call.
type Env struct {
	Block       BlockInfo    `json:"block"`
	Message     MessageInfo  `json:"message"`
	Contract    ContractInfo `json:"contract"`
	ContractKey *string      `json:"contract_key,omitempty"`
}

// WithContractKey returns a copy of the environment carrying the base64
// encoded contract key.
func (e Env) WithContractKey(key ContractKey) Env {
	encoded := base64.StdEncoding.EncodeToString(key[:])
	e.ContractKey = &encoded
	return e
}

// SecretMessage is an encrypted contract call payload exactly as received at
// the enclave boundary.
type SecretMessage []byte
