package contract

import (
	"encoding/binary"
	"fmt"

	"github.com/ruteri/secret-contract-enclave/cryptoutils"
	"github.com/ruteri/secret-contract-enclave/ffi"
	"github.com/ruteri/secret-contract-enclave/interfaces"
)

// GenerateSenderID hashes the sender together with the block height.
func GenerateSenderID(sender []byte, blockHeight uint64) interfaces.SenderID {
	input := make([]byte, 0, len(sender)+8)
	input = append(input, sender...)
	input = binary.BigEndian.AppendUint64(input, blockHeight)
	return interfaces.SenderID(cryptoutils.Sha256(input))
}

// CalcContractHash is the content hash of contract code.
func CalcContractHash(code []byte) interfaces.ContractHash {
	return interfaces.ContractHash(cryptoutils.Sha256(code))
}

// GenerateContractID computes the authentication tag binding sender id, code and address.
func GenerateContractID(ikm interfaces.IKM, senderID interfaces.SenderID, codeHash interfaces.ContractHash, contractAddress []byte) interfaces.AuthenticationTag {
	authenticationKey := cryptoutils.DeriveSubKey(ikm, senderID[:])
	defer cryptoutils.Zeroize(authenticationKey[:])

	input := make([]byte, 0, len(senderID)+len(codeHash)+len(contractAddress))
	input = append(input, senderID[:]...)
	input = append(input, codeHash[:]...)
	input = append(input, contractAddress...)

	return interfaces.AuthenticationTag(cryptoutils.HmacSha256(authenticationKey[:], input))
}

// GenerateEncryptionKey derives the key material for a new contract instance.
// It fails only when the key manager cannot provide the IKM.
func (v *Validator) GenerateEncryptionKey(env interfaces.Env, code []byte, contractAddress []byte) (interfaces.EncryptionKey, error) {
	ikm, err := v.km.ConsensusStateIKM()
	if err != nil {
		v.log.Error("could not read consensus state ikm", "err", err)
		return interfaces.EncryptionKey{}, fmt.Errorf("%w: %w", ffi.ErrKeyManagerUnavailable, err)
	}
	defer cryptoutils.Zeroize(ikm[:])

	codeHash := CalcContractHash(code)
	senderID := GenerateSenderID(env.Message.Sender, env.Block.Height)
	tag := GenerateContractID(ikm, senderID, codeHash, contractAddress)

	return interfaces.EncryptionKey(interfaces.NewContractKey(senderID, tag)), nil
}
