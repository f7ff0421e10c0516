package contract

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/secret-contract-enclave/cryptoutils"
	"github.com/ruteri/secret-contract-enclave/ffi"
	"github.com/ruteri/secret-contract-enclave/interfaces"
	"github.com/ruteri/secret-contract-enclave/keymanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSeed = bytes.Repeat([]byte{0x42}, keymanager.SeedSize)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestValidator(t *testing.T) (*Validator, *keymanager.KeyManager) {
	km, err := keymanager.NewFromSeed(testSeed)
	require.NoError(t, err)
	return NewValidator(km, NewCallbackSigner(km), testLogger()), km
}

func testIKM() interfaces.IKM {
	var ikm interfaces.IKM
	copy(ikm[:], testSeed)
	return ikm
}

func TestGenerateSenderID(t *testing.T) {
	sender := []byte("alice")

	id := GenerateSenderID(sender, 42)
	assert.Equal(t, id, GenerateSenderID(sender, 42), "sender id must be deterministic")

	expected := cryptoutils.Sha256(append([]byte("alice"), 0, 0, 0, 0, 0, 0, 0, 42))
	assert.Equal(t, interfaces.SenderID(expected), id, "height must be appended big-endian")

	assert.NotEqual(t, id, GenerateSenderID(sender, 43))
}

func TestCalcContractHash(t *testing.T) {
	code := []byte("contract_bytes")
	assert.Equal(t, interfaces.ContractHash(cryptoutils.Sha256(code)), CalcContractHash(code))
}

func TestGenerateContractIDDeterministic(t *testing.T) {
	ikm := testIKM()
	senderID := GenerateSenderID([]byte("alice"), 42)
	codeHash := CalcContractHash([]byte("contract_bytes"))
	addr := []byte("contract-address-20b")

	tag := GenerateContractID(ikm, senderID, codeHash, addr)
	assert.Equal(t, tag, GenerateContractID(ikm, senderID, codeHash, addr))

	// Independent computation of the two-stage construction.
	subKey, err := cryptoutils.DeriveKey(ikm[:], senderID[:])
	require.NoError(t, err)
	input := append(append(append([]byte{}, senderID[:]...), codeHash[:]...), addr...)
	assert.Equal(t, interfaces.AuthenticationTag(cryptoutils.HmacSha256(subKey[:], input)), tag)
}

func TestDerivationSensitivity(t *testing.T) {
	const samples = 128
	ikm := testIKM()
	baseSender := []byte("alice")
	baseCode := CalcContractHash([]byte("contract_bytes"))
	baseAddr := []byte("contract-address-20b")

	senderIDs := make(map[interfaces.SenderID]struct{})
	tags := make(map[interfaces.AuthenticationTag]string)
	record := func(tag interfaces.AuthenticationTag, label string) {
		if prev, exists := tags[tag]; exists {
			t.Fatalf("tag collision between %s and %s", prev, label)
		}
		tags[tag] = label
	}

	for i := 0; i < samples; i++ {
		// sender varies
		sender := []byte(fmt.Sprintf("sender-%d", i))
		id := GenerateSenderID(sender, 42)
		senderIDs[id] = struct{}{}
		record(GenerateContractID(ikm, id, baseCode, baseAddr), "sender "+string(sender))

		// height varies
		id = GenerateSenderID(baseSender, uint64(1000+i))
		senderIDs[id] = struct{}{}
		record(GenerateContractID(ikm, id, baseCode, baseAddr), fmt.Sprintf("height %d", 1000+i))

		baseID := GenerateSenderID(baseSender, 42)

		// code hash varies
		code := CalcContractHash([]byte(fmt.Sprintf("code-%d", i)))
		record(GenerateContractID(ikm, baseID, code, baseAddr), fmt.Sprintf("code %d", i))

		// address varies
		addr := []byte(fmt.Sprintf("address-%d", i))
		record(GenerateContractID(ikm, baseID, baseCode, addr), fmt.Sprintf("address %d", i))
	}

	assert.Len(t, senderIDs, 2*samples, "sender ids must not collide")
	assert.Len(t, tags, 4*samples)

	// The IKM is an input as well.
	otherIKM := ikm
	otherIKM[0] ^= 0x01
	baseID := GenerateSenderID(baseSender, 42)
	assert.NotEqual(t,
		GenerateContractID(ikm, baseID, baseCode, baseAddr),
		GenerateContractID(otherIKM, baseID, baseCode, baseAddr))
}

func TestValidateContractKeyRoundTrip(t *testing.T) {
	v, _ := newTestValidator(t)
	code := []byte("contract_bytes")
	addr := []byte("contract-address-20b")
	env := interfaces.Env{
		Block:   interfaces.BlockInfo{Height: 42},
		Message: interfaces.MessageInfo{Sender: interfaces.CanonicalAddr("alice")},
	}

	encKey, err := v.GenerateEncryptionKey(env, code, addr)
	require.NoError(t, err)
	key := encKey.ContractKey()

	assert.True(t, v.ValidateContractKey(key, addr, code))

	expected := interfaces.NewContractKey(GenerateSenderID([]byte("alice"), 42),
		GenerateContractID(testIKM(), GenerateSenderID([]byte("alice"), 42), CalcContractHash(code), addr))
	assert.Equal(t, expected, key)

	assert.False(t, v.ValidateContractKey(key, []byte("other-address"), code), "different address must fail")
	assert.False(t, v.ValidateContractKey(key, addr, []byte("other code")), "different code must fail")
}

func TestValidateContractKeyTamper(t *testing.T) {
	v, _ := newTestValidator(t)
	code := []byte("contract_bytes")
	addr := []byte("contract-address-20b")
	env := interfaces.Env{
		Block:   interfaces.BlockInfo{Height: 7},
		Message: interfaces.MessageInfo{Sender: interfaces.CanonicalAddr("bob")},
	}

	encKey, err := v.GenerateEncryptionKey(env, code, addr)
	require.NoError(t, err)
	key := encKey.ContractKey()

	for i := 0; i < interfaces.ContractKeyLength; i++ {
		tampered := key
		tampered[i] ^= 0x01
		assert.False(t, v.ValidateContractKey(tampered, addr, code), "flipping byte %d must invalidate the key", i)
	}
}

func TestEndToEndScenario(t *testing.T) {
	v, _ := newTestValidator(t)
	code := []byte("contract_bytes")
	addr, err := interfaces.CanonicalAddrFromHuman(mustHuman(t, bytes.Repeat([]byte{0xAB}, 20)))
	require.NoError(t, err)

	env := interfaces.Env{
		Block:    interfaces.BlockInfo{Height: 42},
		Message:  interfaces.MessageInfo{Sender: interfaces.CanonicalAddr("alice")},
		Contract: interfaces.ContractInfo{Address: addr},
	}

	// (1) a 64 byte key
	encKey, err := v.GenerateEncryptionKey(env, code, addr)
	require.NoError(t, err)
	require.Len(t, encKey, 64)

	// (2) sender id and the key's tag validate
	senderID := GenerateSenderID([]byte("alice"), 42)
	var tag interfaces.AuthenticationTag
	copy(tag[:], encKey[32:])
	assert.True(t, v.ValidateContractKey(interfaces.NewContractKey(senderID, tag), addr, code))

	// (3) sender id at height 43 with the old tag does not
	movedID := GenerateSenderID([]byte("alice"), 43)
	assert.False(t, v.ValidateContractKey(interfaces.NewContractKey(movedID, tag), addr, code))
}

func TestKeyManagerUnavailable(t *testing.T) {
	km, err := keymanager.NewLocked(keymanager.ShamirConfig{})
	require.NoError(t, err)
	v := NewValidator(km, NewCallbackSigner(km), testLogger())

	_, err = v.GenerateEncryptionKey(interfaces.Env{}, []byte("code"), []byte("addr"))
	assert.ErrorIs(t, err, ffi.ErrKeyManagerUnavailable)
	assert.ErrorIs(t, err, interfaces.ErrKeyManagerUnavailable)

	var key interfaces.ContractKey
	assert.False(t, v.ValidateContractKey(key, []byte("addr"), []byte("code")))

	valid, err := v.ValidateContractKeyErr(key, []byte("addr"), []byte("code"))
	assert.False(t, valid)
	assert.ErrorIs(t, err, ffi.ErrKeyManagerUnavailable)

	// Callbacks cannot be verified either.
	err = v.VerifyParams(interfaces.SigInfo{CallbackSig: []byte{1}}, interfaces.Env{}, interfaces.SecretMessage("m"))
	assert.ErrorIs(t, err, ffi.ErrFailedTxVerification)
}

func TestExtractContractKey(t *testing.T) {
	v, _ := newTestValidator(t)

	var key interfaces.ContractKey
	for i := range key {
		key[i] = byte(i)
	}

	extracted, err := v.ExtractContractKey(interfaces.Env{}.WithContractKey(key))
	require.NoError(t, err)
	assert.Equal(t, key, extracted)

	testCases := []struct {
		name string
		key  *string
	}{
		{name: "absent", key: nil},
		{name: "not base64", key: ptr("!!!not base64!!!")},
		{name: "too short", key: ptr(base64.StdEncoding.EncodeToString(key[:63]))},
		{name: "too long", key: ptr(base64.StdEncoding.EncodeToString(append(key[:], 0)))},
		{name: "empty", key: ptr("")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.ExtractContractKey(interfaces.Env{ContractKey: tc.key})
			assert.ErrorIs(t, err, ffi.ErrFailedContractAuthentication)
		})
	}
}

func TestValidateMsg(t *testing.T) {
	v, _ := newTestValidator(t)
	code := []byte("contract_bytes")
	codeHash := CalcContractHash(code)
	payload := []byte("ciphertext payload")

	got, err := v.ValidateMsg(append([]byte(codeHash.String()), payload...), code)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	upper := []byte(fmt.Sprintf("%X", codeHash[:]))
	got, err = v.ValidateMsg(append(upper, payload...), code)
	require.NoError(t, err, "uppercase hex is accepted")
	assert.Equal(t, payload, got)

	got, err = v.ValidateMsg([]byte(codeHash.String()), code)
	require.NoError(t, err, "empty payload is allowed")
	assert.Empty(t, got)

	otherHash := CalcContractHash([]byte("other code"))
	invalidHex := bytes.Repeat([]byte("zz"), interfaces.HashSize)

	testCases := []struct {
		name string
		msg  []byte
	}{
		{name: "shorter than prefix", msg: []byte(codeHash.String()[:HexEncodedHashSize-1])},
		{name: "empty", msg: nil},
		{name: "not hex", msg: append(invalidHex, payload...)},
		{name: "other code hash", msg: append([]byte(otherHash.String()), payload...)},
		{name: "raw hash instead of hex", msg: append(codeHash[:], codeHash[:]...)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.ValidateMsg(tc.msg, code)
			assert.ErrorIs(t, err, ffi.ErrValidationFailure)
		})
	}
}

// signer is a user account signing sign documents.
type signer struct {
	key    *ecdsa.PrivateKey
	pubKey cryptoutils.Secp256k1PubKey
}

func newSigner(t *testing.T) signer {
	key, err := cryptoutils.GenerateSecp256k1Key()
	require.NoError(t, err)
	return signer{key: key, pubKey: cryptoutils.PubKeyFromPrivate(key)}
}

func (s signer) addr() interfaces.CanonicalAddr {
	return interfaces.CanonicalAddr(s.pubKey.Address())
}

func (s signer) sign(t *testing.T, msgs ...interfaces.SignDocWasmMsg) interfaces.SigInfo {
	doc := interfaces.SignDoc{
		AccountNumber: "1",
		ChainID:       "secret-1",
		Msgs:          msgs,
		Sequence:      "0",
	}
	signBytes, err := json.Marshal(doc)
	require.NoError(t, err)
	return s.signRaw(t, signBytes)
}

func (s signer) signRaw(t *testing.T, signBytes []byte) interfaces.SigInfo {
	sig, err := cryptoutils.SignBytes(s.key, signBytes)
	require.NoError(t, err)
	return interfaces.SigInfo{
		SignBytes: signBytes,
		Signature: interfaces.CosmosSignature{PubKey: s.pubKey, Signature: sig},
	}
}

func mustHuman(t *testing.T, addr []byte) interfaces.HumanAddr {
	human, err := interfaces.HumanAddrFromCanonical(addr)
	require.NoError(t, err)
	return human
}

func ptr(s string) *string { return &s }

type paramsFixture struct {
	user         signer
	contractAddr interfaces.CanonicalAddr
	contractHum  interfaces.HumanAddr
	msg          interfaces.SecretMessage
	env          interfaces.Env
}

func newParamsFixture(t *testing.T) paramsFixture {
	user := newSigner(t)
	contractAddr := interfaces.CanonicalAddr(bytes.Repeat([]byte{0x11}, 20))
	codeHash := CalcContractHash([]byte("contract_bytes"))
	msg := interfaces.SecretMessage(append([]byte(codeHash.String()), []byte("encrypted")...))

	return paramsFixture{
		user:         user,
		contractAddr: contractAddr,
		contractHum:  mustHuman(t, contractAddr),
		msg:          msg,
		env: interfaces.Env{
			Block:    interfaces.BlockInfo{Height: 100, ChainID: "secret-1"},
			Message:  interfaces.MessageInfo{Sender: user.addr()},
			Contract: interfaces.ContractInfo{Address: contractAddr},
		},
	}
}

func (f paramsFixture) execute(funds interfaces.Coins) interfaces.SignDocWasmMsg {
	return interfaces.NewExecuteMsg(interfaces.ExecuteMsg{
		Sender:    mustHumanNoT(f.user.addr()),
		Contract:  f.contractHum,
		Msg:       base64.StdEncoding.EncodeToString(f.msg),
		SentFunds: funds,
	})
}

func mustHumanNoT(addr []byte) interfaces.HumanAddr {
	human, err := interfaces.HumanAddrFromCanonical(addr)
	if err != nil {
		panic(err)
	}
	return human
}

func TestVerifyParamsSignedExecute(t *testing.T) {
	v, _ := newTestValidator(t)
	f := newParamsFixture(t)

	sigInfo := f.user.sign(t, f.execute(nil))
	assert.NoError(t, v.VerifyParams(sigInfo, f.env, f.msg))

	// The matching sub-message does not have to be the first one.
	other := interfaces.NewExecuteMsg(interfaces.ExecuteMsg{
		Contract: f.contractHum,
		Msg:      base64.StdEncoding.EncodeToString([]byte("something else")),
	})
	sigInfo = f.user.sign(t, other, f.execute(nil))
	assert.NoError(t, v.VerifyParams(sigInfo, f.env, f.msg))
}

func TestVerifyParamsSignedInstantiate(t *testing.T) {
	v, _ := newTestValidator(t)
	f := newParamsFixture(t)

	instantiate := interfaces.NewInstantiateMsg(interfaces.InstantiateMsg{
		Sender:    mustHumanNoT(f.user.addr()),
		CodeID:    "1",
		Label:     "my contract",
		InitMsg:   base64.StdEncoding.EncodeToString(f.msg),
		InitFunds: interfaces.Coins{{Denom: "uscrt", Amount: "10"}},
	})
	sigInfo := f.user.sign(t, instantiate)

	env := f.env
	env.Message.SentFunds = interfaces.Coins{{Denom: "uscrt", Amount: "10"}}
	// The contract address is not signed for instantiation.
	env.Contract.Address = interfaces.CanonicalAddr(bytes.Repeat([]byte{0x22}, 20))
	assert.NoError(t, v.VerifyParams(sigInfo, env, f.msg))
}

func TestVerifyParamsSignedFailures(t *testing.T) {
	v, _ := newTestValidator(t)
	f := newParamsFixture(t)
	mallory := newSigner(t)

	validSigInfo := f.user.sign(t, f.execute(nil))

	wrongSig := validSigInfo
	wrongSig.Signature.Signature = append([]byte(nil), validSigInfo.Signature.Signature...)
	wrongSig.Signature.Signature[5] ^= 0xFF

	wrongContractEnv := f.env
	wrongContractEnv.Contract.Address = interfaces.CanonicalAddr(bytes.Repeat([]byte{0x33}, 20))

	malformedContractEnv := f.env
	malformedContractEnv.Contract.Address = nil

	testCases := []struct {
		name    string
		sigInfo interfaces.SigInfo
		env     interfaces.Env
		msg     interfaces.SecretMessage
		err     error
	}{
		{
			name:    "malformed sign doc",
			sigInfo: f.user.signRaw(t, []byte("{not json")),
			env:     f.env,
			msg:     f.msg,
			err:     ffi.ErrFailedToDeserialize,
		},
		{
			name:    "unknown message type",
			sigInfo: f.user.signRaw(t, []byte(`{"msgs":[{"type":"bank/MsgSend","value":{}}]}`)),
			env:     f.env,
			msg:     f.msg,
			err:     ffi.ErrFailedToDeserialize,
		},
		{
			name:    "tampered signature",
			sigInfo: wrongSig,
			env:     f.env,
			msg:     f.msg,
			err:     ffi.ErrFailedTxVerification,
		},
		{
			name:    "signed by someone else",
			sigInfo: mallory.sign(t, f.execute(nil)),
			env:     f.env,
			msg:     f.msg,
			err:     ffi.ErrFailedTxVerification,
		},
		{
			name:    "message not signed",
			sigInfo: validSigInfo,
			env:     f.env,
			msg:     interfaces.SecretMessage("another message"),
			err:     ffi.ErrFailedTxVerification,
		},
		{
			name:    "different contract",
			sigInfo: validSigInfo,
			env:     wrongContractEnv,
			msg:     f.msg,
			err:     ffi.ErrFailedTxVerification,
		},
		{
			name:    "malformed contract address",
			sigInfo: validSigInfo,
			env:     malformedContractEnv,
			msg:     f.msg,
			err:     ffi.ErrFailedTxVerification,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.VerifyParams(tc.sigInfo, tc.env, tc.msg)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestVerifyParamsSignatureOverOtherBytes(t *testing.T) {
	v, _ := newTestValidator(t)
	f := newParamsFixture(t)

	sigInfo := f.user.sign(t, f.execute(nil))
	other := f.user.sign(t, f.execute(interfaces.Coins{{Denom: "uscrt", Amount: "1"}}))
	sigInfo.Signature = other.Signature

	assert.ErrorIs(t, v.VerifyParams(sigInfo, f.env, f.msg), ffi.ErrFailedTxVerification)
}

func TestVerifyParamsFunds(t *testing.T) {
	v, _ := newTestValidator(t)
	f := newParamsFixture(t)

	a := interfaces.Coin{Denom: "uscrt", Amount: "100"}
	b := interfaces.Coin{Denom: "uatom", Amount: "5"}

	testCases := []struct {
		name   string
		signed interfaces.Coins
		sent   interfaces.Coins
		ok     bool
	}{
		{name: "none sent, none signed", signed: nil, sent: nil, ok: true},
		{name: "none sent, empty signed", signed: interfaces.Coins{}, sent: nil, ok: true},
		{name: "empty sent, empty signed", signed: interfaces.Coins{}, sent: interfaces.Coins{}, ok: true},
		{name: "none sent, funds signed", signed: interfaces.Coins{a}, sent: nil, ok: false},
		{name: "funds sent, none signed", signed: nil, sent: interfaces.Coins{a}, ok: false},
		{name: "equal", signed: interfaces.Coins{a, b}, sent: interfaces.Coins{a, b}, ok: true},
		{name: "different order", signed: interfaces.Coins{a, b}, sent: interfaces.Coins{b, a}, ok: false},
		{name: "different amount", signed: interfaces.Coins{a}, sent: interfaces.Coins{{Denom: "uscrt", Amount: "101"}}, ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sigInfo := f.user.sign(t, f.execute(tc.signed))
			env := f.env
			env.Message.SentFunds = tc.sent

			err := v.VerifyParams(sigInfo, env, f.msg)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ffi.ErrFailedTxVerification)
			}
		})
	}
}

func TestVerifyParamsCallback(t *testing.T) {
	v, km := newTestValidator(t)
	f := newParamsFixture(t)

	callingContract := interfaces.CanonicalAddr(bytes.Repeat([]byte{0x44}, 20))
	env := f.env
	env.Message.Sender = callingContract

	callbackSig, err := NewCallbackSigner(km).CreateCallbackSignature(callingContract, f.msg)
	require.NoError(t, err)

	// Accepted regardless of sign bytes and signature.
	sigInfo := interfaces.SigInfo{
		SignBytes:   []byte("garbage"),
		Signature:   interfaces.CosmosSignature{PubKey: []byte{1, 2, 3}, Signature: []byte{4}},
		CallbackSig: callbackSig,
	}
	assert.NoError(t, v.VerifyParams(sigInfo, env, f.msg))

	// Different message or sender.
	assert.ErrorIs(t, v.VerifyParams(sigInfo, env, interfaces.SecretMessage("other")), ffi.ErrFailedTxVerification)
	env.Message.Sender = f.user.addr()
	assert.ErrorIs(t, v.VerifyParams(sigInfo, env, f.msg), ffi.ErrFailedTxVerification)
}

func TestVerifyParamsCallbackNoFallback(t *testing.T) {
	v, _ := newTestValidator(t)
	f := newParamsFixture(t)

	// A perfectly valid signed transaction does not rescue a bad callback signature.
	sigInfo := f.user.sign(t, f.execute(nil))
	require.NoError(t, v.VerifyParams(sigInfo, f.env, f.msg))

	sigInfo.CallbackSig = bytes.Repeat([]byte{0xAA}, 32)
	assert.ErrorIs(t, v.VerifyParams(sigInfo, f.env, f.msg), ffi.ErrFailedTxVerification)

	sigInfo.CallbackSig = []byte{}
	assert.ErrorIs(t, v.VerifyParams(sigInfo, f.env, f.msg), ffi.ErrFailedTxVerification, "an empty callback signature is still a callback")
}

func TestCreateCallbackSignature(t *testing.T) {
	var key [32]byte
	copy(key[:], "callback key")
	sender := interfaces.CanonicalAddr("sender")
	msg := interfaces.SecretMessage("msg")

	sig := CreateCallbackSignature(key, sender, msg)
	assert.Equal(t, cryptoutils.HmacSha256(key[:], []byte("sendermsg")), sig)
	assert.NotEqual(t, sig, CreateCallbackSignature(key, interfaces.CanonicalAddr("sende"), interfaces.SecretMessage("rmsg2")))
}
