package contract

import (
	"crypto/hmac"
	"encoding/base64"
	"encoding/json"

	"github.com/ruteri/secret-contract-enclave/cryptoutils"
	"github.com/ruteri/secret-contract-enclave/ffi"
	"github.com/ruteri/secret-contract-enclave/interfaces"
)

// VerifyParams authenticates msg. With a callback signature present, the
// signature must be the callback MAC of (sender, msg); there is no fallback to
// the signed transaction. Otherwise sign bytes must be a valid sign document,
// signed by the sender, containing msg, addressed to this contract and with the
// funds actually sent.
//
// Which sub-check failed is only logged. Callers see FailedTxVerification, or
// FailedToDeserialize for a malformed sign document.
func (v *Validator) VerifyParams(sigInfo interfaces.SigInfo, env interfaces.Env, msg interfaces.SecretMessage) error {
	v.log.Debug("verifying message signatures")

	if sigInfo.IsCallback() {
		if v.verifyCallbackSig(sigInfo.CallbackSig, env.Message.Sender, msg) {
			v.log.Debug("message verified, sender is the calling contract")
			return nil
		}

		v.log.Error("callback signature verification failed")
		return ffi.ErrFailedTxVerification
	}

	var signDoc interfaces.SignDoc
	if err := json.Unmarshal(sigInfo.SignBytes, &signDoc); err != nil {
		v.log.Error("could not deserialize sign doc", "err", err, "length", len(sigInfo.SignBytes))
		return ffi.ErrFailedToDeserialize
	}

	pubKey := cryptoutils.Secp256k1PubKey(sigInfo.Signature.PubKey)
	if err := pubKey.VerifyBytes(sigInfo.SignBytes, sigInfo.Signature.Signature); err != nil {
		v.log.Error("transaction signature verification failed", "err", err)
		return ffi.ErrFailedTxVerification
	}

	if !v.verifySignatureParams(signDoc, sigInfo, env, msg) {
		v.log.Error("parameter verification failed")
		return ffi.ErrFailedTxVerification
	}

	v.log.Debug("parameters verified successfully")
	return nil
}

func (v *Validator) verifyCallbackSig(callbackSig []byte, sender interfaces.CanonicalAddr, msg interfaces.SecretMessage) bool {
	if len(callbackSig) == 0 {
		return false
	}

	if v.callbacks == nil {
		v.log.Error("no callback signer configured")
		return false
	}

	expected, err := v.callbacks.CreateCallbackSignature(sender, msg)
	if err != nil {
		v.log.Error("could not compute callback signature", "err", err)
		return false
	}

	if !hmac.Equal(callbackSig, expected) {
		v.log.Info("callback signature does not match", "length", len(callbackSig))
		return false
	}
	return true
}

func (v *Validator) verifySignatureParams(signDoc interfaces.SignDoc, sigInfo interfaces.SigInfo, env interfaces.Env, msg interfaces.SecretMessage) bool {
	if !verifySender(sigInfo.Signature, env.Message.Sender) {
		v.log.Error("sender verification failed")
		v.log.Debug("message sender does not match the signer", "sender", displayAddr(env.Message.Sender))
		return false
	}

	signed := findSignedMsg(signDoc, msg)
	if signed == nil {
		v.log.Error("message verification failed")
		v.log.Debug("message is not equal to any signed message", "signedMsgs", len(signDoc.Msgs), "length", len(msg))
		return false
	}

	if !v.verifyContract(*signed, env) {
		v.log.Error("contract address verification failed")
		return false
	}

	if !verifyFunds(*signed, env) {
		v.log.Error("funds verification failed")
		v.log.Debug("sent funds are not the same as the signed ones", "sent", env.Message.SentFunds, "signed", signed.Funds())
		return false
	}

	return true
}

func verifySender(sig interfaces.CosmosSignature, sender interfaces.CanonicalAddr) bool {
	pubKey := cryptoutils.Secp256k1PubKey(sig.PubKey)
	if pubKey.Validate() != nil {
		return false
	}
	return sender.Equal(pubKey.Address())
}

// findSignedMsg returns the first signed sub-message whose base64 payload
// decodes to exactly msg.
func findSignedMsg(signDoc interfaces.SignDoc, msg interfaces.SecretMessage) *interfaces.SignDocWasmMsg {
	for i := range signDoc.Msgs {
		payload, err := base64.StdEncoding.DecodeString(signDoc.Msgs[i].Payload())
		if err != nil {
			continue
		}
		if hmac.Equal(payload, msg) {
			return &signDoc.Msgs[i]
		}
	}
	return nil
}

// verifyContract only applies to execute messages: an instantiate message is
// signed before the contract address exists.
func (v *Validator) verifyContract(signed interfaces.SignDocWasmMsg, env interfaces.Env) bool {
	if signed.Type != interfaces.MsgTypeExecute {
		return true
	}

	humanAddr, err := interfaces.HumanAddrFromCanonical(env.Contract.Address)
	if err != nil {
		v.log.Debug("contract address sent to the enclave is malformed", "err", err)
		return false
	}

	if humanAddr != signed.Execute.Contract {
		v.log.Debug("contract address is not the signed one", "address", humanAddr, "signed", signed.Execute.Contract)
		return false
	}
	return true
}

// verifyFunds compares in order. No funds sent matches only an empty signed list.
func verifyFunds(signed interfaces.SignDocWasmMsg, env interfaces.Env) bool {
	return env.Message.SentFunds.Equal(signed.Funds())
}

func displayAddr(addr interfaces.CanonicalAddr) string {
	human, err := interfaces.HumanAddrFromCanonical(addr)
	if err != nil {
		return "<malformed>"
	}
	return human.String()
}
