package interfaces

import (
	"encoding/json"
	"fmt"
)

// CosmosSignature is the signature of the transaction signer together with the
// public key it should verify under.
type CosmosSignature struct {
	// PubKey is a 33-byte compressed secp256k1 public key.
	PubKey []byte `json:"pub_key"`
	// Signature is the 64-byte R || S signature over SHA256(sign bytes).
	Signature []byte `json:"signature"`
}

// SigInfo carries the material needed to authenticate the sender of a message:
// either a callback signature from a calling contract, or the signed
// transaction document.
type SigInfo struct {
	SignBytes   []byte          `json:"sign_bytes"`
	Signature   CosmosSignature `json:"signature"`
	CallbackSig []byte          `json:"callback_sig,omitempty"`
}

// IsCallback reports whether a callback signature was supplied at all, even an empty one.
func (s SigInfo) IsCallback() bool {
	return s.CallbackSig != nil
}

// SignDocWasmMsgType discriminates the sub-messages of a sign document.
type SignDocWasmMsgType string

const (
	MsgTypeExecute     SignDocWasmMsgType = "wasm/MsgExecuteContract"
	MsgTypeInstantiate SignDocWasmMsgType = "wasm/MsgInstantiateContract"
)

// ExecuteMsg is a signed call to an existing contract.
type ExecuteMsg struct {
	Sender           HumanAddr `json:"sender"`
	Contract         HumanAddr `json:"contract"`
	Msg              string    `json:"msg"`
	SentFunds        Coins     `json:"sent_funds"`
	CallbackCodeHash string    `json:"callback_code_hash,omitempty"`
}

// InstantiateMsg is a signed contract instantiation. The contract address is
// not known when it is signed.
type InstantiateMsg struct {
	Sender           HumanAddr `json:"sender"`
	CodeID           string    `json:"code_id"`
	Label            string    `json:"label"`
	InitMsg          string    `json:"init_msg"`
	InitFunds        Coins     `json:"init_funds"`
	CallbackCodeHash string    `json:"callback_code_hash,omitempty"`
}

// SignDocWasmMsg is one sub-message of a sign document. Exactly one of
// Execute and Instantiate is set, according to Type.
type SignDocWasmMsg struct {
	Type        SignDocWasmMsgType
	Execute     *ExecuteMsg
	Instantiate *InstantiateMsg
}

// NewExecuteMsg wraps an execute message.
func NewExecuteMsg(msg ExecuteMsg) SignDocWasmMsg {
	return SignDocWasmMsg{Type: MsgTypeExecute, Execute: &msg}
}

// NewInstantiateMsg wraps an instantiate message.
func NewInstantiateMsg(msg InstantiateMsg) SignDocWasmMsg {
	return SignDocWasmMsg{Type: MsgTypeInstantiate, Instantiate: &msg}
}

// Payload returns the base64 encoded encrypted message the signer agreed to.
func (m SignDocWasmMsg) Payload() string {
	switch m.Type {
	case MsgTypeExecute:
		return m.Execute.Msg
	case MsgTypeInstantiate:
		return m.Instantiate.InitMsg
	}
	return ""
}

// Funds returns the funds the signer agreed to attach.
func (m SignDocWasmMsg) Funds() Coins {
	switch m.Type {
	case MsgTypeExecute:
		return m.Execute.SentFunds
	case MsgTypeInstantiate:
		return m.Instantiate.InitFunds
	}
	return nil
}

type signDocWasmMsgJSON struct {
	Type  SignDocWasmMsgType `json:"type"`
	Value json.RawMessage    `json:"value"`
}

// UnmarshalJSON decodes the amino JSON {"type": ..., "value": {...}} form.
// Unknown message types are rejected.
func (m *SignDocWasmMsg) UnmarshalJSON(data []byte) error {
	var raw signDocWasmMsgJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case MsgTypeExecute:
		var msg ExecuteMsg
		if err := json.Unmarshal(raw.Value, &msg); err != nil {
			return fmt.Errorf("invalid %s: %w", raw.Type, err)
		}
		*m = NewExecuteMsg(msg)
	case MsgTypeInstantiate:
		var msg InstantiateMsg
		if err := json.Unmarshal(raw.Value, &msg); err != nil {
			return fmt.Errorf("invalid %s: %w", raw.Type, err)
		}
		*m = NewInstantiateMsg(msg)
	default:
		return fmt.Errorf("unknown sign doc message type %q", raw.Type)
	}
	return nil
}

// MarshalJSON encodes the message in amino JSON form.
func (m SignDocWasmMsg) MarshalJSON() ([]byte, error) {
	var value any
	switch m.Type {
	case MsgTypeExecute:
		value = m.Execute
	case MsgTypeInstantiate:
		value = m.Instantiate
	default:
		return nil, fmt.Errorf("unknown sign doc message type %q", m.Type)
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(signDocWasmMsgJSON{Type: m.Type, Value: encoded})
}

// SignDoc is the canonical JSON document a user signs to authorize a transaction.
type SignDoc struct {
	AccountNumber string           `json:"account_number"`
	ChainID       string           `json:"chain_id"`
	Fee           json.RawMessage  `json:"fee,omitempty"`
	Memo          string           `json:"memo"`
	Msgs          []SignDocWasmMsg `json:"msgs"`
	Sequence      string           `json:"sequence"`
}
