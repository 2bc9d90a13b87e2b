package tonapi

import (
	"encoding/json"
	"fmt"
)

// AccountAddress is how tonapi refers to an account inside events.
type AccountAddress struct {
	Address  string `json:"address"`
	Name     string `json:"name,omitempty"`
	IsScam   bool   `json:"is_scam"`
	IsWallet bool   `json:"is_wallet"`
}

type EncryptedComment struct {
	EncryptionType string `json:"encryption_type"`
	CipherText     string `json:"cipher_text"`
}

type TonTransferAction struct {
	Sender           AccountAddress    `json:"sender"`
	Recipient        AccountAddress    `json:"recipient"`
	Amount           int64             `json:"amount"`
	Comment          string            `json:"comment,omitempty"`
	EncryptedComment *EncryptedComment `json:"encrypted_comment,omitempty"`
}

type JettonPreview struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Image    string `json:"image,omitempty"`
}

type JettonTransferAction struct {
	Sender           *AccountAddress   `json:"sender,omitempty"`
	Recipient        *AccountAddress   `json:"recipient,omitempty"`
	SendersWallet    string            `json:"senders_wallet"`
	RecipientsWallet string            `json:"recipients_wallet"`
	Amount           string            `json:"amount"`
	Comment          string            `json:"comment,omitempty"`
	EncryptedComment *EncryptedComment `json:"encrypted_comment,omitempty"`
	Jetton           JettonPreview     `json:"jetton"`
}

// ActionDetails is the subset of fields shared by every typed action
// payload. Fields a given action type lacks stay zero.
type ActionDetails struct {
	Sender           *AccountAddress   `json:"sender,omitempty"`
	Recipient        *AccountAddress   `json:"recipient,omitempty"`
	Amount           json.RawMessage   `json:"amount,omitempty"`
	Comment          string            `json:"comment,omitempty"`
	EncryptedComment *EncryptedComment `json:"encrypted_comment,omitempty"`
}

type SimplePreview struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Value       string           `json:"value,omitempty"`
	Accounts    []AccountAddress `json:"accounts,omitempty"`
}

// Action types the wallet renders specially.
const (
	ActionTonTransfer    = "TonTransfer"
	ActionJettonTransfer = "JettonTransfer"
)

// Action is one step of an event. The typed payload sits under a key named
// after Type and is kept raw in Payload.
type Action struct {
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	SimplePreview SimplePreview   `json:"simple_preview"`
	Payload       json.RawMessage `json:"-"`
}

func (a *Action) UnmarshalJSON(b []byte) error {
	type plain Action
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*a = Action(p)
	if p.Type != "" {
		a.Payload = fields[p.Type]
	}
	return nil
}

func (a Action) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"type":           a.Type,
		"status":         a.Status,
		"simple_preview": a.SimplePreview,
	}
	if len(a.Payload) > 0 && a.Type != "" {
		out[a.Type] = a.Payload
	}
	return json.Marshal(out)
}

// Details decodes the common part of the typed payload.
func (a Action) Details() (ActionDetails, error) {
	var d ActionDetails
	if len(a.Payload) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(a.Payload, &d); err != nil {
		return d, fmt.Errorf("decode %s payload: %w", a.Type, err)
	}
	return d, nil
}

// TonTransfer decodes the payload of a TonTransfer action.
func (a Action) TonTransfer() (*TonTransferAction, error) {
	if a.Type != ActionTonTransfer {
		return nil, fmt.Errorf("action is %s, not %s", a.Type, ActionTonTransfer)
	}
	var t TonTransferAction
	if err := json.Unmarshal(a.Payload, &t); err != nil {
		return nil, fmt.Errorf("decode TonTransfer payload: %w", err)
	}
	return &t, nil
}

// Event groups the actions of one logical operation.
type Event struct {
	EventID    string         `json:"event_id"`
	Account    AccountAddress `json:"account"`
	Timestamp  int64          `json:"timestamp"`
	Actions    []Action       `json:"actions"`
	IsScam     bool           `json:"is_scam"`
	Lt         int64          `json:"lt"`
	InProgress bool           `json:"in_progress"`
	Extra      int64          `json:"extra"`
}

type AccountEvents struct {
	Events   []Event `json:"events"`
	NextFrom int64   `json:"next_from"`
}

type ProofDomain struct {
	LengthBytes uint32 `json:"length_bytes"`
	Value       string `json:"value"`
}

type ProofData struct {
	Timestamp int64       `json:"timestamp"`
	Domain    ProofDomain `json:"domain"`
	Signature string      `json:"signature"`
	Payload   string      `json:"payload"`
	StateInit string      `json:"state_init"`
}

// SignedProof is the body of POST /v2/wallet/auth/proof.
type SignedProof struct {
	Address string    `json:"address"`
	Proof   ProofData `json:"proof"`
}

type tonConnectPayload struct {
	Payload string `json:"payload"`
}

type authToken struct {
	Token string `json:"token"`
}

type apiError struct {
	Error string `json:"error"`
}
