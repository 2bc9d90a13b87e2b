package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tonsigner/tonsigner/internal/chain"
	"github.com/tonsigner/tonsigner/internal/tonapi"
)

var (
	ErrInvalidTxID      = errors.New("invalid transaction id")
	ErrActionNotFound   = errors.New("action index out of range")
	ErrEventNotFound    = errors.New("event not found")
	ErrManagerDestroyed = errors.New("history manager destroyed")
)

// Destination tells whether a transaction moved value into or out of the account.
type Destination string

const (
	DestinationIn      Destination = "in"
	DestinationOut     Destination = "out"
	DestinationUnknown Destination = "unknown"
)

// Action is an event action with its typed payload merged into the common fields.
type Action struct {
	Type          string
	Status        string
	SimplePreview tonapi.SimplePreview
	tonapi.ActionDetails
	Payload json.RawMessage
}

// Transaction is one action of an event, as the wallet lists it.
type Transaction struct {
	TxID             string
	Hash             string
	Lt               int64
	Timestamp        int64
	Extra            int64
	IsScam           bool
	InProgress       bool
	Account          tonapi.AccountAddress
	Action           Action
	Destination      Destination
	EncryptedComment *tonapi.EncryptedComment
}

// TxID joins an event id and an action index.
func TxID(eventID string, actionIndex int) string {
	return eventID + "_" + strconv.Itoa(actionIndex)
}

// ParseTxID splits "<eventId>_<actionIndex>". A missing index means 0.
func ParseTxID(txID string) (string, int, error) {
	eventID, idx, found := strings.Cut(txID, "_")
	if eventID == "" {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidTxID, txID)
	}
	if !found {
		return eventID, 0, nil
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidTxID, txID)
	}
	return eventID, n, nil
}

// mapAccountEvent turns action actionIndex of ev into a Transaction seen
// from accountID.
func mapAccountEvent(accountID string, ev tonapi.Event, actionIndex int) (*Transaction, error) {
	if actionIndex < 0 || actionIndex >= len(ev.Actions) {
		return nil, fmt.Errorf("%w: %s has %d actions, want %d", ErrActionNotFound, ev.EventID, len(ev.Actions), actionIndex)
	}
	raw := ev.Actions[actionIndex]

	details, err := raw.Details()
	if err != nil {
		return nil, err
	}
	action := Action{
		Type:          raw.Type,
		Status:        raw.Status,
		SimplePreview: raw.SimplePreview,
		ActionDetails: details,
		Payload:       raw.Payload,
	}

	tx := &Transaction{
		TxID:        TxID(ev.EventID, actionIndex),
		Hash:        ev.EventID,
		Lt:          ev.Lt,
		Timestamp:   ev.Timestamp,
		Extra:       ev.Extra,
		IsScam:      ev.IsScam,
		InProgress:  ev.InProgress,
		Account:     ev.Account,
		Action:      action,
		Destination: defineDestination(accountID, action),
	}
	if raw.Type == tonapi.ActionTonTransfer {
		tx.EncryptedComment = details.EncryptedComment
	}
	return tx, nil
}

func defineDestination(accountID string, action Action) Destination {
	if action.Recipient == nil {
		return DestinationUnknown
	}
	if chain.CompareAddresses(action.Recipient.Address, accountID) {
		return DestinationIn
	}
	return DestinationOut
}

// MapEvents flattens events into one Transaction per action. Actions whose
// payload cannot be decoded are skipped.
func MapEvents(accountID string, events []tonapi.Event) []Transaction {
	var out []Transaction
	for _, ev := range events {
		for i := range ev.Actions {
			tx, err := mapAccountEvent(accountID, ev, i)
			if err != nil {
				log.Debug("skipping action", "event", ev.EventID, "index", i, "error", err)
				continue
			}
			out = append(out, *tx)
		}
	}
	return out
}
