package signer

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/tonsigner/tonsigner/internal/wallet"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// LedgerTransaction is a transfer the Ledger TON app signs as a whole.
type LedgerTransaction struct {
	To        *address.Address
	Amount    tlb.Coins
	SendMode  uint8
	Seqno     uint32
	Timeout   uint32
	Bounce    bool
	StateInit *cell.Cell
	Comment   string
}

// SignLedgerTransaction shows tx on the ledger-confirm screen and returns the
// signed external message body the device produced.
func (d *Dispatcher) SignLedgerTransaction(ctx context.Context, tx LedgerTransaction) (*cell.Cell, error) {
	if d.cred.Type != wallet.TypeLedger {
		return nil, ErrUnsupportedOperation
	}
	if tx.To == nil {
		return nil, fmt.Errorf("ledger transaction: missing destination")
	}

	p, err := d.begin()
	if err != nil {
		return nil, err
	}

	req := NewPresentationRequest(RouteLedgerConfirm, d.cred.Identifier)
	req.Ledger = &tx
	d.present(ctx, p, req)

	res, err := d.await(ctx, p)
	if err != nil {
		return nil, err
	}
	boc, err := hex.DecodeString(res)
	if err != nil {
		return nil, fmt.Errorf("%w: ledger body: %v", ErrInvalidSignature, err)
	}
	body, err := cell.FromBOC(boc)
	if err != nil {
		return nil, fmt.Errorf("%w: ledger body: %v", ErrInvalidSignature, err)
	}
	return body, nil
}
