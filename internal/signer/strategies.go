package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
	"github.com/tonsigner/tonsigner/internal/keystone"
	"github.com/tonsigner/tonsigner/internal/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// SigningStrategy is one way of producing a signature for a message cell.
type SigningStrategy interface {
	Name() string
	Sign(ctx context.Context, msg *cell.Cell) ([]byte, error)
}

func (d *Dispatcher) strategy(estimate bool) (SigningStrategy, error) {
	if estimate {
		if d.cred.Type == wallet.TypeLedger {
			return nil, ErrUnsupportedOperation
		}
		return estimateStrategy{}, nil
	}

	switch d.cred.Type {
	case wallet.TypeRegular:
		return mnemonicStrategy{d}, nil
	case wallet.TypeSignerDeeplink:
		return deeplinkStrategy{d}, nil
	case wallet.TypeSigner:
		return inAppStrategy{d}, nil
	case wallet.TypeLedger:
		return ledgerStrategy{d}, nil
	case wallet.TypeKeystone:
		return keystoneStrategy{d}, nil
	default:
		return nil, fmt.Errorf("%w: %s", wallet.ErrUnknownWalletType, d.cred.Type)
	}
}

// estimateKey is all zeros, public half included. Estimation signatures are
// never broadcast.
var estimateKey = make(ed25519.PrivateKey, ed25519.PrivateKeySize)

type estimateStrategy struct{}

func (estimateStrategy) Name() string { return "estimate" }

func (estimateStrategy) Sign(_ context.Context, msg *cell.Cell) ([]byte, error) {
	return ed25519.Sign(estimateKey, msg.Hash()), nil
}

type mnemonicStrategy struct{ d *Dispatcher }

func (mnemonicStrategy) Name() string { return "mnemonic" }

func (s mnemonicStrategy) Sign(ctx context.Context, msg *cell.Cell) ([]byte, error) {
	key, err := s.d.privateKey(ctx)
	if err != nil {
		return nil, err
	}
	defer zero(key)
	return ed25519.Sign(key, msg.Hash()), nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func messageBOC(msg *cell.Cell) []byte {
	return msg.ToBOCWithFlags(false)
}

func (d *Dispatcher) deeplink(msg *cell.Cell, withReturn bool) string {
	link := Deeplink{PublicKey: d.cred.PublicKey, Version: string(d.cred.Version), Body: messageBOC(msg)}
	if withReturn {
		link.Return = d.returnURI
	}
	return link.String()
}

// deeplinkStrategy launches the companion app and falls back to the in-app
// screen when it cannot be opened.
type deeplinkStrategy struct{ d *Dispatcher }

func (deeplinkStrategy) Name() string { return "signer-deeplink" }

func (s deeplinkStrategy) Sign(ctx context.Context, msg *cell.Cell) ([]byte, error) {
	d := s.d
	p, err := d.begin()
	if err != nil {
		return nil, err
	}

	d.watchForeground(p)

	launched := false
	if d.launcher != nil {
		if err := d.launcher.OpenURL(ctx, d.deeplink(msg, true)); err != nil {
			log.Debug("companion app launch failed", "wallet", d.cred.Identifier, "error", err)
		} else {
			launched = true
		}
	}
	if !launched {
		d.stopWatching(p)
		req := NewPresentationRequest(RouteSignerConfirm, d.cred.Identifier)
		req.Deeplink = d.deeplink(msg, false)
		req.Message = messageBOC(msg)
		req.MessageType = keystone.MessageTransaction
		d.present(ctx, p, req)
	}

	sig, err := d.await(ctx, p)
	if err != nil {
		return nil, err
	}
	return decodeSignature(sig)
}

// watchForeground arms the watchdog once the app comes back from the
// background: if no result arrives within the timeout, p is canceled.
func (d *Dispatcher) watchForeground(p *pendingSignature) {
	states := make(chan AppState, 4)
	sub := d.lifecycle.Subscribe(states)

	p.mu.Lock()
	p.sub = sub
	p.mu.Unlock()

	go func() {
		prev := AppActive
		for {
			select {
			case s := <-states:
				if s == AppActive && prev == AppBackground {
					d.armWatchdog(p)
				}
				prev = s
			case <-sub.Err():
				return
			}
		}
	}()
}

func (d *Dispatcher) armWatchdog(p *pendingSignature) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settled || p.timer != nil {
		return
	}
	p.timer = d.clock.AfterFunc(d.watchdog, func() {
		log.Debug("no signer result after returning to foreground", "wallet", d.cred.Identifier)
		d.settle(p, "", ErrCanceledAction)
	})
}

func (d *Dispatcher) stopWatching(p *pendingSignature) {
	p.mu.Lock()
	sub := p.sub
	p.sub = nil
	p.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// inAppStrategy always shows the signer-confirm screen.
type inAppStrategy struct{ d *Dispatcher }

func (inAppStrategy) Name() string { return "signer" }

func (s inAppStrategy) Sign(ctx context.Context, msg *cell.Cell) ([]byte, error) {
	d := s.d
	p, err := d.begin()
	if err != nil {
		return nil, err
	}

	req := NewPresentationRequest(RouteSignerConfirm, d.cred.Identifier)
	req.Deeplink = d.deeplink(msg, false)
	req.Message = messageBOC(msg)
	req.MessageType = keystone.MessageTransaction
	d.present(ctx, p, req)

	sig, err := d.await(ctx, p)
	if err != nil {
		return nil, err
	}
	return decodeSignature(sig)
}

// ledgerStrategy hands the message to the ledger-confirm screen, which owns
// the device session.
type ledgerStrategy struct{ d *Dispatcher }

func (ledgerStrategy) Name() string { return "ledger" }

func (s ledgerStrategy) Sign(ctx context.Context, msg *cell.Cell) ([]byte, error) {
	d := s.d
	p, err := d.begin()
	if err != nil {
		return nil, err
	}

	req := NewPresentationRequest(RouteLedgerConfirm, d.cred.Identifier)
	req.Message = messageBOC(msg)
	req.MessageType = keystone.MessageTransaction
	d.present(ctx, p, req)

	sig, err := d.await(ctx, p)
	if err != nil {
		return nil, err
	}
	return decodeSignature(sig)
}

type keystoneStrategy struct{ d *Dispatcher }

func (keystoneStrategy) Name() string { return "keystone" }

func (s keystoneStrategy) Sign(ctx context.Context, msg *cell.Cell) ([]byte, error) {
	return s.d.SignBufferWithKeystone(ctx, messageBOC(msg), keystone.MessageTransaction)
}

// SignBufferWithKeystone shows buf as a rotating ton-sign-request QR and
// waits for the scanned signature.
func (d *Dispatcher) SignBufferWithKeystone(ctx context.Context, buf []byte, messageType keystone.MessageType) ([]byte, error) {
	if d.cred.Type != wallet.TypeKeystone {
		return nil, ErrUnsupportedOperation
	}
	ksReq, err := d.keystoneRequest(buf, messageType)
	if err != nil {
		return nil, err
	}

	p, err := d.begin()
	if err != nil {
		return nil, err
	}

	req := NewPresentationRequest(RouteKeystoneConfirm, d.cred.Identifier)
	req.Message = buf
	req.MessageType = messageType
	req.Keystone = ksReq
	d.present(ctx, p, req)

	sig, err := d.await(ctx, p)
	if err != nil {
		return nil, err
	}
	return decodeSignature(sig)
}

func (d *Dispatcher) keystoneRequest(buf []byte, messageType keystone.MessageType) (*keystone.SignRequest, error) {
	pub, err := d.cred.PubKey()
	if err != nil {
		return nil, err
	}
	contract, err := wallet.NewContract(pub, d.cred.Version, d.cred.Network)
	if err != nil {
		return nil, err
	}

	req := &keystone.SignRequest{
		RequestID: uuid.New(),
		SignData:  buf,
		Type:      messageType,
		Address:   contract.Address.String(),
		Origin:    d.origin,
	}
	if d.cred.Keystone != nil {
		req.DerivationPath = d.cred.Keystone.Path
		req.XFP = d.cred.Keystone.XFP
	}
	// Validate the encoding now so the screen never gets an unencodable request.
	if _, err := req.ToUR(); err != nil {
		return nil, err
	}
	return req, nil
}

// Kind discriminates what a SignRequest carries.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindProof       Kind = "proof"
	KindEstimate    Kind = "estimate"
)

// SignRequest is an opaque payload plus its kind. Transaction and estimate
// payloads are BOCs; proof payloads are the ton_proof buffer to sign.
type SignRequest struct {
	Kind    Kind
	Payload []byte
}

// Sign routes req to the matching strategy.
func (d *Dispatcher) Sign(ctx context.Context, req SignRequest) ([]byte, error) {
	switch req.Kind {
	case KindTransaction, KindEstimate:
		msg, err := cell.FromBOC(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("parse message boc: %w", err)
		}
		sign, err := d.GetSigner(req.Kind == KindEstimate)
		if err != nil {
			return nil, err
		}
		return sign(ctx, msg)
	case KindProof:
		return d.signProof(ctx, req.Payload)
	default:
		return nil, fmt.Errorf("%w: sign request kind %q", ErrUnsupportedOperation, req.Kind)
	}
}

func (d *Dispatcher) signProof(ctx context.Context, buf []byte) ([]byte, error) {
	switch d.cred.Type {
	case wallet.TypeRegular:
		key, err := d.privateKey(ctx)
		if err != nil {
			return nil, err
		}
		defer zero(key)
		digest := sha256.Sum256(buf)
		return ed25519.Sign(key, digest[:]), nil
	case wallet.TypeKeystone:
		return d.SignBufferWithKeystone(ctx, buf, keystone.MessageTonProof)
	default:
		return nil, fmt.Errorf("%w: ton proof on %s wallet", ErrUnsupportedOperation, d.cred.Type)
	}
}
