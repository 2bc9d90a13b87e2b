// Package signer turns a wallet credential into a uniform signing function.
// Local mnemonic wallets sign in-process. Every other wallet type hands the
// message to an external party (Ledger, the Signer companion app, a Keystone
// device) and waits for a single result through one pending slot.
package signer

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/event"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/tonsigner/tonsigner/internal/keystone"
	"github.com/tonsigner/tonsigner/internal/redact"
	"github.com/tonsigner/tonsigner/internal/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

var log = logger.GetOrCreate("signer")

// DefaultWatchdogTimeout is how long the dispatcher waits for a result
// after the app returns to the foreground from the companion app.
const DefaultWatchdogTimeout = 3000 * time.Millisecond

// SignFunc signs the hash of msg.
type SignFunc func(ctx context.Context, msg *cell.Cell) ([]byte, error)

// State of the pending slot.
type State int

const (
	StateIdle State = iota
	StateAwaitingExternalResult
)

func (s State) String() string {
	if s == StateAwaitingExternalResult {
		return "awaiting-external-result"
	}
	return "idle"
}

// Args is the DTO used to create a Dispatcher.
type Args struct {
	Credential wallet.Credential
	Vault      Vault
	Presenter  Presenter
	Launcher   Launcher
	Lifecycle  *Lifecycle
	Clock      mclock.Clock

	// ReturnURI is appended to launched deeplinks. Defaults to DefaultReturnURI.
	ReturnURI string
	// WatchdogTimeout defaults to DefaultWatchdogTimeout.
	WatchdogTimeout time.Duration
	// SettleDelay postpones SetSignerResult so a screen transition can finish.
	SettleDelay time.Duration
	// KeystoneOrigin names this app in ton-sign-requests.
	KeystoneOrigin string
}

// Dispatcher signs for one wallet. At most one external request is pending
// at a time.
type Dispatcher struct {
	cred        wallet.Credential
	vault       Vault
	presenter   Presenter
	launcher    Launcher
	lifecycle   *Lifecycle
	clock       mclock.Clock
	returnURI   string
	watchdog    time.Duration
	settleDelay time.Duration
	origin      string

	mu      sync.Mutex
	pending *pendingSignature
	nextID  uint64
}

// NewDispatcher validates args and builds a dispatcher.
func NewDispatcher(args Args) (*Dispatcher, error) {
	if err := checkArgs(args); err != nil {
		return nil, err
	}

	d := &Dispatcher{
		cred:        args.Credential,
		vault:       args.Vault,
		presenter:   args.Presenter,
		launcher:    args.Launcher,
		lifecycle:   args.Lifecycle,
		clock:       args.Clock,
		returnURI:   args.ReturnURI,
		watchdog:    args.WatchdogTimeout,
		settleDelay: args.SettleDelay,
		origin:      args.KeystoneOrigin,
	}
	if d.lifecycle == nil {
		d.lifecycle = NewLifecycle()
	}
	if d.clock == nil {
		d.clock = mclock.System{}
	}
	if d.returnURI == "" {
		d.returnURI = DefaultReturnURI
	}
	if d.watchdog <= 0 {
		d.watchdog = DefaultWatchdogTimeout
	}
	if d.origin == "" {
		d.origin = keystone.DefaultOrigin
	}
	return d, nil
}

func checkArgs(args Args) error {
	if err := args.Credential.Validate(); err != nil {
		return err
	}
	if args.Presenter == nil {
		return errNilPresenter
	}
	if args.Credential.Type == wallet.TypeRegular && args.Vault == nil {
		return errNilVault
	}
	return nil
}

// Credential is the wallet this dispatcher signs for.
func (d *Dispatcher) Credential() wallet.Credential {
	return d.cred
}

// State reports whether a request is waiting for an external result.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		return StateAwaitingExternalResult
	}
	return StateIdle
}

// IsSignerResolved reports whether nothing is pending.
func (d *Dispatcher) IsSignerResolved() bool {
	return d.State() == StateIdle
}

// GetSigner picks the signing strategy for the wallet.
func (d *Dispatcher) GetSigner(estimate bool) (SignFunc, error) {
	s, err := d.strategy(estimate)
	if err != nil {
		return nil, err
	}
	log.Trace("signer selected", "wallet", d.cred.Identifier, "strategy", s.Name())
	return s.Sign, nil
}

// SetSignerResult delivers a hex signature returned by the companion app.
// Without a pending request it does nothing beyond dismissing the
// signer-confirm screen.
func (d *Dispatcher) SetSignerResult(hexSignature string) {
	if d.settleDelay > 0 {
		d.clock.Sleep(d.settleDelay)
	}

	d.mu.Lock()
	p := d.pending
	d.mu.Unlock()

	if p != nil {
		log.Debug("signer result received", "wallet", d.cred.Identifier, "signature", redact.Short(hexSignature))
		d.settle(p, hexSignature, nil)
	}
	if dm, ok := d.presenter.(Dismisser); ok {
		dm.Dismiss(RouteSignerConfirm)
	}
}

// pendingSignature is the single outstanding external request.
type pendingSignature struct {
	id   uint64
	once sync.Once
	done chan settleResult

	mu       sync.Mutex
	req      *PresentationRequest
	timer    mclock.Timer
	sub      event.Subscription
	settled  bool
}

type settleResult struct {
	signature string
	err       error
}

// begin claims the pending slot.
func (d *Dispatcher) begin() (*pendingSignature, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		return nil, ErrAlreadyPending
	}
	d.nextID++
	p := &pendingSignature{id: d.nextID, done: make(chan settleResult, 1)}
	d.pending = p
	return p, nil
}

// settle resolves p exactly once, tearing down its watchdog, lifecycle
// subscription and screen, and frees the slot.
func (d *Dispatcher) settle(p *pendingSignature, signature string, err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.settled = true
		timer, sub, req := p.timer, p.sub, p.req
		p.timer, p.sub = nil, nil
		p.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		if sub != nil {
			sub.Unsubscribe()
		}
		if req != nil {
			if err == nil {
				req.Resolve(signature)
			} else {
				req.Close()
			}
		}

		d.mu.Lock()
		if d.pending == p {
			d.pending = nil
		}
		d.mu.Unlock()

		p.done <- settleResult{signature: signature, err: err}
	})
}

// present shows req and routes its outcome into p.
func (d *Dispatcher) present(ctx context.Context, p *pendingSignature, req *PresentationRequest) {
	p.mu.Lock()
	p.req = req
	p.mu.Unlock()

	if err := d.presenter.Present(ctx, req); err != nil {
		d.settle(p, "", fmt.Errorf("present %s: %w", req.Route, err))
		return
	}

	go func() {
		<-req.Done()
		res, _ := req.Outcome()
		if res.Canceled {
			d.settle(p, "", ErrCanceledAction)
			return
		}
		d.settle(p, res.Signature, nil)
	}()
}

// await blocks until p settles or ctx is done.
func (d *Dispatcher) await(ctx context.Context, p *pendingSignature) (string, error) {
	select {
	case res := <-p.done:
		return res.signature, res.err
	case <-ctx.Done():
		d.settle(p, "", errors.Join(ErrCanceledAction, ctx.Err()))
		res := <-p.done
		return res.signature, res.err
	}
}

func decodeSignature(hexSignature string) ([]byte, error) {
	if err := ValidateSignatureHex(hexSignature); err != nil {
		return nil, err
	}
	sig, _ := hex.DecodeString(hexSignature)
	return sig, nil
}

// MnemonicResult is the unlocked secret material of a regular wallet.
type MnemonicResult struct {
	Mnemonic []string
	Passcode string
	KeyPair  ed25519.PrivateKey
}

// Mnemonic unlocks the vault and returns its words, the passcode used and
// the key pair. Only regular wallets have one.
func (d *Dispatcher) Mnemonic(ctx context.Context) (*MnemonicResult, error) {
	if d.cred.Type != wallet.TypeRegular {
		return nil, ErrNotRegularWallet
	}

	v, err := d.unlock(ctx)
	if err != nil {
		return nil, err
	}
	defer v.Lock()

	words, err := v.Mnemonic()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}
	key, err := v.KeyPair()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}
	return &MnemonicResult{Mnemonic: words, Passcode: d.vault.LastPasscode(), KeyPair: key}, nil
}

func (d *Dispatcher) unlock(ctx context.Context) (UnlockedVault, error) {
	if d.vault == nil {
		return nil, ErrVaultUnavailable
	}
	v, err := d.vault.Unlock(ctx, d.cred.Identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}
	return v, nil
}

func (d *Dispatcher) privateKey(ctx context.Context) (ed25519.PrivateKey, error) {
	v, err := d.unlock(ctx)
	if err != nil {
		return nil, err
	}
	defer v.Lock()

	key, err := v.KeyPair()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultUnavailable, err)
	}
	return key, nil
}
