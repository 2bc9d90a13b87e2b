package signer

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/stretchr/testify/require"
	"github.com/tonsigner/tonsigner/internal/chain"
	"github.com/tonsigner/tonsigner/internal/securestore"
	"github.com/tonsigner/tonsigner/internal/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const testPasscode = "1234"

var testKDF = securestore.KDFParams{Time: 1, Memory: 1024, Threads: 1}

func testKey() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{5}, ed25519.SeedSize))
}

func testCredential(typ wallet.WalletType) wallet.Credential {
	cred := wallet.Credential{
		Identifier: "w-" + string(typ),
		Name:       "test",
		Type:       typ,
		PublicKey:  hex.EncodeToString(testKey().Public().(ed25519.PublicKey)),
		Version:    wallet.V4R2,
		Network:    chain.Mainnet,
	}
	switch typ {
	case wallet.TypeLedger:
		cred.Ledger = &wallet.LedgerMeta{DeviceID: "dev", DeviceModel: "nanoX"}
	case wallet.TypeKeystone:
		cred.Keystone = &wallet.KeystoneMeta{XFP: "f23f9fd2", Path: "m/44'/607'/0'"}
	}
	return cred
}

func testMessage(payload uint64) *cell.Cell {
	return cell.BeginCell().MustStoreUInt(payload, 64).EndCell()
}

type fakeLauncher struct {
	mu     sync.Mutex
	err    error
	urls   []string
	opened chan string
}

func newFakeLauncher(err error) *fakeLauncher {
	return &fakeLauncher{err: err, opened: make(chan string, 4)}
}

func (l *fakeLauncher) OpenURL(_ context.Context, url string) error {
	l.mu.Lock()
	l.urls = append(l.urls, url)
	l.mu.Unlock()
	l.opened <- url
	return l.err
}

type denyingVault struct{}

func (denyingVault) Unlock(context.Context, string) (UnlockedVault, error) {
	return nil, errors.New("passcode prompt dismissed")
}

func (denyingVault) LastPasscode() string { return "" }

type failingPresenter struct{}

func (failingPresenter) Present(context.Context, *PresentationRequest) error {
	return errors.New("no screen available")
}

type fixture struct {
	d         *Dispatcher
	presenter *ChannelPresenter
	launcher  *fakeLauncher
	lifecycle *Lifecycle
	clock     *mclock.Simulated
}

func newFixture(t *testing.T, typ wallet.WalletType, mutate func(*Args)) *fixture {
	t.Helper()
	f := &fixture{
		presenter: NewChannelPresenter(0),
		launcher:  newFakeLauncher(nil),
		lifecycle: NewLifecycle(),
		clock:     new(mclock.Simulated),
	}
	args := Args{
		Credential: testCredential(typ),
		Vault:      denyingVault{},
		Presenter:  f.presenter,
		Launcher:   f.launcher,
		Lifecycle:  f.lifecycle,
		Clock:      f.clock,
	}
	if mutate != nil {
		mutate(&args)
	}
	d, err := NewDispatcher(args)
	require.NoError(t, err)
	f.d = d
	return f
}

// regularFixture backs a regular wallet with a real vault.
func regularFixture(t *testing.T) (*fixture, wallet.Credential) {
	t.Helper()
	store, err := securestore.OpenDSN(":memory:", bytes.Repeat([]byte{2}, 32))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mgr := wallet.NewManager(store, testKDF)
	words, err := wallet.NewMnemonic()
	require.NoError(t, err)
	cred, err := mgr.ImportMnemonic(context.Background(), "main", words, testPasscode, wallet.V4R2, chain.Mainnet)
	require.NoError(t, err)

	vault := NewWalletVault(mgr, func(context.Context, string) (string, error) { return testPasscode, nil })
	f := newFixture(t, wallet.TypeRegular, func(a *Args) {
		a.Credential = cred
		a.Vault = vault
	})
	return f, cred
}

type signResult struct {
	sig []byte
	err error
}

func signAsync(ctx context.Context, fn SignFunc, msg *cell.Cell) <-chan signResult {
	out := make(chan signResult, 1)
	go func() {
		sig, err := fn(ctx, msg)
		out <- signResult{sig, err}
	}()
	return out
}

func (f *fixture) nextRequest(t *testing.T) *PresentationRequest {
	t.Helper()
	select {
	case req := <-f.presenter.Requests():
		return req
	case <-time.After(5 * time.Second):
		t.Fatal("no presentation request")
		return nil
	}
}

func waitResult(t *testing.T, ch <-chan signResult) signResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("signer did not settle")
		return signResult{}
	}
}

func waitState(t *testing.T, d *Dispatcher, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return d.State() == want }, 5*time.Second, time.Millisecond)
}
