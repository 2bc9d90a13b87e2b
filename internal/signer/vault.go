package signer

import (
	"context"
	"sync"

	"github.com/tonsigner/tonsigner/internal/wallet"
)

// PasscodePrompt asks the user for the passcode of walletID.
type PasscodePrompt func(ctx context.Context, walletID string) (string, error)

// WalletVault unlocks vaults kept by a wallet.Manager, prompting for the
// passcode each time.
type WalletVault struct {
	manager *wallet.Manager
	prompt  PasscodePrompt

	mu   sync.Mutex
	last string
}

// NewWalletVault creates a vault backed by manager.
func NewWalletVault(manager *wallet.Manager, prompt PasscodePrompt) *WalletVault {
	return &WalletVault{manager: manager, prompt: prompt}
}

func (v *WalletVault) Unlock(ctx context.Context, walletID string) (UnlockedVault, error) {
	passcode, err := v.prompt(ctx, walletID)
	if err != nil {
		return nil, err
	}
	uv, err := v.manager.Unlock(ctx, walletID, passcode)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.last = passcode
	v.mu.Unlock()
	return uv, nil
}

// LastPasscode is the passcode of the last successful unlock.
func (v *WalletVault) LastPasscode() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}
