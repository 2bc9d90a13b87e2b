package signer

import (
	"context"
	"crypto/ed25519"
)

// UnlockedVault is decrypted key material. Lock zeroes it.
type UnlockedVault interface {
	Mnemonic() ([]string, error)
	KeyPair() (ed25519.PrivateKey, error)
	Lock()
}

// Vault hands out unlocked vaults after the user authenticates.
type Vault interface {
	Unlock(ctx context.Context, walletID string) (UnlockedVault, error)
	LastPasscode() string
}

// Launcher opens a URL in another app.
type Launcher interface {
	OpenURL(ctx context.Context, url string) error
}

// Presenter shows a confirmation screen for req. The screen settles req
// through Resolve or Close.
type Presenter interface {
	Present(ctx context.Context, req *PresentationRequest) error
}

// Dismisser is implemented by presenters that can take a screen down on
// the dispatcher's behalf.
type Dismisser interface {
	Dismiss(route Route)
}
