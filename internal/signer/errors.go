package signer

import (
	"errors"

	"github.com/tonsigner/tonsigner/internal/keystone"
	"github.com/tonsigner/tonsigner/internal/tonapi"
)

var (
	ErrVaultUnavailable     = errors.New("vault unavailable")
	ErrCanceledAction       = errors.New("action canceled")
	ErrUnsupportedOperation = errors.New("operation not supported by this wallet")
	ErrAlreadyPending       = errors.New("another signature request is pending")
	ErrNotRegularWallet     = errors.New("only regular wallets have mnemonics")
	ErrInvalidSignature     = errors.New("invalid signature")

	ErrInvalidScanType = keystone.ErrInvalidScanType
	ErrNetworkFailure  = tonapi.ErrNetworkFailure
)

var (
	errNilPresenter    = errors.New("nil presenter")
	errNilVault        = errors.New("nil vault for a regular wallet")
	errInvalidDeeplink = errors.New("invalid signer deeplink")
)
