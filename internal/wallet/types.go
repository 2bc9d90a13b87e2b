package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/tonsigner/tonsigner/internal/chain"
)

// WalletType selects how a wallet produces signatures.
type WalletType string

const (
	TypeRegular        WalletType = "regular"
	TypeSignerDeeplink WalletType = "signer-deeplink"
	TypeSigner         WalletType = "signer"
	TypeLedger         WalletType = "ledger"
	TypeKeystone       WalletType = "keystone"
)

// Version is the wallet contract version, e.g. "v4R2".
type Version string

const (
	V3R2 Version = "v3R2"
	V4R2 Version = "v4R2"
)

var (
	ErrInvalidPublicKey  = errors.New("invalid public key")
	ErrUnknownWalletType = errors.New("unknown wallet type")
	ErrMissingMetadata   = errors.New("hardware wallet metadata missing")
)

// LedgerMeta identifies the paired Ledger device.
type LedgerMeta struct {
	DeviceID     string `json:"device_id"`
	DeviceModel  string `json:"device_model"`
	AccountIndex int    `json:"account_index"`
}

// KeystoneMeta is the extended fingerprint and derivation path reported by
// the device at pairing time.
type KeystoneMeta struct {
	XFP  string `json:"xfp"`
	Path string `json:"path"`
}

// Credential describes one wallet. It is immutable once created; re-pairing
// replaces the whole record.
type Credential struct {
	Identifier string        `json:"identifier"`
	Name       string        `json:"name"`
	Type       WalletType    `json:"type"`
	PublicKey  string        `json:"pubkey"` // hex, 32 bytes
	Version    Version       `json:"version"`
	Network    chain.Network `json:"network"`
	Ledger     *LedgerMeta   `json:"ledger,omitempty"`
	Keystone   *KeystoneMeta `json:"keystone,omitempty"`
	CreatedAt  int64         `json:"created_at"`
}

// PubKey decodes the hex public key.
func (c Credential) PubKey() (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(c.PublicKey)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPublicKey, c.PublicKey)
	}
	return ed25519.PublicKey(raw), nil
}

// Validate checks the fields every signing strategy relies on.
func (c Credential) Validate() error {
	if c.Identifier == "" {
		return fmt.Errorf("wallet identifier is required")
	}
	if _, err := c.PubKey(); err != nil {
		return err
	}
	switch c.Type {
	case TypeRegular, TypeSigner, TypeSignerDeeplink:
	case TypeLedger:
		if c.Ledger == nil {
			return fmt.Errorf("%w: ledger", ErrMissingMetadata)
		}
	case TypeKeystone:
		if c.Keystone == nil {
			return fmt.Errorf("%w: keystone", ErrMissingMetadata)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownWalletType, c.Type)
	}
	return nil
}

// VersionTag is the lower-cased version used in deeplinks.
func (c Credential) VersionTag() string {
	return strings.ToLower(string(c.Version))
}

// IsHardware reports whether signing happens outside this process.
func (c Credential) IsHardware() bool {
	return c.Type != TypeRegular
}
