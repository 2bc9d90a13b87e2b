package wallet

import (
	"crypto/ed25519"
	"fmt"

	"github.com/tonsigner/tonsigner/internal/chain"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	tonwallet "github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Contract is a wallet contract derived from a public key.
type Contract struct {
	Address   *address.Address
	StateInit *cell.Cell
}

func versionConfig(v Version) (tonwallet.VersionConfig, error) {
	switch v {
	case V3R2:
		return tonwallet.V3R2, nil
	case V4R2, "":
		return tonwallet.V4R2, nil
	default:
		return nil, fmt.Errorf("unsupported wallet version: %s", v)
	}
}

// NewContract derives the workchain 0 wallet contract for pub.
func NewContract(pub ed25519.PublicKey, v Version, network chain.Network) (*Contract, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKey
	}

	cfg, err := versionConfig(v)
	if err != nil {
		return nil, err
	}

	stateInit, err := tonwallet.GetStateInit(pub, cfg, tonwallet.DefaultSubwallet)
	if err != nil {
		return nil, fmt.Errorf("build state init: %w", err)
	}
	stateInitCell, err := tlb.ToCell(stateInit)
	if err != nil {
		return nil, fmt.Errorf("serialize state init: %w", err)
	}

	addr, err := tonwallet.AddressFromPubKey(pub, cfg, tonwallet.DefaultSubwallet)
	if err != nil {
		return nil, fmt.Errorf("derive address: %w", err)
	}
	if network == chain.Testnet {
		addr.SetTestnetOnly(true)
	}

	return &Contract{Address: addr, StateInit: stateInitCell}, nil
}

// RawAddress returns the "<workchain>:<hex>" form.
func (c *Contract) RawAddress() string {
	return fmt.Sprintf("%d:%x", c.Address.Workchain(), c.Address.Data())
}
