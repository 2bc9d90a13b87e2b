package keystone

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// TonAccount is what a Keystone exports when pairing.
type TonAccount struct {
	PublicKey string // hex
	XFP       string
	Path      string
	Name      string
}

type cborHDKey struct {
	IsMaster bool         `cbor:"1,keyasint,omitempty"`
	KeyData  []byte       `cbor:"3,keyasint"`
	Origin   *cbor.RawTag `cbor:"6,keyasint,omitempty"`
	Name     string       `cbor:"9,keyasint,omitempty"`
}

// ParseTonAccount decodes a crypto-hdkey UR.
func ParseTonAccount(ur *UR) (*TonAccount, error) {
	if ur == nil || ur.Type != TypeHDKey {
		return nil, ErrInvalidScanType
	}

	var in cborHDKey
	if err := cbor.Unmarshal(ur.CBOR, &in); err != nil {
		return nil, fmt.Errorf("decode hdkey: %w", err)
	}
	if len(in.KeyData) != 32 {
		return nil, fmt.Errorf("%w: expected 32-byte ed25519 key, got %d bytes", ErrInvalidUR, len(in.KeyData))
	}

	acc := &TonAccount{PublicKey: hex.EncodeToString(in.KeyData), Name: in.Name}
	if in.Origin != nil {
		path, xfp, err := decodeKeypathTag(in.Origin)
		if err != nil {
			return nil, err
		}
		acc.Path, acc.XFP = path, xfp
	}
	return acc, nil
}

// NewHDKeyUR encodes an account the way a device exports it. Used by tests.
func NewHDKeyUR(acc TonAccount) (*UR, error) {
	key, err := hex.DecodeString(acc.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	out := cborHDKey{KeyData: key, Name: acc.Name}
	if acc.Path != "" {
		kp, err := newKeypath(acc.Path, acc.XFP)
		if err != nil {
			return nil, err
		}
		tag, err := rawTag(tagKeypath, kp)
		if err != nil {
			return nil, err
		}
		out.Origin = tag
	}
	payload, err := cbor.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode hdkey: %w", err)
	}
	return NewUR(TypeHDKey, payload)
}

// PairSession models the pairing screen.
type PairSession struct {
	mu        sync.Mutex
	account   *TonAccount
	onSuccess func(TonAccount)
}

// NewPairSession creates a session that reports the paired account once.
func NewPairSession(onSuccess func(TonAccount)) *PairSession {
	return &PairSession{onSuccess: onSuccess}
}

// HandleScan accepts only crypto-hdkey URs.
func (p *PairSession) HandleScan(ur *UR) ScanStatus {
	if ur == nil || ur.Type != TypeHDKey {
		return scanFailed(ErrInvalidScanType.Error())
	}
	acc, err := ParseTonAccount(ur)
	if err != nil {
		return scanFailed(err.Error())
	}

	p.mu.Lock()
	first := p.account == nil
	if first {
		p.account = acc
	}
	p.mu.Unlock()

	if first && p.onSuccess != nil {
		p.onSuccess(*acc)
	}
	return scanOK
}

// Account returns the paired account, if any.
func (p *PairSession) Account() (TonAccount, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.account == nil {
		return TonAccount{}, false
	}
	return *p.account, true
}
