// Package keystone implements the Keystone air-gapped signing exchange:
// Uniform Resources (UR) carried over rotating QR codes, the ton-sign-request
// payload, and the confirm/pair screen models that consume scanned replies.
package keystone

import (
	"errors"
	"fmt"
	"strings"
)

const urScheme = "ur:"

// UR types used in the TON exchange.
const (
	TypeSignRequest = "ton-sign-request"
	TypeSignature   = "ton-signature"
	TypeHDKey       = "crypto-hdkey"
)

var (
	ErrInvalidUR       = errors.New("invalid UR")
	ErrInvalidScanType = errors.New("invalid qrcode type")
)

// UR is a typed CBOR payload.
type UR struct {
	Type string
	CBOR []byte
}

// NewUR validates typ and wraps payload.
func NewUR(typ string, payload []byte) (*UR, error) {
	if !isURType(typ) {
		return nil, fmt.Errorf("%w: bad type %q", ErrInvalidUR, typ)
	}
	return &UR{Type: typ, CBOR: payload}, nil
}

// String renders the single-part form "ur:<type>/<bytewords>".
func (u *UR) String() string {
	return urScheme + u.Type + "/" + encodeMinimal(u.CBOR)
}

// ParseUR parses a single-part UR. Multi-part input needs a Decoder.
func ParseUR(s string) (*UR, error) {
	typ, components, err := splitUR(s)
	if err != nil {
		return nil, err
	}
	if len(components) != 1 {
		return nil, fmt.Errorf("%w: multi-part UR needs a decoder", ErrInvalidUR)
	}

	payload, err := decodeMinimal(components[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUR, err)
	}
	return &UR{Type: typ, CBOR: payload}, nil
}

func splitUR(s string) (string, []string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, urScheme) {
		return "", nil, fmt.Errorf("%w: missing scheme", ErrInvalidUR)
	}

	parts := strings.Split(s[len(urScheme):], "/")
	if len(parts) < 2 || len(parts) > 3 {
		return "", nil, fmt.Errorf("%w: wrong number of path components", ErrInvalidUR)
	}
	if !isURType(parts[0]) {
		return "", nil, fmt.Errorf("%w: bad type %q", ErrInvalidUR, parts[0])
	}
	return parts[0], parts[1:], nil
}

func isURType(typ string) bool {
	if typ == "" {
		return false
	}
	for _, r := range typ {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return false
		}
	}
	return true
}
