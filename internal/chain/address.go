package chain

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/address"
)

// ParseAddress accepts both raw ("0:<hex>") and user-friendly addresses.
func ParseAddress(s string) (*address.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty address")
	}
	if strings.Contains(s, ":") {
		addr, err := address.ParseRawAddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid raw address %q: %w", s, err)
		}
		return addr, nil
	}
	addr, err := address.ParseAddr(s)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr, nil
}

// CompareAddresses reports whether a and b point at the same account,
// regardless of encoding or bounce/testnet flags. Unparseable input never matches.
func CompareAddresses(a, b string) bool {
	left, err := ParseAddress(a)
	if err != nil {
		return false
	}
	right, err := ParseAddress(b)
	if err != nil {
		return false
	}
	return left.Workchain() == right.Workchain() && bytes.Equal(left.Data(), right.Data())
}
