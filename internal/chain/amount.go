package chain

import (
	"math/big"
	"strings"
)

// NanoDecimals is the precision of TON and most jettons.
const NanoDecimals = 9

// FormatAmount renders a nano-denominated amount with the given decimals,
// trimming trailing zeros. It never goes through floating point.
func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}

	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, divisor, new(big.Int))

	out := whole.String()
	if decimals > 0 && frac.Sign() != 0 {
		fracStr := frac.String()
		fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
		out += "." + strings.TrimRight(fracStr, "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}

// FormatNano formats a TON amount given in nanotons
func FormatNano(nano int64) string {
	return FormatAmount(big.NewInt(nano), NanoDecimals)
}
