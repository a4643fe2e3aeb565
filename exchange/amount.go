package exchange

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders a raw token amount as a decimal string with trailing zeros trimmed.
func FormatAmount(amount uint64, decimals uint8) (string, error) {
	if err := checkDecimals(decimals); err != nil {
		return "", err
	}
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
	return d.String(), nil
}

// ParseAmount converts a decimal string into raw token units. It rejects negative
// values, more fractional digits than decimals allows, and results above u64.
func ParseAmount(s string, decimals uint8) (uint64, error) {
	if err := checkDecimals(decimals); err != nil {
		return 0, err
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount: %w", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidAmount)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%q is negative: %w", s, ErrInvalidAmount)
	}

	raw := d.Shift(int32(decimals))
	if !raw.Equal(raw.Truncate(0)) {
		return 0, fmt.Errorf("%q has more than %d fractional digits: %w", s, decimals, ErrInvalidAmount)
	}

	bi := raw.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("%q: %w", s, ErrOverflow)
	}
	return bi.Uint64(), nil
}
