// Package exchange implements the fixed-point arithmetic used when quoting migrations:
// exchange-rate conversion with banker's rounding, decimal rescaling and penalty math.
// Every result is bounded by the ledger's unsigned 64-bit token amount.
package exchange

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// BasisPointsDenominator is the rate denominator: 10000 basis points is 1:1.
	BasisPointsDenominator = 10_000

	// MaxDecimals is the largest token precision accepted.
	MaxDecimals = 18
)

var (
	ErrOverflow        = errors.New("amount exceeds u64 range")
	ErrInvalidDecimals = errors.New("decimals out of range")
	ErrInvalidAmount   = errors.New("invalid amount")
)

var (
	denominator = uint256.NewInt(BasisPointsDenominator)
	maxU64      = uint256.NewInt(^uint64(0))
)

// Penalty splits an amount into the part withheld and the part paid out.
type Penalty struct {
	Penalty   uint64
	Remainder uint64
}

// ConvertByExchangeRate computes amount*rateBps/10000, rounding an exact half to the
// even quotient, then rescales from fromDecimals to toDecimals.
func ConvertByExchangeRate(amount, rateBps uint64, fromDecimals, toDecimals uint8) (uint64, error) {
	if err := checkDecimals(fromDecimals, toDecimals); err != nil {
		return 0, err
	}

	product := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(rateBps))
	quotient, remainder := new(uint256.Int).DivMod(product, denominator, new(uint256.Int))

	// Compare 2*remainder against the denominator to classify the fraction.
	twice := new(uint256.Int).Lsh(remainder, 1)
	switch twice.Cmp(denominator) {
	case 1:
		quotient.AddUint64(quotient, 1)
	case 0:
		if quotient.Uint64()&1 == 1 {
			quotient.AddUint64(quotient, 1)
		}
	}

	if quotient.Gt(maxU64) {
		return 0, fmt.Errorf("convert %d at %d bps: %w", amount, rateBps, ErrOverflow)
	}

	scaled, err := rescale(quotient, fromDecimals, toDecimals)
	if err != nil {
		return 0, fmt.Errorf("convert %d at %d bps: %w", amount, rateBps, err)
	}
	return scaled, nil
}

// Rescale moves amount between decimal precisions. Downscaling truncates.
func Rescale(amount uint64, fromDecimals, toDecimals uint8) (uint64, error) {
	if err := checkDecimals(fromDecimals, toDecimals); err != nil {
		return 0, err
	}
	return rescale(uint256.NewInt(amount), fromDecimals, toDecimals)
}

// ApplyPenalty withholds penaltyBps of amount, truncating the penalty.
func ApplyPenalty(amount, penaltyBps uint64) (Penalty, error) {
	if penaltyBps > BasisPointsDenominator {
		return Penalty{}, fmt.Errorf("penalty %d bps: %w", penaltyBps, ErrInvalidAmount)
	}

	product := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(penaltyBps))
	penalty := new(uint256.Int).Div(product, denominator).Uint64()

	return Penalty{Penalty: penalty, Remainder: amount - penalty}, nil
}

func rescale(v *uint256.Int, fromDecimals, toDecimals uint8) (uint64, error) {
	out := new(uint256.Int).Set(v)
	switch {
	case toDecimals > fromDecimals:
		out.Mul(out, pow10(toDecimals-fromDecimals))
	case toDecimals < fromDecimals:
		out.Div(out, pow10(fromDecimals-toDecimals))
	}
	if out.Gt(maxU64) {
		return 0, ErrOverflow
	}
	return out.Uint64(), nil
}

func pow10(exp uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(exp)))
}

func checkDecimals(decimals ...uint8) error {
	for _, d := range decimals {
		if d > MaxDecimals {
			return fmt.Errorf("%d: %w", d, ErrInvalidDecimals)
		}
	}
	return nil
}
