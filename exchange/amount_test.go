package exchange

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatParseRoundTrip(t *testing.T) {
	amounts := []uint64{0, 1, 9, 10, 1_000_000, 123_456_789, 100_000_000_000, math.MaxUint64 - 1, math.MaxUint64}

	for d := uint8(0); d <= MaxDecimals; d++ {
		for _, a := range amounts {
			s, err := FormatAmount(a, d)
			require.NoError(t, err)

			back, err := ParseAmount(s, d)
			require.NoError(t, err, "parse %q at %d decimals", s, d)
			assert.Equal(t, a, back, "round trip %d at %d decimals via %q", a, d, s)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	s, err := FormatAmount(1_500_000_000, 9)
	require.NoError(t, err)
	assert.Equal(t, "1.5", s)

	s, err = FormatAmount(42, 0)
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	s, err = FormatAmount(1, 6)
	require.NoError(t, err)
	assert.Equal(t, "0.000001", s)

	_, err = FormatAmount(1, 19)
	assert.ErrorIs(t, err, ErrInvalidDecimals)
}

func TestParseAmount_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		dec   uint8
		want  error
	}{
		{"negative", "-1", 6, ErrInvalidAmount},
		{"not a number", "NaN", 6, ErrInvalidAmount},
		{"infinity", "Inf", 6, ErrInvalidAmount},
		{"garbage", "12abc", 6, ErrInvalidAmount},
		{"empty", "  ", 6, ErrInvalidAmount},
		{"too precise", "0.0000001", 6, ErrInvalidAmount},
		{"too large", "18446744073709551616", 0, ErrOverflow},
		{"too large scaled", "18446744073.709551616", 9, ErrOverflow},
		{"bad decimals", "1", 19, ErrInvalidDecimals},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAmount(tt.input, tt.dec)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseAmount_TrailingZerosAccepted(t *testing.T) {
	got, err := ParseAmount("1.500000000", 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), got)
}
