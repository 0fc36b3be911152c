// Package price converts fixed-point on-chain and indexer prices into
// probabilities without losing precision on the way.
package price

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the fixed-point scale used by the market contracts (1e18).
const DefaultDecimals int32 = 18

// Baseline is the probability of a market with no trades.
const Baseline = 0.5

// KeyPrecision is the number of decimals kept when prices take part in keys.
const KeyPrecision int32 = 6

// ErrInvalidFixed is returned when a fixed-point value cannot be parsed.
var ErrInvalidFixed = errors.New("invalid fixed-point value")

// FromFixed scales a raw fixed-point integer down by 10^decimals.
func FromFixed(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// ParseFixed parses a base-10 (or 0x-prefixed hex) integer string and scales it
// down by 10^decimals.
func ParseFixed(s string, decimals int32) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidFixed)
	}

	raw := new(big.Int)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	if _, ok := raw.SetString(s, base); !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidFixed, s)
	}
	return FromFixed(raw, decimals), nil
}

// Probability converts a scaled price to a float clamped to [0,1].
func Probability(d decimal.Decimal) float64 {
	return Clamp01(d.InexactFloat64())
}

// Clamp01 clamps f to [0,1]. NaN clamps to 0.
func Clamp01(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Complement returns 1-yes clamped to [0,1].
func Complement(yes float64) float64 {
	return Clamp01(1 - yes)
}

// Round6 rounds f half away from zero to KeyPrecision decimals.
func Round6(f float64) float64 {
	return decimal.NewFromFloat(f).Round(KeyPrecision).InexactFloat64()
}

// Format6 renders f with exactly KeyPrecision decimals, for use in keys.
func Format6(f float64) string {
	return decimal.NewFromFloat(f).StringFixed(KeyPrecision)
}

// Finite reports whether f is neither NaN nor infinite.
func Finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
