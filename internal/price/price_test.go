package price

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFixed(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		decimals int32
		want     string
	}{
		{name: "eighteen decimals", input: "620000000000000000", decimals: 18, want: "0.62"},
		{name: "six decimals", input: "450000", decimals: 6, want: "0.45"},
		{name: "hex quantity", input: "0x8ac7230489e80000", decimals: 19, want: "1"},
		{name: "zero", input: "0", decimals: 18, want: "0"},
		{name: "surrounding spaces", input: " 500000 ", decimals: 6, want: "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFixed(tt.input, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseFixed_Invalid(t *testing.T) {
	for _, input := range []string{"", "abc", "0.5", "0xzz"} {
		_, err := ParseFixed(input, 6)
		assert.ErrorIs(t, err, ErrInvalidFixed, "input %q", input)
	}
}

func TestFromFixed(t *testing.T) {
	raw, ok := new(big.Int).SetString("333333333333333333", 10)
	require.True(t, ok)

	got := FromFixed(raw, 18)
	assert.Equal(t, "0.333333333333333333", got.String())
	assert.True(t, FromFixed(nil, 18).IsZero())
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.2))
	assert.Equal(t, 1.0, Clamp01(1.7))
	assert.Equal(t, 0.42, Clamp01(0.42))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 1.0, Clamp01(math.Inf(1)))
}

func TestComplement(t *testing.T) {
	assert.InDelta(t, 0.38, Complement(0.62), 1e-12)
	assert.Equal(t, 0.0, Complement(1.4))
	assert.Equal(t, 1.0, Complement(-3))
}

func TestRound6(t *testing.T) {
	assert.Equal(t, 0.123457, Round6(0.1234567))
	assert.Equal(t, 0.5, Round6(0.5000004))
	assert.Equal(t, "0.620000", Format6(0.62))
	assert.Equal(t, "0.333333", Format6(1.0/3.0))
}

func TestProbability(t *testing.T) {
	d, err := ParseFixed("1200000", 6)
	require.NoError(t, err)
	assert.Equal(t, 1.0, Probability(d))
}
