package pricing

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPriceForTiers(t *testing.T) {
	p := Default()
	tests := []struct {
		length int
		want   string
	}{
		{3, "0.05"},
		{4, "0.03"},
		{5, "0.01"},
		{6, "0.01"},
		{64, "0.01"},
	}
	for _, tc := range tests {
		got, err := p.PriceFor(tc.length)
		require.NoError(t, err, tc.length)
		assert.True(t, d(tc.want).Equal(got), "length %d: got %s", tc.length, got)
	}
}

func TestPriceForTooShort(t *testing.T) {
	p := Default()
	for _, n := range []int{-1, 0, 1, 2} {
		_, err := p.PriceFor(n)
		assert.ErrorIs(t, err, ErrNameTooShort, n)
	}
}

func TestPriceIsMonotonic(t *testing.T) {
	for _, tiers := range []Tiers{DefaultTiers, PremiumTiers} {
		p, err := NewPolicy(tiers)
		require.NoError(t, err)
		prev, err := p.PriceFor(3)
		require.NoError(t, err)
		for n := 4; n <= 10; n++ {
			cur, err := p.PriceFor(n)
			require.NoError(t, err)
			assert.True(t, cur.LessThanOrEqual(prev))
			prev = cur
		}
	}
}

func TestPriceForNameCountsRunes(t *testing.T) {
	p := Default()

	fee, err := p.PriceForName("äbc")
	require.NoError(t, err)
	assert.True(t, d("0.05").Equal(fee))

	_, err = p.PriceForName("äb")
	assert.ErrorIs(t, err, ErrNameTooShort)

	assert.Equal(t, 2, NameLength("🥷x"))
}

func TestNewPolicyValidation(t *testing.T) {
	tests := []struct {
		name  string
		tiers Tiers
	}{
		{"zero", Tiers{Three: d("0.05"), Four: d("0.03"), FivePlus: d("0")}},
		{"negative", Tiers{Three: d("0.05"), Four: d("-0.03"), FivePlus: d("0.01")}},
		{"flat", Tiers{Three: d("0.05"), Four: d("0.05"), FivePlus: d("0.01")}},
		{"increasing", Tiers{Three: d("0.01"), Four: d("0.03"), FivePlus: d("0.05")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPolicy(tc.tiers)
			assert.Error(t, err)
		})
	}
}

func TestWei(t *testing.T) {
	assert.Equal(t, "50000000000000000", Wei(d("0.05"), 18).String())
	assert.Equal(t, "10000000000000000", Wei(d("0.01"), 18).String())
	assert.Equal(t, "500000", Wei(d("0.5"), 6).String())
	assert.Equal(t, "1", Wei(d("1.9"), 0).String(), "sub-unit fractions truncate")
}

func TestFromWei(t *testing.T) {
	wei, ok := new(big.Int).SetString("30000000000000000", 10)
	require.True(t, ok)
	assert.True(t, d("0.03").Equal(FromWei(wei, 18)))
}

func TestQuoteString(t *testing.T) {
	assert.Equal(t, "0.01 MATIC", Quote{Fee: d("0.01"), Symbol: "MATIC"}.String())
	assert.Equal(t, "0.05", Quote{Fee: d("0.05")}.String())
}
