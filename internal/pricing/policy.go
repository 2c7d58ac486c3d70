// Package pricing maps a name's length to its registration fee.
package pricing

import (
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MinNameLength is the shortest name the registry accepts.
const MinNameLength = 3

// ErrNameTooShort is returned for names below MinNameLength.
var ErrNameTooShort = errors.New("name must be at least 3 characters")

// Tiers are the fees, in whole native-currency units, for 3-character,
// 4-character and longer names.
type Tiers struct {
	Three    decimal.Decimal
	Four     decimal.Decimal
	FivePlus decimal.Decimal
}

// DefaultTiers is the fee schedule of the deployed registry.
var DefaultTiers = Tiers{
	Three:    decimal.RequireFromString("0.05"),
	Four:     decimal.RequireFromString("0.03"),
	FivePlus: decimal.RequireFromString("0.01"),
}

// PremiumTiers is the fee schedule of the alternative deployment.
var PremiumTiers = Tiers{
	Three:    decimal.RequireFromString("0.5"),
	Four:     decimal.RequireFromString("0.3"),
	FivePlus: decimal.RequireFromString("0.1"),
}

// Policy is an immutable fee schedule.
type Policy struct {
	tiers Tiers
}

// NewPolicy validates t: every tier positive, strictly decreasing with
// length.
func NewPolicy(t Tiers) (*Policy, error) {
	if !t.FivePlus.IsPositive() || !t.Four.IsPositive() || !t.Three.IsPositive() {
		return nil, fmt.Errorf("pricing: tiers must be positive (got %s/%s/%s)", t.Three, t.Four, t.FivePlus)
	}
	if !t.Three.GreaterThan(t.Four) || !t.Four.GreaterThan(t.FivePlus) {
		return nil, fmt.Errorf("pricing: tiers must decrease with length (got %s/%s/%s)", t.Three, t.Four, t.FivePlus)
	}
	return &Policy{tiers: t}, nil
}

// Default returns the policy for DefaultTiers.
func Default() *Policy {
	return &Policy{tiers: DefaultTiers}
}

// Tiers returns the schedule.
func (p *Policy) Tiers() Tiers { return p.tiers }

// PriceFor returns the fee for a name of the given length.
func (p *Policy) PriceFor(length int) (decimal.Decimal, error) {
	switch {
	case length < MinNameLength:
		return decimal.Zero, ErrNameTooShort
	case length == 3:
		return p.tiers.Three, nil
	case length == 4:
		return p.tiers.Four, nil
	default:
		return p.tiers.FivePlus, nil
	}
}

// PriceForName is PriceFor on the name's length in Unicode code points.
func (p *Policy) PriceForName(name string) (decimal.Decimal, error) {
	return p.PriceFor(NameLength(name))
}

// NameLength counts code points, so "äbc" is three characters.
func NameLength(name string) int {
	return utf8.RuneCountInString(name)
}

// Wei converts a fee in whole units to the smallest unit of a currency
// with the given decimals. Fractions below one base unit are truncated.
func Wei(fee decimal.Decimal, decimals uint8) *big.Int {
	return fee.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FromWei converts base units back to whole units.
func FromWei(wei *big.Int, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -int32(decimals))
}

// Quote is a priced name.
type Quote struct {
	Name   string
	Length int
	Fee    decimal.Decimal
	Wei    *big.Int
	Symbol string
}

// String renders the fee with its currency symbol, e.g. "0.01 MATIC".
func (q Quote) String() string {
	if q.Symbol == "" {
		return q.Fee.String()
	}
	return q.Fee.String() + " " + q.Symbol
}
