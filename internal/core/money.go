// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents of the base currency. Conversions and
// display values go through shopspring/decimal so no float rounding leaks
// into reported figures.
package core

import (
	"github.com/shopspring/decimal"
)

// MaxAmountCents bounds every stored amount (one hundred billion units).
const MaxAmountCents int64 = 10_000_000_000_000

var maxAmount = decimal.NewFromInt(MaxAmountCents)

// MoneyFromDecimal rounds d to whole cents, half away from zero. Negative
// values are allowed; callers decide whether they make sense. Values whose
// magnitude exceeds MaxAmountCents are rejected with ErrInvalidAmount.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Shift(2).Round(0)
	if cents.Abs().GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the amount in currency units (dollars, not cents).
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
