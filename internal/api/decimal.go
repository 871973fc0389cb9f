package api

import (
	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// Decimal is a decimal encoded as a bare JSON number. Both numbers and
// quoted strings are accepted when decoding.
type Decimal struct {
	decimal.Decimal
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.Decimal.String()), nil
}

func Dec(d decimal.Decimal) Decimal {
	return Decimal{d}
}

func money(m core.Money) Decimal {
	return Decimal{m.Decimal()}
}

// Money converts a decoded amount back to cents, rounding half away from
// zero. Out-of-range amounts fail with core.ErrInvalidAmount.
func (d Decimal) Money() (core.Money, error) {
	return core.MoneyFromDecimal(d.Decimal)
}
