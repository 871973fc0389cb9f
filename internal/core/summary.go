package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodTotals aggregates the transactions of the open period.
type PeriodTotals struct {
	Income   Money
	Expenses Money
	Count    int
}

// Rate is a quote for one base-currency unit in the target currency.
type Rate struct {
	Name      string
	Buy       decimal.Decimal
	Sell      decimal.Decimal
	UpdatedAt time.Time
}

// Conversion holds the headline figures expressed in one currency.
type Conversion struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Balance  decimal.Decimal
	Savings  decimal.Decimal
}

// BalanceView is the computed, read-only state of a user's open period.
type BalanceView struct {
	TotalIncome        Money // transaction income plus monthly income
	Expenses           Money
	Net                Money
	MonthlyIncome      Money
	ExtraIncome        Money // transaction income only
	TotalSavings       Money
	AccumulatedBalance Money
	LastClosureDate    *time.Time
	TransactionCount   int
	CurrencyCode       string

	USD Conversion
	ARS Conversion

	// ExchangeRate is the sell rate used for ARS figures. It is 1 when the
	// provider could not be reached, in which case Blue is nil and
	// RateFallback is set.
	ExchangeRate decimal.Decimal
	Blue         *Rate
	RateFallback bool
	RateAt       time.Time

	ComputedAt time.Time
}

// ClosureSummary is what a successful close reports back.
type ClosureSummary struct {
	ClosureID          int64
	ClosedAt           time.Time
	TotalIncome        Money
	TotalExpenses      Money
	NetBalance         Money
	TransactionsCount  int
	AccumulatedBalance Money
}

// Convert expresses the view's USD figures at the given rate.
func Convert(income, expenses, balance, savings Money, rate decimal.Decimal) Conversion {
	return Conversion{
		Income:   income.Decimal().Mul(rate),
		Expenses: expenses.Decimal().Mul(rate),
		Balance:  balance.Decimal().Mul(rate),
		Savings:  savings.Decimal().Mul(rate),
	}
}
