// Package api holds the JSON shapes exchanged between the HTTP server and
// its clients.
package api

import (
	"time"

	"saldo/internal/core"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type Conversion struct {
	Income   Decimal `json:"income"`
	Expenses Decimal `json:"expenses"`
	Balance  Decimal `json:"balance"`
	Savings  Decimal `json:"savings"`
}

type Conversions struct {
	USD Conversion `json:"USD"`
	ARS Conversion `json:"ARS"`
}

// BlueDollar mirrors the quote published by the rates provider.
type BlueDollar struct {
	Nombre             string    `json:"nombre"`
	Compra             Decimal   `json:"compra"`
	Venta              Decimal   `json:"venta"`
	FechaActualizacion time.Time `json:"fechaActualizacion"`
}

type ExchangeRate struct {
	USDToARS   Decimal     `json:"USD_to_ARS"`
	BlueDollar *BlueDollar `json:"blue_dollar"`
	Fallback   bool        `json:"fallback"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Balance is the body of GET /balance.
type Balance struct {
	CurrentMonthIncome   Decimal      `json:"current_month_income"`
	CurrentMonthExpenses Decimal      `json:"current_month_expenses"`
	CurrentMonthBalance  Decimal      `json:"current_month_balance"`
	MonthlyBaseIncome    Decimal      `json:"monthly_base_income"`
	ExtraIncome          Decimal      `json:"extra_income"`
	TotalSavings         Decimal      `json:"total_savings"`
	AccumulatedBalance   Decimal      `json:"accumulated_balance"`
	LastClosureDate      *time.Time   `json:"last_closure_date"`
	TransactionsCount    int          `json:"transactions_count"`
	CurrencyCode         string       `json:"currency_code"`
	Conversions          Conversions  `json:"conversions"`
	ExchangeRate         ExchangeRate `json:"exchange_rate"`
	LastUpdated          time.Time    `json:"last_updated"`
}

type SetMonthlyIncomeRequest struct {
	MonthlyIncome *Decimal `json:"monthly_income"`
}

type SetMonthlyIncomeResponse struct {
	Success       bool    `json:"success"`
	MonthlyIncome Decimal `json:"monthly_income"`
}

type ClosureSummary struct {
	TotalIncome        Decimal `json:"total_income"`
	TotalExpenses      Decimal `json:"total_expenses"`
	NetBalance         Decimal `json:"net_balance"`
	TransactionsCount  int     `json:"transactions_count"`
	AccumulatedBalance Decimal `json:"accumulated_balance"`
}

// CloseResponse is the body of POST /balance/close.
type CloseResponse struct {
	Success   bool           `json:"success"`
	ClosureID int64          `json:"closure_id"`
	ClosedAt  time.Time      `json:"closed_at"`
	Summary   ClosureSummary `json:"summary"`
}

type Closure struct {
	ClosureID          int64     `json:"closure_id"`
	MonthYear          string    `json:"month_year"`
	ClosureDate        time.Time `json:"closure_date"`
	TotalIncome        Decimal   `json:"total_income"`
	TotalExpenses      Decimal   `json:"total_expenses"`
	NetBalance         Decimal   `json:"net_balance"`
	AccumulatedBalance Decimal   `json:"accumulated_balance"`
	CurrencyCode       string    `json:"currency_code"`
	Notes              string    `json:"notes"`
}

type ClosuresResponse struct {
	Closures []Closure `json:"closures"`
}

type CreateTransactionRequest struct {
	Type        string     `json:"type"`
	Amount      *Decimal   `json:"amount"`
	Description string     `json:"description"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
}

type Transaction struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      Decimal   `json:"amount"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateSavingsRequest struct {
	Amount *Decimal `json:"amount"`
	Note   string   `json:"note"`
}

type Savings struct {
	ID        string    `json:"id"`
	Amount    Decimal   `json:"amount"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// AutoCloseRequest sets the scheduled closure frequency. Anchor is a
// YYYY-MM-DD date whose day (and month, for yearly) periods end on.
type AutoCloseRequest struct {
	Frequency string `json:"frequency"`
	Anchor    string `json:"anchor,omitempty"`
}

type AutoCloseResponse struct {
	Success   bool   `json:"success"`
	Frequency string `json:"frequency"`
	Anchor    string `json:"anchor,omitempty"`
}

// Success wraps write operations that only acknowledge.
type Success struct {
	Success bool `json:"success"`
}

func conversion(c core.Conversion) Conversion {
	return Conversion{Income: Dec(c.Income), Expenses: Dec(c.Expenses), Balance: Dec(c.Balance), Savings: Dec(c.Savings)}
}

// FromBalanceView renders a computed balance.
func FromBalanceView(v core.BalanceView) Balance {
	b := Balance{
		CurrentMonthIncome:   money(v.TotalIncome),
		CurrentMonthExpenses: money(v.Expenses),
		CurrentMonthBalance:  money(v.Net),
		MonthlyBaseIncome:    money(v.MonthlyIncome),
		ExtraIncome:          money(v.ExtraIncome),
		TotalSavings:         money(v.TotalSavings),
		AccumulatedBalance:   money(v.AccumulatedBalance),
		LastClosureDate:      v.LastClosureDate,
		TransactionsCount:    v.TransactionCount,
		CurrencyCode:         v.CurrencyCode,
		Conversions:          Conversions{USD: conversion(v.USD), ARS: conversion(v.ARS)},
		ExchangeRate: ExchangeRate{
			USDToARS:  Dec(v.ExchangeRate),
			Fallback:  v.RateFallback,
			UpdatedAt: v.RateAt,
		},
		LastUpdated: v.ComputedAt,
	}
	if v.Blue != nil {
		b.ExchangeRate.BlueDollar = &BlueDollar{
			Nombre:             v.Blue.Name,
			Compra:             Dec(v.Blue.Buy),
			Venta:              Dec(v.Blue.Sell),
			FechaActualizacion: v.Blue.UpdatedAt,
		}
	}
	return b
}

func FromClosureSummary(s core.ClosureSummary) CloseResponse {
	return CloseResponse{
		Success:   true,
		ClosureID: s.ClosureID,
		ClosedAt:  s.ClosedAt,
		Summary: ClosureSummary{
			TotalIncome:        money(s.TotalIncome),
			TotalExpenses:      money(s.TotalExpenses),
			NetBalance:         money(s.NetBalance),
			TransactionsCount:  s.TransactionsCount,
			AccumulatedBalance: money(s.AccumulatedBalance),
		},
	}
}

func FromClosures(cs []core.MonthClosure) ClosuresResponse {
	out := ClosuresResponse{Closures: make([]Closure, 0, len(cs))}
	for _, c := range cs {
		out.Closures = append(out.Closures, Closure{
			ClosureID:          c.ID,
			MonthYear:          c.MonthYear,
			ClosureDate:        c.ClosureDate,
			TotalIncome:        money(c.TotalIncome),
			TotalExpenses:      money(c.TotalExpenses),
			NetBalance:         money(c.NetBalance),
			AccumulatedBalance: money(c.AccumulatedBalance),
			CurrencyCode:       c.CurrencyCode,
			Notes:              c.Notes,
		})
	}
	return out
}

func FromTransaction(t core.Transaction) Transaction {
	return Transaction{
		ID:          t.ID,
		Type:        string(t.Type),
		Amount:      money(t.Amount),
		Description: t.Description,
		OccurredAt:  t.OccurredAt,
		CreatedAt:   t.CreatedAt,
	}
}

func FromSavings(s core.SavingsContribution) Savings {
	return Savings{ID: s.ID, Amount: money(s.Amount), Note: s.Note, CreatedAt: s.CreatedAt}
}
