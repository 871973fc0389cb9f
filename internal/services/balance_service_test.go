package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
	"saldo/internal/rates"
)

var blue = core.Rate{
	Name:      "Blue",
	Buy:       decimal.RequireFromString("1210"),
	Sell:      decimal.RequireFromString("1234.5"),
	UpdatedAt: time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC),
}

type fixture struct {
	clock    *clock
	balance  *BalanceService
	closures *ClosureService
	ledger   *LedgerService
}

func newFixture(t *testing.T, provider rates.Provider) *fixture {
	t.Helper()
	store := newTestStore(t)
	c := newClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	f := &fixture{
		clock:    c,
		balance:  NewBalanceService(store, provider, nil),
		closures: NewClosureService(store, nil, nil),
		ledger:   NewLedgerService(store, nil),
	}
	f.balance.now = c.Now
	f.closures.now = c.Now
	f.ledger.now = c.Now
	return f
}

func TestComputeBalance_CurrentPeriod(t *testing.T) {
	f := newFixture(t, rates.StaticProvider{Rate: blue})
	ctx := context.Background()

	record(t, f.ledger, "u1", core.Income, 100000)
	f.clock.Advance(time.Minute)
	record(t, f.ledger, "u1", core.Expense, 30000)
	record(t, f.ledger, "u2", core.Income, 5)
	if _, err := f.balance.SetMonthlyIncome(ctx, "u1", core.Money{Cents: 50000}); err != nil {
		t.Fatal(err)
	}

	v, err := f.balance.ComputeBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("ComputeBalance: %v", err)
	}

	if v.TotalIncome.Cents != 150000 || v.Expenses.Cents != 30000 || v.Net.Cents != 120000 {
		t.Fatalf("income/expenses/net = %d/%d/%d", v.TotalIncome.Cents, v.Expenses.Cents, v.Net.Cents)
	}
	if v.MonthlyIncome.Cents != 50000 || v.ExtraIncome.Cents != 100000 {
		t.Errorf("monthly/extra = %d/%d", v.MonthlyIncome.Cents, v.ExtraIncome.Cents)
	}
	if v.LastClosureDate != nil || !v.AccumulatedBalance.IsZero() {
		t.Errorf("unexpected closure state %v %d", v.LastClosureDate, v.AccumulatedBalance.Cents)
	}
	if v.RateFallback || v.Blue == nil || !v.ExchangeRate.Equal(blue.Sell) {
		t.Errorf("rate = %s fallback=%v", v.ExchangeRate, v.RateFallback)
	}
	if !v.USD.Income.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("USD income = %s", v.USD.Income)
	}
	if !v.ARS.Income.Equal(decimal.NewFromInt(1851750)) || !v.ARS.Balance.Equal(decimal.NewFromInt(1481400)) {
		t.Errorf("ARS income/balance = %s/%s", v.ARS.Income, v.ARS.Balance)
	}
	if v.CurrencyCode != "USD" {
		t.Errorf("currency = %q", v.CurrencyCode)
	}
}

func TestComputeBalance_RateFallback(t *testing.T) {
	f := newFixture(t, rates.StaticProvider{Err: errors.New("dns failure")})
	record(t, f.ledger, "u1", core.Income, 2500)

	v, err := f.balance.ComputeBalance(context.Background(), "u1")
	if err != nil {
		t.Fatalf("rate failure must not fail the balance: %v", err)
	}
	if !v.RateFallback || v.Blue != nil {
		t.Fatalf("expected fallback, got blue=%v fallback=%v", v.Blue, v.RateFallback)
	}
	if !v.ExchangeRate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("rate = %s, want 1", v.ExchangeRate)
	}
	if !v.ARS.Income.Equal(v.USD.Income) || !v.ARS.Savings.Equal(v.USD.Savings) {
		t.Fatalf("ARS %v should equal USD %v at fallback rate", v.ARS, v.USD)
	}
}

func TestComputeBalance_AfterClosure(t *testing.T) {
	f := newFixture(t, rates.StaticProvider{Rate: blue})
	ctx := context.Background()

	record(t, f.ledger, "u1", core.Income, 100000)
	f.clock.Advance(time.Hour)
	summary, err := f.closures.ClosePeriod(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(time.Hour)
	record(t, f.ledger, "u1", core.Expense, 4000)
	if _, err := f.ledger.RecordSavings(ctx, core.SavingsContribution{UserID: "u1", Amount: core.Money{Cents: 700}}); err != nil {
		t.Fatal(err)
	}

	v, err := f.balance.ComputeBalance(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if v.ExtraIncome.Cents != 0 || v.Expenses.Cents != 4000 || v.Net.Cents != -4000 {
		t.Fatalf("period after closure = extra %d expenses %d net %d", v.ExtraIncome.Cents, v.Expenses.Cents, v.Net.Cents)
	}
	if v.AccumulatedBalance != summary.AccumulatedBalance {
		t.Errorf("accumulated = %d, want %d", v.AccumulatedBalance.Cents, summary.AccumulatedBalance.Cents)
	}
	if v.LastClosureDate == nil || !v.LastClosureDate.Equal(summary.ClosedAt) {
		t.Errorf("last closure date = %v, want %v", v.LastClosureDate, summary.ClosedAt)
	}
	if v.TotalSavings.Cents != 700 {
		t.Errorf("savings = %d", v.TotalSavings.Cents)
	}
}

func TestComputeBalance_Errors(t *testing.T) {
	store := newTestStore(t)
	svc := NewBalanceService(store, nil, nil)

	if _, err := svc.ComputeBalance(context.Background(), ""); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("empty user err = %v", err)
	}

	store.Close()
	_, err := svc.ComputeBalance(context.Background(), "u1")
	if err == nil {
		t.Fatal("expected store failure")
	}
	if errors.Is(err, core.ErrInvalidInput) || errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("store failure classified as client error: %v", err)
	}
}

func TestSetMonthlyIncome(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.balance.SetMonthlyIncome(ctx, "u1", core.Money{Cents: -1}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("negative income err = %v", err)
	}
	if _, err := f.balance.SetMonthlyIncome(ctx, "u1", core.Money{Cents: core.MaxAmountCents + 1}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("income over cap err = %v", err)
	}
	if _, err := f.balance.SetMonthlyIncome(ctx, "u1", core.Money{Cents: core.MaxAmountCents}); err != nil {
		t.Fatalf("income at cap err = %v", err)
	}
	got, err := f.balance.SetMonthlyIncome(ctx, "u1", core.Money{})
	if err != nil || !got.IsZero() {
		t.Fatalf("zero income = %v, %v", got, err)
	}
	if _, err := f.balance.SetMonthlyIncome(ctx, "", core.Money{Cents: 1}); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("empty user err = %v", err)
	}
}

func TestSetAutoClose(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if err := f.balance.SetAutoClose(ctx, "u1", "hourly", core.Date{}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
	if err := f.balance.SetAutoClose(ctx, "u1", core.Monthly, core.Date{}); err != nil {
		t.Fatal(err)
	}
	users, err := f.balance.store.Ledger().AutoCloseUsers(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("users = %v, %v", users, err)
	}
	if users[0].AutoCloseAnchor.Day() != 1 {
		t.Errorf("default anchor = %v, want today (day 1)", users[0].AutoCloseAnchor)
	}
}
