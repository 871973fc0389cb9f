package core

import (
	"testing"
	"time"
)

func TestComputeClosure_FirstClosure(t *testing.T) {
	at := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	totals := PeriodTotals{Income: Money{Cents: 100000}, Expenses: Money{Cents: 30000}, Count: 4}

	got := ComputeClosure("u1", nil, totals, Money{Cents: 50000}, at)

	if got.TotalIncome.Cents != 150000 {
		t.Errorf("TotalIncome = %d, want 150000", got.TotalIncome.Cents)
	}
	if got.TotalExpenses.Cents != 30000 {
		t.Errorf("TotalExpenses = %d, want 30000", got.TotalExpenses.Cents)
	}
	if got.NetBalance.Cents != 120000 {
		t.Errorf("NetBalance = %d, want 120000", got.NetBalance.Cents)
	}
	if got.AccumulatedBalance.Cents != 120000 {
		t.Errorf("AccumulatedBalance = %d, want 120000", got.AccumulatedBalance.Cents)
	}
	if got.MonthYear != "2026-03-01" {
		t.Errorf("MonthYear = %q", got.MonthYear)
	}
	if got.Notes != "Cierre de balance - 5/3/2026" {
		t.Errorf("Notes = %q", got.Notes)
	}
	if got.CurrencyCode != "USD" || !got.TotalSavings.IsZero() {
		t.Errorf("unexpected currency %q or savings %d", got.CurrencyCode, got.TotalSavings.Cents)
	}
}

func TestComputeClosure_ChainsAccumulated(t *testing.T) {
	prev := &MonthClosure{
		ClosureDate:        time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC),
		AccumulatedBalance: Money{Cents: 120000},
	}
	totals := PeriodTotals{Income: Money{Cents: 20000}, Expenses: Money{Cents: 50000}}

	got := ComputeClosure("u1", prev, totals, Money{}, time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC))

	if got.NetBalance.Cents != -30000 {
		t.Errorf("NetBalance = %d, want -30000", got.NetBalance.Cents)
	}
	if got.AccumulatedBalance.Cents != 90000 {
		t.Errorf("AccumulatedBalance = %d, want 90000", got.AccumulatedBalance.Cents)
	}
}

func TestComputeClosure_ZeroDelta(t *testing.T) {
	prev := &MonthClosure{
		ClosureDate:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		AccumulatedBalance: Money{Cents: 777},
	}
	got := ComputeClosure("u1", prev, PeriodTotals{}, Money{}, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	if !got.NetBalance.IsZero() || got.AccumulatedBalance.Cents != 777 {
		t.Fatalf("got net %d accumulated %d", got.NetBalance.Cents, got.AccumulatedBalance.Cents)
	}
}

func TestComputeClosure_StrictlyAfterPrevious(t *testing.T) {
	prevAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := &MonthClosure{ClosureDate: prevAt}

	got := ComputeClosure("u1", prev, PeriodTotals{}, Money{}, prevAt.Add(-time.Second))
	if !got.ClosureDate.After(prevAt) {
		t.Fatalf("closure date %v not after previous %v", got.ClosureDate, prevAt)
	}
}

func TestInPeriod(t *testing.T) {
	closedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := &MonthClosure{ClosureDate: closedAt}

	tests := []struct {
		name      string
		last      *MonthClosure
		createdAt time.Time
		want      bool
	}{
		{"no closure counts everything", nil, closedAt.Add(-time.Hour), true},
		{"exactly at closure is excluded", last, closedAt, false},
		{"before closure is excluded", last, closedAt.Add(-time.Microsecond), false},
		{"after closure is included", last, closedAt.Add(time.Microsecond), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InPeriod(tt.last, tt.createdAt); got != tt.want {
				t.Errorf("InPeriod() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStampInPeriod(t *testing.T) {
	closedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := &MonthClosure{ClosureDate: closedAt}

	if got := StampInPeriod(last, closedAt.Add(-time.Minute)); !InPeriod(last, got) {
		t.Fatalf("stamp %v falls outside the open period", got)
	}
	later := closedAt.Add(time.Hour)
	if got := StampInPeriod(last, later); !got.Equal(later) {
		t.Fatalf("stamp = %v, want %v", got, later)
	}
	if got := StampInPeriod(nil, later.Add(123*time.Nanosecond)); !got.Equal(later) {
		t.Fatalf("stamp not truncated: %v", got)
	}
}
