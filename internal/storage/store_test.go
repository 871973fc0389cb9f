package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"saldo/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "saldo.db"), 10*time.Second)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addTx(t *testing.T, l *Ledger, id, user string, typ core.TransactionType, cents int64, at time.Time) {
	t.Helper()
	err := l.AddTransaction(context.Background(), core.Transaction{
		ID: id, UserID: user, Type: typ, Amount: core.Money{Cents: cents},
		Description: "test", OccurredAt: at, CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
}

func TestPeriodTotals_AllHistoryWithoutClosure(t *testing.T) {
	s := newTestStore(t)
	l := s.Ledger()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	addTx(t, l, "t1", "u1", core.Income, 100000, base)
	addTx(t, l, "t2", "u1", core.Expense, 30000, base.Add(time.Hour))
	addTx(t, l, "t3", "u2", core.Income, 999, base)

	got, err := l.PeriodTotals(ctx, "u1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Income.Cents != 100000 || got.Expenses.Cents != 30000 || got.Count != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestPeriodTotals_StrictBoundary(t *testing.T) {
	s := newTestStore(t)
	l := s.Ledger()
	ctx := context.Background()
	closedAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	addTx(t, l, "before", "u1", core.Income, 100, closedAt.Add(-time.Microsecond))
	addTx(t, l, "at", "u1", core.Income, 200, closedAt)
	addTx(t, l, "after", "u1", core.Income, 400, closedAt.Add(time.Microsecond))

	got, err := l.PeriodTotals(ctx, "u1", &closedAt)
	if err != nil {
		t.Fatal(err)
	}
	if got.Income.Cents != 400 || got.Count != 1 {
		t.Fatalf("got %+v, want only the transaction after the boundary", got)
	}
}

func TestMonthlyIncome_DefaultAndUpsert(t *testing.T) {
	s := newTestStore(t)
	l := s.Ledger()
	ctx := context.Background()

	m, err := l.MonthlyIncome(ctx, "u1")
	if err != nil || !m.IsZero() {
		t.Fatalf("expected zero default, got %v err=%v", m, err)
	}

	now := time.Now()
	if err := l.SetMonthlyIncome(ctx, "u1", core.Money{Cents: 50000}, now); err != nil {
		t.Fatal(err)
	}
	if err := l.SetMonthlyIncome(ctx, "u1", core.Money{Cents: 60000}, now); err != nil {
		t.Fatal(err)
	}
	m, err = l.MonthlyIncome(ctx, "u1")
	if err != nil || m.Cents != 60000 {
		t.Fatalf("got %v err=%v", m, err)
	}
}

func TestAutoClosePreferences(t *testing.T) {
	s := newTestStore(t)
	l := s.Ledger()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if err := l.SetMonthlyIncome(ctx, "u1", core.Money{Cents: 100}, now); err != nil {
		t.Fatal(err)
	}
	if err := l.SetAutoClose(ctx, "u1", core.Monthly, core.NewDate(2026, 1, 15), now); err != nil {
		t.Fatal(err)
	}
	if err := l.SetAutoClose(ctx, "u2", core.Never, core.Date{}, now); err != nil {
		t.Fatal(err)
	}

	users, err := l.AutoCloseUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].UserID != "u1" {
		t.Fatalf("got %+v", users)
	}
	if users[0].MonthlyIncome.Cents != 100 {
		t.Errorf("auto close upsert must keep monthly income, got %d", users[0].MonthlyIncome.Cents)
	}
	if users[0].AutoCloseAnchor.Day() != 15 {
		t.Errorf("anchor = %v", users[0].AutoCloseAnchor)
	}

	prefs, err := l.Preferences(ctx, "nobody")
	if err != nil || prefs.AutoClose != core.Never {
		t.Fatalf("default prefs = %+v err=%v", prefs, err)
	}
}

func TestClosures_InsertAndList(t *testing.T) {
	s := newTestStore(t)
	l := s.Ledger()
	ctx := context.Background()
	base := time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)

	last, err := l.LastClosure(ctx, "u1")
	if err != nil || last != nil {
		t.Fatalf("expected no closure, got %+v err=%v", last, err)
	}

	var prev *core.MonthClosure
	for i := 0; i < 14; i++ {
		c := core.ComputeClosure("u1", prev, core.PeriodTotals{Income: core.Money{Cents: 1000}}, core.Money{}, base.AddDate(0, i, 0))
		id, err := l.InsertClosure(ctx, c)
		if err != nil {
			t.Fatal(err)
		}
		c.ID = id
		prev = &c
	}

	last, err = l.LastClosure(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if last.ID != prev.ID || last.AccumulatedBalance.Cents != 14000 {
		t.Fatalf("last = %+v", last)
	}
	if !last.ClosureDate.Equal(prev.ClosureDate) {
		t.Fatalf("closure date round trip: got %v want %v", last.ClosureDate, prev.ClosureDate)
	}

	list, err := l.ListClosures(ctx, "u1", 12)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 12 {
		t.Fatalf("len = %d, want 12", len(list))
	}
	for i := 1; i < len(list); i++ {
		if !list[i-1].ClosureDate.After(list[i].ClosureDate) {
			t.Fatalf("closures not newest first at %d", i)
		}
	}

	other, err := l.ListClosures(ctx, "u2", 12)
	if err != nil || len(other) != 0 {
		t.Fatalf("cross-user leak: %+v err=%v", other, err)
	}
}

func TestClosuresSince(t *testing.T) {
	s := newTestStore(t)
	l := s.Ledger()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []int64
	for i, user := range []string{"u1", "u2", "u1"} {
		c := core.ComputeClosure(user, nil, core.PeriodTotals{}, core.Money{}, base.Add(time.Duration(i)*time.Hour))
		id, err := l.InsertClosure(ctx, c)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	got, err := l.ClosuresSince(ctx, base, ids[0], 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].UserID != "u2" || got[1].UserID != "u1" {
		t.Fatalf("got %+v", got)
	}
	if got, _ := l.ClosuresSince(ctx, base.Add(-time.Hour), 0, 1); len(got) != 1 || !got[0].ClosureDate.Equal(base) {
		t.Fatalf("limit/order: %+v", got)
	}
}

func TestClosuresSince_PagesThroughSameInstant(t *testing.T) {
	s := newTestStore(t)
	l := s.Ledger()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// different users can close at the same instant
	for _, user := range []string{"u1", "u2", "u3", "u4", "u5"} {
		c := core.ComputeClosure(user, nil, core.PeriodTotals{}, core.Money{}, at)
		if _, err := l.InsertClosure(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	var seen []string
	since, afterID := at.Add(-time.Minute), int64(0)
	for {
		page, err := l.ClosuresSince(ctx, since, afterID, 2)
		if err != nil {
			t.Fatal(err)
		}
		for _, c := range page {
			seen = append(seen, c.UserID)
		}
		if len(page) < 2 {
			break
		}
		last := page[len(page)-1]
		since, afterID = last.ClosureDate, last.ID
	}
	if len(seen) != 5 {
		t.Fatalf("paged %d closures, want 5: %v", len(seen), seen)
	}
}

func TestTotalSavings(t *testing.T) {
	s := newTestStore(t)
	l := s.Ledger()
	ctx := context.Background()

	for i, cents := range []int64{1000, 2500} {
		err := l.AddSavings(ctx, core.SavingsContribution{
			ID: string(rune('a' + i)), UserID: "u1", Amount: core.Money{Cents: cents}, CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	got, err := l.TotalSavings(ctx, "u1")
	if err != nil || got.Cents != 3500 {
		t.Fatalf("got %v err=%v", got, err)
	}
}

func TestInUserTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.InUserTx(ctx, "u1", func(l *Ledger) error {
		c := core.ComputeClosure("u1", nil, core.PeriodTotals{}, core.Money{}, time.Now())
		if _, err := l.InsertClosure(ctx, c); err != nil {
			return err
		}
		return context.Canceled
	})
	if err != context.Canceled {
		t.Fatalf("err = %v", err)
	}
	last, err := s.Ledger().LastClosure(ctx, "u1")
	if err != nil || last != nil {
		t.Fatalf("expected rollback, got %+v err=%v", last, err)
	}
}

func TestInUserTx_ConcurrentClosuresChain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addTx(t, s.Ledger(), "t1", "u1", core.Income, 1000, time.Now().Add(-time.Hour))

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.InUserTx(ctx, "u1", func(l *Ledger) error {
				last, err := l.LastClosure(ctx, "u1")
				if err != nil {
					return err
				}
				totals, err := l.PeriodTotals(ctx, "u1", core.PeriodStart(last))
				if err != nil {
					return err
				}
				_, err = l.InsertClosure(ctx, core.ComputeClosure("u1", last, totals, core.Money{}, time.Now()))
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("close failed: %v", err)
		}
	}

	list, err := s.Ledger().ListClosures(ctx, "u1", 12)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != workers {
		t.Fatalf("len = %d, want %d", len(list), workers)
	}
	// Newest first: each accumulated must equal the next older one plus its net.
	var netSum int64
	for i := len(list) - 1; i >= 0; i-- {
		netSum += list[i].NetBalance.Cents
		if list[i].AccumulatedBalance.Cents != netSum {
			t.Fatalf("closure %d accumulated %d, want %d", list[i].ID, list[i].AccumulatedBalance.Cents, netSum)
		}
	}
	if netSum != 1000 {
		t.Fatalf("transaction counted %d cents in total, want exactly once", netSum)
	}
}
