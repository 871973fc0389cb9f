package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"saldo/internal/core"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ledger runs the per-user queries of the balance and closure flows. Every
// query is scoped by user_id.
type Ledger struct {
	q       querier
	dialect Dialect
}

const closureColumns = `closure_id, user_id, month_year, closure_date, total_income_cents,
	total_expenses_cents, net_balance_cents, total_savings_cents,
	accumulated_balance_cents, currency_code, notes`

// LastClosure returns the most recent closure, or nil when none exists.
func (l *Ledger) LastClosure(ctx context.Context, userID string) (*core.MonthClosure, error) {
	row := l.q.QueryRowContext(ctx, l.dialect.rebind(
		`SELECT `+closureColumns+` FROM month_closures
		 WHERE user_id = ? ORDER BY closure_date DESC, closure_id DESC LIMIT 1`), userID)

	c, err := scanClosure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last closure: %w", err)
	}
	return &c, nil
}

// PeriodTotals sums the user's transactions created strictly after since.
// A nil since covers the whole history.
func (l *Ledger) PeriodTotals(ctx context.Context, userID string, since *time.Time) (core.PeriodTotals, error) {
	query := `SELECT
		CAST(COALESCE(SUM(CASE WHEN transaction_type = 'income' THEN amount_cents ELSE 0 END), 0) AS BIGINT),
		CAST(COALESCE(SUM(CASE WHEN transaction_type = 'expense' THEN amount_cents ELSE 0 END), 0) AS BIGINT),
		COUNT(*)
		FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if since != nil {
		query += ` AND created_at > ?`
		args = append(args, l.dialect.timeArg(*since))
	}

	var totals core.PeriodTotals
	var count int64
	err := l.q.QueryRowContext(ctx, l.dialect.rebind(query), args...).
		Scan(&totals.Income.Cents, &totals.Expenses.Cents, &count)
	if err != nil {
		return core.PeriodTotals{}, fmt.Errorf("sum period transactions: %w", err)
	}
	totals.Count = int(count)
	return totals, nil
}

// Preferences returns the user's preferences, with defaults when the user
// has never stored any.
func (l *Ledger) Preferences(ctx context.Context, userID string) (core.UserPreferences, error) {
	prefs := core.UserPreferences{UserID: userID, AutoClose: core.Never}
	var autoClose string
	var anchor, updated time.Time
	err := l.q.QueryRowContext(ctx, l.dialect.rebind(
		`SELECT monthly_income_cents, auto_close, auto_close_anchor, updated_at
		 FROM user_preferences WHERE user_id = ?`), userID).
		Scan(&prefs.MonthlyIncome.Cents, &autoClose, scanTime{&anchor}, scanTime{&updated})
	if errors.Is(err, sql.ErrNoRows) {
		return prefs, nil
	}
	if err != nil {
		return prefs, fmt.Errorf("get preferences: %w", err)
	}
	prefs.AutoClose = core.RepetitionTypes(autoClose)
	prefs.AutoCloseAnchor = core.Date{Time: anchor}
	prefs.UpdatedAt = updated
	return prefs, nil
}

// MonthlyIncome is zero for users without preferences.
func (l *Ledger) MonthlyIncome(ctx context.Context, userID string) (core.Money, error) {
	var m core.Money
	err := l.q.QueryRowContext(ctx, l.dialect.rebind(
		`SELECT monthly_income_cents FROM user_preferences WHERE user_id = ?`), userID).Scan(&m.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("get monthly income: %w", err)
	}
	return m, nil
}

// SetMonthlyIncome creates the preferences row when missing.
func (l *Ledger) SetMonthlyIncome(ctx context.Context, userID string, amount core.Money, at time.Time) error {
	_, err := l.q.ExecContext(ctx, l.dialect.rebind(
		`INSERT INTO user_preferences (user_id, monthly_income_cents, auto_close, updated_at)
		 VALUES (?, ?, 'none', ?)
		 ON CONFLICT (user_id) DO UPDATE SET
			monthly_income_cents = excluded.monthly_income_cents,
			updated_at = excluded.updated_at`),
		userID, amount.Cents, l.dialect.timeArg(at))
	if err != nil {
		return fmt.Errorf("upsert monthly income: %w", err)
	}
	return nil
}

// SetAutoClose stores the scheduled-closure frequency and its anchor date.
func (l *Ledger) SetAutoClose(ctx context.Context, userID string, every core.RepetitionTypes, anchor core.Date, at time.Time) error {
	var anchorArg any
	if !anchor.IsZero() {
		anchorArg = l.dialect.timeArg(anchor.Time)
	}
	_, err := l.q.ExecContext(ctx, l.dialect.rebind(
		`INSERT INTO user_preferences (user_id, monthly_income_cents, auto_close, auto_close_anchor, updated_at)
		 VALUES (?, 0, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
			auto_close = excluded.auto_close,
			auto_close_anchor = excluded.auto_close_anchor,
			updated_at = excluded.updated_at`),
		userID, string(every), anchorArg, l.dialect.timeArg(at))
	if err != nil {
		return fmt.Errorf("upsert auto close: %w", err)
	}
	return nil
}

// AutoCloseUsers lists every user with scheduled closures enabled.
func (l *Ledger) AutoCloseUsers(ctx context.Context) ([]core.UserPreferences, error) {
	rows, err := l.q.QueryContext(ctx, l.dialect.rebind(
		`SELECT user_id, monthly_income_cents, auto_close, auto_close_anchor, updated_at
		 FROM user_preferences WHERE auto_close <> 'none' ORDER BY user_id`))
	if err != nil {
		return nil, fmt.Errorf("list auto close users: %w", err)
	}
	defer rows.Close()

	var out []core.UserPreferences
	for rows.Next() {
		var p core.UserPreferences
		var autoClose string
		var anchor time.Time
		if err := rows.Scan(&p.UserID, &p.MonthlyIncome.Cents, &autoClose, scanTime{&anchor}, scanTime{&p.UpdatedAt}); err != nil {
			return nil, fmt.Errorf("scan preferences: %w", err)
		}
		p.AutoClose = core.RepetitionTypes(autoClose)
		p.AutoCloseAnchor = core.Date{Time: anchor}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TotalSavings sums every savings contribution the user ever made.
func (l *Ledger) TotalSavings(ctx context.Context, userID string) (core.Money, error) {
	var m core.Money
	err := l.q.QueryRowContext(ctx, l.dialect.rebind(
		`SELECT CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) FROM savings_contributions WHERE user_id = ?`),
		userID).Scan(&m.Cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum savings: %w", err)
	}
	return m, nil
}

func (l *Ledger) AddTransaction(ctx context.Context, t core.Transaction) error {
	_, err := l.q.ExecContext(ctx, l.dialect.rebind(
		`INSERT INTO transactions (id, user_id, transaction_type, amount_cents, description, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.UserID, string(t.Type), t.Amount.Cents, t.Description,
		l.dialect.timeArg(t.OccurredAt), l.dialect.timeArg(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (l *Ledger) AddSavings(ctx context.Context, s core.SavingsContribution) error {
	_, err := l.q.ExecContext(ctx, l.dialect.rebind(
		`INSERT INTO savings_contributions (id, user_id, amount_cents, note, created_at)
		 VALUES (?, ?, ?, ?, ?)`),
		s.ID, s.UserID, s.Amount.Cents, s.Note, l.dialect.timeArg(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert savings contribution: %w", err)
	}
	return nil
}

// InsertClosure appends c and returns its generated id.
func (l *Ledger) InsertClosure(ctx context.Context, c core.MonthClosure) (int64, error) {
	var id int64
	err := l.q.QueryRowContext(ctx, l.dialect.rebind(
		`INSERT INTO month_closures (user_id, month_year, closure_date, total_income_cents,
			total_expenses_cents, net_balance_cents, total_savings_cents,
			accumulated_balance_cents, currency_code, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING closure_id`),
		c.UserID, c.MonthYear, l.dialect.timeArg(c.ClosureDate), c.TotalIncome.Cents,
		c.TotalExpenses.Cents, c.NetBalance.Cents, c.TotalSavings.Cents,
		c.AccumulatedBalance.Cents, c.CurrencyCode, c.Notes).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert closure: %w", err)
	}
	return id, nil
}

// ListClosures returns up to limit closures, newest first.
func (l *Ledger) ListClosures(ctx context.Context, userID string, limit int) ([]core.MonthClosure, error) {
	rows, err := l.q.QueryContext(ctx, l.dialect.rebind(
		`SELECT `+closureColumns+` FROM month_closures
		 WHERE user_id = ? ORDER BY closure_date DESC, closure_id DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list closures: %w", err)
	}
	defer rows.Close()

	out := make([]core.MonthClosure, 0, limit)
	for rows.Next() {
		c, err := scanClosure(rows)
		if err != nil {
			return nil, fmt.Errorf("scan closure: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClosuresSince returns closures of every user ordered by (closure_date,
// closure_id), starting strictly after the key (since, afterID), up to
// limit. Passing the last returned closure's date and id fetches the next
// page; closures sharing one instant are not skipped.
func (l *Ledger) ClosuresSince(ctx context.Context, since time.Time, afterID int64, limit int) ([]core.MonthClosure, error) {
	at := l.dialect.timeArg(since)
	rows, err := l.q.QueryContext(ctx, l.dialect.rebind(
		`SELECT `+closureColumns+` FROM month_closures
		 WHERE closure_date > ? OR (closure_date = ? AND closure_id > ?)
		 ORDER BY closure_date ASC, closure_id ASC LIMIT ?`),
		at, at, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("closures since: %w", err)
	}
	defer rows.Close()

	var out []core.MonthClosure
	for rows.Next() {
		c, err := scanClosure(rows)
		if err != nil {
			return nil, fmt.Errorf("scan closure: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClosure(r rowScanner) (core.MonthClosure, error) {
	var c core.MonthClosure
	err := r.Scan(&c.ID, &c.UserID, &c.MonthYear, scanTime{&c.ClosureDate},
		&c.TotalIncome.Cents, &c.TotalExpenses.Cents, &c.NetBalance.Cents,
		&c.TotalSavings.Cents, &c.AccumulatedBalance.Cents, &c.CurrencyCode, &c.Notes)
	return c, err
}
