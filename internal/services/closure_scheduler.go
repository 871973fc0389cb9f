package services

import (
	"context"
	"fmt"
	"time"

	"saldo/internal/core"
	"saldo/internal/log"
)

// PeriodCloser is the part of ClosureService the scheduler drives.
type PeriodCloser interface {
	ClosePeriodIf(ctx context.Context, userID string, due func(last *core.MonthClosure) bool) (core.ClosureSummary, bool, error)
}

// ClosureScheduler closes periods for users who opted into automatic
// closures once their schedule says the period has ended.
type ClosureScheduler struct {
	store  LedgerStore
	closer PeriodCloser
	logger *log.Logger
}

func NewClosureScheduler(store LedgerStore, closer PeriodCloser, logger *log.Logger) *ClosureScheduler {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ClosureScheduler{
		store:  store,
		closer: closer,
		logger: logger.WithComponent(log.ComponentScheduler),
	}
}

// ProcessDueClosures runs one pass and returns how many periods it closed.
// A failure for one user is logged and does not stop the others.
func (p *ClosureScheduler) ProcessDueClosures(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.closer == nil {
		return 0, fmt.Errorf("scheduler not properly initialized")
	}

	users, err := p.store.Ledger().AutoCloseUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list auto close users: %w", err)
	}

	p.logger.InfoContext(ctx, "Processing scheduled closures",
		"candidates", len(users),
		"processing_date", now.Format("2006-01-02"))

	closed := 0
	for _, prefs := range users {
		if err := ctx.Err(); err != nil {
			return closed, err
		}

		due, err := p.isDue(ctx, prefs, now)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to check closure schedule",
				log.FieldUserID, prefs.UserID,
				log.FieldError, err.Error())
			continue
		}
		if !due {
			continue
		}

		// a manual close may have landed since the check above
		summary, ok, err := p.closer.ClosePeriodIf(ctx, prefs.UserID, func(last *core.MonthClosure) bool {
			return dueFrom(prefs, last, now)
		})
		if err != nil {
			p.logger.ErrorContext(ctx, "Scheduled closure failed",
				log.FieldUserID, prefs.UserID,
				log.FieldError, err.Error())
			continue
		}
		if !ok {
			p.logger.DebugContext(ctx, "Period closed concurrently, skipping",
				log.FieldUserID, prefs.UserID)
			continue
		}
		closed++
		p.logger.InfoContext(ctx, "Scheduled closure recorded",
			log.FieldUserID, prefs.UserID,
			log.FieldClosureID, summary.ClosureID,
			"frequency", string(prefs.AutoClose))
	}

	p.logger.InfoContext(ctx, "Scheduled closure processing complete",
		"closed", closed,
		"total_checked", len(users))
	return closed, nil
}

// isDue measures from the last closure, or from when the user last changed
// preferences if they have never closed.
func (p *ClosureScheduler) isDue(ctx context.Context, prefs core.UserPreferences, now time.Time) (bool, error) {
	if _, err := GetCloseSchedule(prefs.AutoClose); err != nil {
		return false, err
	}
	last, err := p.store.Ledger().LastClosure(ctx, prefs.UserID)
	if err != nil {
		return false, err
	}
	return dueFrom(prefs, last, now), nil
}

func dueFrom(prefs core.UserPreferences, last *core.MonthClosure, now time.Time) bool {
	schedule, err := GetCloseSchedule(prefs.AutoClose)
	if err != nil {
		return false
	}
	from := prefs.UpdatedAt
	if last != nil {
		from = last.ClosureDate
	}
	return IsDue(schedule, from, now, prefs.AutoCloseAnchor)
}
