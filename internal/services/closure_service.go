package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/storage"
)

const (
	// DefaultClosureLimit is the history length returned when none is asked for.
	DefaultClosureLimit = 12
	// MaxClosureLimit caps how many closures one listing may return.
	MaxClosureLimit = 12
)

// ClosurePublisher announces committed closures to downstream consumers.
type ClosurePublisher interface {
	PublishClosure(ctx context.Context, c core.MonthClosure) error
}

// ClosureService ends accounting periods. Closing is serialized per user,
// both in process and in the store, so the accumulated balance chain can
// never fork.
type ClosureService struct {
	store     LedgerStore
	locks     *userLocks
	publisher ClosurePublisher
	logger    *log.Logger
	events    *log.StructuredLogger
	now       func() time.Time
}

// NewClosureService builds the service. publisher may be nil, in which case
// no events are emitted.
func NewClosureService(store LedgerStore, publisher ClosurePublisher, logger *log.Logger) *ClosureService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ClosureService{
		store:     store,
		locks:     newUserLocks(),
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentClosure),
		events:    log.NewStructuredLogger(logger),
		now:       time.Now,
	}
}

// ClosePeriod snapshots the open period into a new closure and starts the
// next one. Calling it again right away records an empty period.
func (s *ClosureService) ClosePeriod(ctx context.Context, userID string) (core.ClosureSummary, error) {
	summary, _, err := s.ClosePeriodIf(ctx, userID, nil)
	return summary, err
}

// ClosePeriodIf closes the period only if due approves the user's current
// last closure (nil when none). due runs under the same locks as the close,
// so a concurrent close is always visible to it. A nil due always closes.
func (s *ClosureService) ClosePeriodIf(ctx context.Context, userID string, due func(last *core.MonthClosure) bool) (core.ClosureSummary, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return core.ClosureSummary{}, false, core.ErrUnauthorized
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	var (
		closure core.MonthClosure
		count   int
		skipped bool
	)
	err := s.store.InUserTx(ctx, userID, func(l *storage.Ledger) error {
		last, err := l.LastClosure(ctx, userID)
		if err != nil {
			return err
		}
		if due != nil && !due(last) {
			skipped = true
			return nil
		}
		totals, err := l.PeriodTotals(ctx, userID, core.PeriodStart(last))
		if err != nil {
			return err
		}
		monthly, err := l.MonthlyIncome(ctx, userID)
		if err != nil {
			return err
		}

		closure = core.ComputeClosure(userID, last, totals, monthly, s.now())
		count = totals.Count
		id, err := l.InsertClosure(ctx, closure)
		if err != nil {
			return err
		}
		closure.ID = id
		return nil
	})
	if err != nil {
		return core.ClosureSummary{}, false, fmt.Errorf("close period: %w", err)
	}
	if skipped {
		return core.ClosureSummary{}, false, nil
	}

	s.events.LogClosureCreated(ctx, userID, closure.ID,
		closure.TotalIncome.Cents, closure.TotalExpenses.Cents,
		closure.NetBalance.Cents, closure.AccumulatedBalance.Cents, count)
	s.publish(ctx, closure)

	return core.ClosureSummary{
		ClosureID:          closure.ID,
		ClosedAt:           closure.ClosureDate,
		TotalIncome:        closure.TotalIncome,
		TotalExpenses:      closure.TotalExpenses,
		NetBalance:         closure.NetBalance,
		TransactionsCount:  count,
		AccumulatedBalance: closure.AccumulatedBalance,
	}, true, nil
}

// publish never fails the close: the closure is already committed.
func (s *ClosureService) publish(ctx context.Context, c core.MonthClosure) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishClosure(ctx, c); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish closure event",
			log.FieldUserID, c.UserID,
			log.FieldClosureID, c.ID,
			log.FieldError, err.Error())
	}
}

// ListClosures returns the newest closures first. limit is clamped to
// [1, MaxClosureLimit]; zero means the default.
func (s *ClosureService) ListClosures(ctx context.Context, userID string, limit int) ([]core.MonthClosure, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrUnauthorized
	}
	switch {
	case limit <= 0:
		limit = DefaultClosureLimit
	case limit > MaxClosureLimit:
		limit = MaxClosureLimit
	}
	closures, err := s.store.Ledger().ListClosures(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list closures: %w", err)
	}
	return closures, nil
}
