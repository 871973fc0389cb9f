package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/storage"
)

// LedgerService appends transactions and savings contributions.
type LedgerService struct {
	store  LedgerStore
	logger *log.Logger
	now    func() time.Time
}

func NewLedgerService(store LedgerStore, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{
		store:  store,
		logger: logger.WithComponent(log.ComponentLedger),
		now:    time.Now,
	}
}

// RecordTransaction validates and stores t. The creation time is assigned
// under the user's write lock so it can never fall at or before a closure
// that committed first.
func (s *LedgerService) RecordTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if strings.TrimSpace(t.UserID) == "" {
		return core.Transaction{}, core.ErrUnauthorized
	}
	t.Description = strings.TrimSpace(t.Description)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, core.InvalidInput(err)
	}
	t.ID = uuid.NewString()

	err := s.store.InUserTx(ctx, t.UserID, func(l *storage.Ledger) error {
		last, err := l.LastClosure(ctx, t.UserID)
		if err != nil {
			return err
		}
		t.CreatedAt = core.StampInPeriod(last, s.now())
		if t.OccurredAt.IsZero() {
			t.OccurredAt = t.CreatedAt
		}
		return l.AddTransaction(ctx, t)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction recorded",
		log.FieldUserID, t.UserID,
		"transaction_id", t.ID,
		"type", string(t.Type),
		log.FieldAmountCents, t.Amount.Cents)
	return t, nil
}

// RecordSavings stores a savings contribution. Savings are all-time and do
// not depend on closures.
func (s *LedgerService) RecordSavings(ctx context.Context, c core.SavingsContribution) (core.SavingsContribution, error) {
	if strings.TrimSpace(c.UserID) == "" {
		return core.SavingsContribution{}, core.ErrUnauthorized
	}
	c.Note = strings.TrimSpace(c.Note)
	if err := c.Validate(); err != nil {
		return core.SavingsContribution{}, core.InvalidInput(err)
	}
	c.ID = uuid.NewString()
	c.CreatedAt = s.now().UTC().Truncate(core.TimestampPrecision)

	if err := s.store.Ledger().AddSavings(ctx, c); err != nil {
		return core.SavingsContribution{}, fmt.Errorf("record savings: %w", err)
	}
	s.logger.InfoContext(ctx, "Savings contribution recorded",
		log.FieldUserID, c.UserID,
		log.FieldAmountCents, c.Amount.Cents)
	return c, nil
}
