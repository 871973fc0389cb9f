package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/rates"
)

// BalanceService computes the open period's balance. It never writes.
type BalanceService struct {
	store  LedgerStore
	rates  rates.Provider
	logger *log.Logger
	now    func() time.Time
}

func NewBalanceService(store LedgerStore, provider rates.Provider, logger *log.Logger) *BalanceService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if provider == nil {
		provider = rates.StaticProvider{}
	}
	return &BalanceService{
		store:  store,
		rates:  provider,
		logger: logger.WithComponent(log.ComponentBalance),
		now:    time.Now,
	}
}

// ComputeBalance reads the last closure, sums the period after it, and
// converts the result to ARS. A missing exchange rate degrades to a 1:1
// conversion flagged as fallback; only store failures are errors.
func (s *BalanceService) ComputeBalance(ctx context.Context, userID string) (core.BalanceView, error) {
	if strings.TrimSpace(userID) == "" {
		return core.BalanceView{}, core.ErrUnauthorized
	}
	l := s.store.Ledger()

	last, err := l.LastClosure(ctx, userID)
	if err != nil {
		return core.BalanceView{}, fmt.Errorf("compute balance: %w", err)
	}

	var (
		totals  core.PeriodTotals
		monthly core.Money
		savings core.Money
		rate    core.Rate
		rateErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = l.PeriodTotals(gctx, userID, core.PeriodStart(last))
		return err
	})
	g.Go(func() error {
		var err error
		monthly, err = l.MonthlyIncome(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		savings, err = l.TotalSavings(gctx, userID)
		return err
	})
	g.Go(func() error {
		rate, rateErr = s.rates.BlueRate(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.BalanceView{}, fmt.Errorf("compute balance: %w", err)
	}

	if rateErr != nil {
		s.logger.WarnContext(ctx, "Exchange rate unavailable, using fallback",
			log.FieldUserID, userID,
			log.FieldError, rateErr.Error())
	}

	return assembleView(last, totals, monthly, savings, rate, rateErr, s.now().UTC()), nil
}

func assembleView(last *core.MonthClosure, totals core.PeriodTotals, monthly, savings core.Money, rate core.Rate, rateErr error, now time.Time) core.BalanceView {
	income := totals.Income.Add(monthly)
	net := core.NetBalance(totals, monthly)

	v := core.BalanceView{
		TotalIncome:      income,
		Expenses:         totals.Expenses,
		Net:              net,
		MonthlyIncome:    monthly,
		ExtraIncome:      totals.Income,
		TotalSavings:     savings,
		TransactionCount: totals.Count,
		CurrencyCode:     core.BaseCurrency,
		ExchangeRate:     decimal.NewFromInt(1),
		RateFallback:     true,
		RateAt:           now,
		ComputedAt:       now,
	}
	if last != nil {
		v.AccumulatedBalance = last.AccumulatedBalance
		closedAt := last.ClosureDate
		v.LastClosureDate = &closedAt
	}
	if rateErr == nil && rate.Sell.IsPositive() {
		r := rate
		v.ExchangeRate = rate.Sell
		v.Blue = &r
		v.RateFallback = false
	}

	v.USD = core.Convert(income, totals.Expenses, net, savings, decimal.NewFromInt(1))
	v.ARS = core.Convert(income, totals.Expenses, net, savings, v.ExchangeRate)
	return v
}

// SetMonthlyIncome stores the user's recurring base income. Negative
// amounts and amounts above core.MaxAmountCents are rejected.
func (s *BalanceService) SetMonthlyIncome(ctx context.Context, userID string, amount core.Money) (core.Money, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Money{}, core.ErrUnauthorized
	}
	if amount.Cents < 0 || amount.Cents > core.MaxAmountCents {
		return core.Money{}, core.InvalidInput(core.ErrInvalidAmount)
	}
	if err := s.store.Ledger().SetMonthlyIncome(ctx, userID, amount, s.now()); err != nil {
		return core.Money{}, fmt.Errorf("set monthly income: %w", err)
	}
	s.logger.InfoContext(ctx, "Monthly income updated",
		log.FieldUserID, userID,
		log.FieldAmountCents, amount.Cents)
	return amount, nil
}

// SetAutoClose enables or disables scheduled closures for the user.
func (s *BalanceService) SetAutoClose(ctx context.Context, userID string, every core.RepetitionTypes, anchor core.Date) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrUnauthorized
	}
	if !every.Valid() {
		return core.InvalidInput(core.ErrInvalidFrequency)
	}
	if anchor.IsZero() && every != core.Never {
		now := s.now().UTC()
		anchor = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}
	if err := s.store.Ledger().SetAutoClose(ctx, userID, every, anchor, s.now()); err != nil {
		return fmt.Errorf("set auto close: %w", err)
	}
	return nil
}

// Preferences returns the user's stored settings, or the defaults.
func (s *BalanceService) Preferences(ctx context.Context, userID string) (core.UserPreferences, error) {
	if strings.TrimSpace(userID) == "" {
		return core.UserPreferences{}, core.ErrUnauthorized
	}
	p, err := s.store.Ledger().Preferences(ctx, userID)
	if err != nil {
		return core.UserPreferences{}, fmt.Errorf("load preferences: %w", err)
	}
	return p, nil
}
