package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"saldo/internal/api"
)

// BalanceAPI is the part of Client the cache needs.
type BalanceAPI interface {
	Balance(ctx context.Context) (api.Balance, error)
	SetMonthlyIncome(ctx context.Context, amount decimal.Decimal) (api.SetMonthlyIncomeResponse, error)
	CloseBalance(ctx context.Context) (api.CloseResponse, error)
	Closures(ctx context.Context, limit int) ([]api.Closure, error)
}

// Snapshot is the cache state at one instant. Balance is nil until the
// first successful fetch; Err is the outcome of the latest fetch.
type Snapshot struct {
	Balance   *api.Balance
	Err       error
	Loading   bool
	FetchedAt time.Time
}

// BalanceCache holds the last fetched balance for one user. It refreshes
// only when asked to and after its own mutations, never on a timer.
type BalanceCache struct {
	api   BalanceAPI
	group singleflight.Group
	now   func() time.Time

	mu      sync.RWMutex
	balance *api.Balance
	err     error
	loading int
	fetched time.Time
}

func NewBalanceCache(a BalanceAPI) *BalanceCache {
	return &BalanceCache{api: a, now: time.Now}
}

func (c *BalanceCache) Balance() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Balance:   c.balance,
		Err:       c.err,
		Loading:   c.loading > 0,
		FetchedAt: c.fetched,
	}
}

// Refetch loads the balance again. Concurrent calls share one request. A
// failed fetch keeps the previous balance and records the error.
func (c *BalanceCache) Refetch(ctx context.Context) (api.Balance, error) {
	v, err, _ := c.group.Do("balance", func() (any, error) {
		c.mu.Lock()
		c.loading++
		c.mu.Unlock()

		b, err := c.api.Balance(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		c.loading--
		c.err = err
		if err != nil {
			return api.Balance{}, err
		}
		c.balance = &b
		c.fetched = c.now()
		return b, nil
	})
	if err != nil {
		return api.Balance{}, fmt.Errorf("refetch balance: %w", err)
	}
	return v.(api.Balance), nil
}

// SetMonthlyIncome updates the monthly income and then refreshes. Only the
// mutation's failure is returned; a failed refresh shows up in Balance().
func (c *BalanceCache) SetMonthlyIncome(ctx context.Context, amount decimal.Decimal) error {
	if _, err := c.api.SetMonthlyIncome(ctx, amount); err != nil {
		return fmt.Errorf("set monthly income: %w", err)
	}
	_, _ = c.Refetch(ctx)
	return nil
}

// CloseBalance closes the open period and then refreshes.
func (c *BalanceCache) CloseBalance(ctx context.Context) (api.CloseResponse, error) {
	res, err := c.api.CloseBalance(ctx)
	if err != nil {
		return api.CloseResponse{}, fmt.Errorf("close balance: %w", err)
	}
	_, _ = c.Refetch(ctx)
	return res, nil
}

// Closures returns the closure history; it is not cached.
func (c *BalanceCache) Closures(ctx context.Context) ([]api.Closure, error) {
	cs, err := c.api.Closures(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list closures: %w", err)
	}
	return cs, nil
}
