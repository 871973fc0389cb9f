package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"saldo/internal/core"
	"saldo/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "saldo.db"), 10*time.Second)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// clock is a manually advanced time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func record(t *testing.T, svc *LedgerService, user string, typ core.TransactionType, cents int64) core.Transaction {
	t.Helper()
	tx, err := svc.RecordTransaction(context.Background(), core.Transaction{
		UserID: user, Type: typ, Amount: core.Money{Cents: cents}, Description: string(typ),
	})
	if err != nil {
		t.Fatalf("RecordTransaction: %v", err)
	}
	return tx
}

type recordingPublisher struct {
	mu       sync.Mutex
	closures []core.MonthClosure
	err      error
}

func (p *recordingPublisher) PublishClosure(_ context.Context, c core.MonthClosure) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closures = append(p.closures, c)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.closures)
}
