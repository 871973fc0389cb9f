// Package services holds the balance, closure and ledger use cases.
package services

import (
	"context"

	"saldo/internal/storage"
)

// LedgerStore is the persistence the services need: pooled reads and
// per-user write transactions.
type LedgerStore interface {
	Ledger() *storage.Ledger
	InUserTx(ctx context.Context, userID string, fn func(*storage.Ledger) error) error
}

var _ LedgerStore = (*storage.Store)(nil)
