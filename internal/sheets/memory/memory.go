package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"saldo/internal/core"
	"saldo/internal/sheets"
)

// Store keeps exported closures in memory, in export order. It is used when
// no spreadsheet is configured and in tests.
type Store struct {
	mu    sync.Mutex
	rows  []core.MonthClosure
	index map[int64]int
}

var _ sheets.ClosureExporter = (*Store)(nil)

func New() *Store {
	return &Store{index: map[int64]int{}}
}

// ExportClosure stores the closure once and returns a synthetic row reference.
func (s *Store) ExportClosure(_ context.Context, c core.MonthClosure) (string, error) {
	if c.ID <= 0 {
		return "", errors.New("export closure: missing closure id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.index[c.ID]; ok {
		return fmt.Sprintf("mem:%d", n), nil
	}
	s.rows = append(s.rows, c)
	s.index[c.ID] = len(s.rows)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Closures returns a copy of everything exported so far.
func (s *Store) Closures() []core.MonthClosure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.MonthClosure(nil), s.rows...)
}
