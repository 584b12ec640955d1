// Package memory provides an in-process record store used by tests and as
// a throwaway dev backend.
package memory

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/core"
	"tally/internal/csvfile"
	"tally/internal/ledger"
)

type Store struct {
	mu    sync.Mutex
	items []core.Record
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the record and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, r core.Record) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, r)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

func (s *Store) LoadAll(_ context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Record, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *Store) ReadMonthOverview(ctx context.Context, year int, month int) (core.MonthOverview, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return core.MonthOverview{}, err
	}
	return core.BuildMonthOverview(records, year, month), nil
}

// Snapshot serializes the held set through the shared CSV codec so the
// export format matches the file backend exactly.
func (s *Store) Snapshot(ctx context.Context) ([]byte, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return csvfile.Marshal(records)
}
