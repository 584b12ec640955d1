// Package csvfile implements the default record store: a single CSV file
// read and rewritten wholesale on each append.
package csvfile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"tally/internal/core"
	"tally/internal/ledger"
)

// Store persists the full record set in one CSV file. Every append reads
// the current set, adds the record, and rewrites the whole file through a
// temp-file-then-rename step so a failed write never truncates the data.
// The mutex serializes access within this process only; cross-process
// writers are out of scope for a single-operator tool.
type Store struct {
	mu   sync.Mutex
	path string
}

var _ ledger.Store = (*Store)(nil)

func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the persisted file.
func (s *Store) Path() string { return s.path }

// LoadAll reads the full persisted set. A missing file is an empty store,
// not an error.
func (s *Store) LoadAll(ctx context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() ([]core.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &ledger.StorageError{Op: "read", Path: s.path, Err: err}
	}
	records, err := Unmarshal(data)
	if err != nil {
		return nil, &ledger.StorageError{Op: "decode", Path: s.path, Err: err}
	}
	return records, nil
}

// Append validates the record, then rewrites the file with the record
// added. The row reference is the 1-based position of the new record.
func (s *Store) Append(ctx context.Context, r core.Record) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadLocked()
	if err != nil {
		return "", err
	}
	records = append(records, r)
	if err := s.writeLocked(records); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Record saved to CSV store",
		"path", s.path,
		"row", len(records),
		"date", r.Date.String(),
		"category", r.Category,
		"amount_cents", r.Amount.Cents)

	return strconv.Itoa(len(records)), nil
}

func (s *Store) writeLocked(records []core.Record) error {
	data, err := Marshal(records)
	if err != nil {
		return &ledger.StorageError{Op: "encode", Path: s.path, Err: err}
	}
	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &ledger.StorageError{Op: "mkdir", Path: dir, Err: err}
		}
	}
	// Write to a sibling temp file then rename, so readers never observe
	// a partially written set.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &ledger.StorageError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return &ledger.StorageError{Op: "rename", Path: s.path, Err: err}
	}
	return nil
}

// Snapshot returns the canonical CSV bytes for the full set. For a file
// store this re-serializes the loaded records, which matches the on-disk
// bytes because the codec is canonical in both directions.
func (s *Store) Snapshot(ctx context.Context) ([]byte, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	data, err := Marshal(records)
	if err != nil {
		return nil, &ledger.StorageError{Op: "encode", Path: s.path, Err: err}
	}
	return data, nil
}

// ReadMonthOverview aggregates the month in memory; the file is small by
// design.
func (s *Store) ReadMonthOverview(ctx context.Context, year int, month int) (core.MonthOverview, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return core.MonthOverview{}, err
	}
	return core.BuildMonthOverview(records, year, month), nil
}
