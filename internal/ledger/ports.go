// Package ledger defines the record-store contract shared by all backends.
package ledger

import (
	"context"
	"fmt"

	"tally/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordAppender validates a record and persists it durably. A
	// validation failure leaves the stored set untouched.
	RecordAppender interface {
		Append(ctx context.Context, r core.Record) (rowRef string, err error)
	}

	// RecordLister returns the full persisted set in insertion order.
	// A store that has never been written to yields an empty slice,
	// not an error.
	RecordLister interface {
		LoadAll(ctx context.Context) ([]core.Record, error)
	}

	// MonthReader provides aggregated data for a specific year and month.
	MonthReader interface {
		ReadMonthOverview(ctx context.Context, year int, month int) (core.MonthOverview, error)
	}

	// SnapshotExporter produces the canonical CSV bytes of the current
	// full record set, byte-for-byte consistent with the persisted format.
	SnapshotExporter interface {
		Snapshot(ctx context.Context) ([]byte, error)
	}
)

// Store is the composite port a full backend satisfies.
type Store interface {
	RecordAppender
	RecordLister
	MonthReader
	SnapshotExporter
}

// StorageError reports an I/O failure against the persistent record set.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
