package backend

import (
	"context"
	"path/filepath"
	"testing"

	"tally/internal/core"
)

func TestCreateStoreMemory(t *testing.T) {
	f := NewFactory(nil)

	result, err := f.CreateStore(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateStore() error = %v", err)
	}
	defer result.Cleanup()

	rec := core.Record{
		Date:     mustDate(t, "2024-01-15"),
		Category: "Food",
		Amount:   core.Money{Cents: 700},
	}
	if _, err := result.Store.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	all, err := result.Store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("LoadAll() returned %d records, want 1", len(all))
	}
}

func TestCreateStoreCSV(t *testing.T) {
	f := NewFactory(nil)
	path := filepath.Join(t.TempDir(), "expenses.csv")

	result, err := f.CreateStore(context.Background(), Config{Type: CSVBackend, CSVPath: path})
	if err != nil {
		t.Fatalf("CreateStore() error = %v", err)
	}
	defer result.Cleanup()

	if _, err := result.Store.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
}

func TestCreateStoreInvalidConfig(t *testing.T) {
	f := NewFactory(nil)

	if _, err := f.CreateStore(context.Background(), Config{Type: "postgres"}); err == nil {
		t.Fatal("expected error for unknown backend type")
	}
	if _, err := f.CreateStore(context.Background(), Config{Type: CSVBackend}); err == nil {
		t.Fatal("expected error for csv backend without path")
	}
}

func TestFromAppConfigRejectsUnknownBackend(t *testing.T) {
	_, err := FromAppConfig(nil)
	if err == nil {
		t.Fatal("expected error for nil config")
	}
}

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", s, err)
	}
	return d
}
