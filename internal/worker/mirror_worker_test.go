package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/memory"
)

type fakeTarget struct {
	mu        sync.Mutex
	appended  []core.Record
	replaced  [][]core.Record
	appendErr error
}

func (f *fakeTarget) AppendRecord(_ context.Context, rec core.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return "", f.appendErr
	}
	f.appended = append(f.appended, rec)
	return "Expenses!A2:D2", nil
}

func (f *fakeTarget) ReplaceAll(_ context.Context, records []core.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make([]core.Record, len(records))
	copy(copied, records)
	f.replaced = append(f.replaced, copied)
	return nil
}

func (f *fakeTarget) replaceCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replaced)
}

func TestHandleRecordCreated(t *testing.T) {
	target := &fakeTarget{}
	w := NewMirrorWorker(memory.New(), target)

	msg := amqp.NewRecordCreatedMessage("mem:1", "2024-01-15", "Food", 700, "lunch")
	if err := w.HandleRecordCreated(context.Background(), msg); err != nil {
		t.Fatalf("HandleRecordCreated() error = %v", err)
	}

	if len(target.appended) != 1 {
		t.Fatalf("appended %d records, want 1", len(target.appended))
	}
	got := target.appended[0]
	if got.Category != "Food" || got.Amount.Cents != 700 || got.Date.String() != "2024-01-15" {
		t.Fatalf("unexpected mirrored record: %+v", got)
	}
}

func TestHandleRecordCreatedBadDate(t *testing.T) {
	w := NewMirrorWorker(memory.New(), &fakeTarget{})

	msg := amqp.NewRecordCreatedMessage("mem:1", "15/01/2024", "Food", 700, "")
	if err := w.HandleRecordCreated(context.Background(), msg); err == nil {
		t.Fatal("expected error for unparseable date")
	}
}

func TestHandleRecordCreatedTargetError(t *testing.T) {
	target := &fakeTarget{appendErr: errors.New("quota exceeded")}
	w := NewMirrorWorker(memory.New(), target)

	msg := amqp.NewRecordCreatedMessage("mem:1", "2024-01-15", "Food", 700, "")
	if err := w.HandleRecordCreated(context.Background(), msg); err == nil {
		t.Fatal("expected error to propagate for requeue")
	}
}

func TestReconcile(t *testing.T) {
	store := memory.New()
	for _, rec := range []core.Record{
		{Date: mustDate(t, "2024-01-15"), Category: "Food", Amount: core.Money{Cents: 1000}},
		{Date: mustDate(t, "2024-01-20"), Category: "Transport", Amount: core.Money{Cents: 500}},
	} {
		if _, err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("seed append: %v", err)
		}
	}

	target := &fakeTarget{}
	w := NewMirrorWorker(store, target)

	if err := w.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if target.replaceCalls() != 1 {
		t.Fatalf("ReplaceAll called %d times, want 1", target.replaceCalls())
	}
	if len(target.replaced[0]) != 2 {
		t.Fatalf("mirror got %d records, want 2", len(target.replaced[0]))
	}
}

func TestRunReconcileLoopStopsOnCancel(t *testing.T) {
	target := &fakeTarget{}
	w := NewMirrorWorker(memory.New(), target)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.RunReconcileLoop(ctx, 10*time.Millisecond)
	}()

	deadline := time.After(500 * time.Millisecond)
	for target.replaceCalls() < 2 {
		select {
		case <-deadline:
			t.Fatal("loop never ran a second reconciliation")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("RunReconcileLoop() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
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
