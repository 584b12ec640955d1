// Package worker keeps the external mirror in sync with the local ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/ledger"
)

// MirrorTarget is the surface the worker writes to.
type MirrorTarget interface {
	AppendRecord(ctx context.Context, rec core.Record) (string, error)
	ReplaceAll(ctx context.Context, records []core.Record) error
}

// MirrorWorker consumes record-created events and periodically rewrites
// the mirror wholesale from the source store.
type MirrorWorker struct {
	source ledger.RecordLister
	target MirrorTarget
}

func NewMirrorWorker(source ledger.RecordLister, target MirrorTarget) *MirrorWorker {
	return &MirrorWorker{source: source, target: target}
}

// HandleRecordCreated processes a single record-created message. A
// returned error requeues the message.
func (w *MirrorWorker) HandleRecordCreated(ctx context.Context, msg *amqp.RecordCreatedMessage) error {
	slog.InfoContext(ctx, "Processing record-created message",
		"row_ref", msg.RowRef,
		"category", msg.Category)

	date, err := core.ParseDate(msg.Date)
	if err != nil {
		// Malformed dates cannot succeed on retry.
		return fmt.Errorf("parse message date %q: %w", msg.Date, err)
	}

	rec := core.Record{
		Date:        date,
		Category:    msg.Category,
		Amount:      core.Money{Cents: msg.AmountCents},
		Description: msg.Description,
	}

	ref, err := w.target.AppendRecord(ctx, rec)
	if err != nil {
		return fmt.Errorf("append record to mirror: %w", err)
	}

	slog.InfoContext(ctx, "Record mirrored",
		"source_ref", msg.RowRef,
		"mirror_ref", ref)
	return nil
}

// Reconcile rewrites the mirror from the full source data set. It heals
// drift caused by lost events or wholesale rewrites of the source file.
func (w *MirrorWorker) Reconcile(ctx context.Context) error {
	records, err := w.source.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load records for reconciliation: %w", err)
	}

	if err := w.target.ReplaceAll(ctx, records); err != nil {
		return fmt.Errorf("replace mirror contents: %w", err)
	}

	slog.InfoContext(ctx, "Reconciliation complete", "records", len(records))
	return nil
}

// RunReconcileLoop runs Reconcile on a fixed interval until the context
// is cancelled. The first pass runs immediately.
func (w *MirrorWorker) RunReconcileLoop(ctx context.Context, interval time.Duration) error {
	if err := w.Reconcile(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup reconciliation failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil {
				slog.ErrorContext(ctx, "Reconciliation failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
