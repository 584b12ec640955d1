package services

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/ledger"
)

// EventPublisher is the slice of the AMQP client the service needs.
type EventPublisher interface {
	PublishRecordCreated(ctx context.Context, msg *amqp.RecordCreatedMessage) error
}

// RecordService wraps a record store and announces appends on the event
// bus. Persistence always comes first; a publish failure is logged and
// dropped so the mirror can never fail a user's submission.
type RecordService struct {
	store  ledger.Store
	events EventPublisher
	closer func() error
}

var _ ledger.Store = (*RecordService)(nil)

func NewRecordService(store ledger.Store, events EventPublisher, closer func() error) *RecordService {
	return &RecordService{store: store, events: events, closer: closer}
}

func (s *RecordService) Append(ctx context.Context, r core.Record) (string, error) {
	ref, err := s.store.Append(ctx, r)
	if err != nil {
		return "", err
	}

	if s.events != nil {
		msg := amqp.NewRecordCreatedMessage(ref, r.Date.String(), r.Category, r.Amount.Cents, r.Description)
		if err := s.events.PublishRecordCreated(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish record-created message",
				"row_ref", ref, "error", err)
			// Record is saved locally; the periodic reconciliation
			// catches up the mirror.
		}
	}

	return ref, nil
}

func (s *RecordService) LoadAll(ctx context.Context) ([]core.Record, error) {
	return s.store.LoadAll(ctx)
}

func (s *RecordService) ReadMonthOverview(ctx context.Context, year int, month int) (core.MonthOverview, error) {
	return s.store.ReadMonthOverview(ctx, year, month)
}

func (s *RecordService) Snapshot(ctx context.Context) ([]byte, error) {
	return s.store.Snapshot(ctx)
}

// Close releases the underlying store resources, if any.
func (s *RecordService) Close() error {
	if s.closer == nil {
		return nil
	}
	if err := s.closer(); err != nil {
		return fmt.Errorf("close record service: %w", err)
	}
	return nil
}
