package services

import (
	"context"
	"errors"
	"testing"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/memory"
)

type fakePublisher struct {
	published []*amqp.RecordCreatedMessage
	err       error
}

func (f *fakePublisher) PublishRecordCreated(_ context.Context, msg *amqp.RecordCreatedMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func validRecord() core.Record {
	return core.Record{
		Date:        core.NewDate(2024, 1, 5),
		Category:    "Food",
		Amount:      core.Money{Cents: 1050},
		Description: "lunch",
	}
}

func TestAppendPublishesEvent(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewRecordService(memory.New(), pub, nil)

	ref, err := svc.Append(context.Background(), validRecord())
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(pub.published))
	}
	msg := pub.published[0]
	if msg.RowRef != ref || msg.Date != "2024-01-05" || msg.Category != "Food" || msg.AmountCents != 1050 {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestAppendSurvivesPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewRecordService(memory.New(), pub, nil)

	if _, err := svc.Append(context.Background(), validRecord()); err != nil {
		t.Fatalf("append must not fail on publish error, got %v", err)
	}
	records, err := svc.LoadAll(context.Background())
	if err != nil || len(records) != 1 {
		t.Fatalf("record should still be persisted: %d, %v", len(records), err)
	}
}

func TestAppendValidationSkipsPublish(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewRecordService(memory.New(), pub, nil)

	bad := validRecord()
	bad.Amount.Cents = -1
	if _, err := svc.Append(context.Background(), bad); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(pub.published) != 0 {
		t.Fatalf("rejected record must not be announced")
	}
}

func TestNilPublisher(t *testing.T) {
	svc := NewRecordService(memory.New(), nil, nil)
	if _, err := svc.Append(context.Background(), validRecord()); err != nil {
		t.Fatalf("append without publisher: %v", err)
	}
}
