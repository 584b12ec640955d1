package amqp

import (
	"encoding/json"
	"time"
)

// RecordCreatedMessage announces a newly appended expense record. It
// carries the full record fields so the mirror worker does not need
// access to the primary store to replay it.
type RecordCreatedMessage struct {
	RowRef      string    `json:"row_ref"`
	Date        string    `json:"date"` // ISO-8601 calendar date
	Category    string    `json:"category"`
	AmountCents int64     `json:"amount_cents"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewRecordCreatedMessage builds a message stamped with the current time.
func NewRecordCreatedMessage(rowRef, date, category string, amountCents int64, description string) *RecordCreatedMessage {
	return &RecordCreatedMessage{
		RowRef:      rowRef,
		Date:        date,
		Category:    category,
		AmountCents: amountCents,
		Description: description,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *RecordCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordCreatedMessageFromJSON parses a message from JSON bytes.
func RecordCreatedMessageFromJSON(data []byte) (*RecordCreatedMessage, error) {
	var msg RecordCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
