package csvfile

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"tally/internal/core"
)

// Header is the fixed first row of the persisted file.
var Header = []string{"date", "category", "amount", "description"}

// Marshal serializes records to the canonical CSV form: header row, one
// row per record, insertion order preserved, amounts with two decimals.
// The output is the byte-exact persisted/export format.
func Marshal(records []core.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, r := range records {
		row := []string{r.Date.String(), canonicalText(r.Category), r.Amount.FormatDecimal(), canonicalText(r.Description)}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// canonicalText folds CR and CRLF line endings to LF. encoding/csv reads
// a quoted \r\n back as a bare \n, so any other form on disk would stop
// matching a re-serialization of the loaded records.
func canonicalText(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// Unmarshal parses the persisted CSV form. Empty input yields no records.
// A malformed header or row is an error, not a silent skip; the row number
// is included so the operator can find the bad line.
func Unmarshal(data []byte) ([]core.Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(Header)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if !equalFold(rows[0], Header) {
		return nil, fmt.Errorf("unexpected header %q, want %q", rows[0], Header)
	}
	records := make([]core.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string) (core.Record, error) {
	date, err := core.ParseDate(row[0])
	if err != nil {
		return core.Record{}, fmt.Errorf("date %q: %w", row[0], err)
	}
	category := strings.TrimSpace(row[1])
	if category == "" {
		return core.Record{}, core.ErrEmptyCategory
	}
	cents, err := core.ParseDecimalToCents(row[2])
	if err != nil {
		return core.Record{}, fmt.Errorf("amount %q: %w", row[2], err)
	}
	return core.Record{
		Date:        date,
		Category:    category,
		Amount:      core.Money{Cents: cents},
		Description: row[3],
	}, nil
}

func equalFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(strings.TrimSpace(a[i]), b[i]) {
			return false
		}
	}
	return true
}
