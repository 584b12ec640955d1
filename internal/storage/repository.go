// Package storage implements the SQLite-backed record store. The contract
// matches the CSV store; callers pick a backend through configuration.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"tally/internal/core"
	"tally/internal/csvfile"
	"tally/internal/ledger"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append validates and inserts one record; the row reference is the
// database id.
func (r *SQLiteRepository) Append(ctx context.Context, rec core.Record) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO records (date, category, amount_cents, description) VALUES (?, ?, ?, ?)`,
		rec.Date.String(), rec.Category, rec.Amount.Cents, rec.Description)
	if err != nil {
		return "", &ledger.StorageError{Op: "insert", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", &ledger.StorageError{Op: "insert id", Err: err}
	}

	slog.InfoContext(ctx, "Record saved to SQLite",
		"id", id,
		"date", rec.Date.String(),
		"category", rec.Category,
		"amount_cents", rec.Amount.Cents)

	return strconv.FormatInt(id, 10), nil
}

// LoadAll returns every record in insertion order.
func (r *SQLiteRepository) LoadAll(ctx context.Context) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, category, amount_cents, description FROM records ORDER BY id`)
	if err != nil {
		return nil, &ledger.StorageError{Op: "select", Err: err}
	}
	defer rows.Close()

	var records []core.Record
	for rows.Next() {
		var (
			dateStr, category, description string
			cents                          int64
		)
		if err := rows.Scan(&dateStr, &category, &cents, &description); err != nil {
			return nil, &ledger.StorageError{Op: "scan", Err: err}
		}
		date, err := core.ParseDate(dateStr)
		if err != nil {
			return nil, &ledger.StorageError{Op: "decode", Err: fmt.Errorf("stored date %q: %w", dateStr, err)}
		}
		records = append(records, core.Record{
			Date:        date,
			Category:    category,
			Amount:      core.Money{Cents: cents},
			Description: description,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &ledger.StorageError{Op: "select", Err: err}
	}
	return records, nil
}

// ReadMonthOverview aggregates in SQL; the date column carries the ISO
// form, so a half-open range on the month prefix is index-friendly.
func (r *SQLiteRepository) ReadMonthOverview(ctx context.Context, year int, month int) (core.MonthOverview, error) {
	ov := core.MonthOverview{Year: year, Month: month}
	lo, hi := monthBounds(year, month)

	row := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0), COUNT(*) FROM records WHERE date >= ? AND date < ?`, lo, hi)
	if err := row.Scan(&ov.Total.Cents, &ov.Count); err != nil {
		return ov, &ledger.StorageError{Op: "month total", Err: err}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents) FROM records
		 WHERE date >= ? AND date < ?
		 GROUP BY category ORDER BY MIN(id)`, lo, hi)
	if err != nil {
		return ov, &ledger.StorageError{Op: "category sums", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Amount.Cents); err != nil {
			return ov, &ledger.StorageError{Op: "scan", Err: err}
		}
		ov.ByCategory = append(ov.ByCategory, ca)
	}
	if err := rows.Err(); err != nil {
		return ov, &ledger.StorageError{Op: "category sums", Err: err}
	}
	return ov, nil
}

// Snapshot serializes the full set through the shared CSV codec, so the
// export is identical regardless of backend.
func (r *SQLiteRepository) Snapshot(ctx context.Context) ([]byte, error) {
	records, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return csvfile.Marshal(records)
}

func monthBounds(year, month int) (lo, hi string) {
	lo = fmt.Sprintf("%04d-%02d-01", year, month)
	y, m := year, month+1
	if m > 12 {
		y, m = y+1, 1
	}
	hi = fmt.Sprintf("%04d-%02d-01", y, m)
	return lo, hi
}
