package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for dates (ISO-8601 calendar date).
const DateLayout = "2006-01-02"

// DefaultCategories is the category set offered by the entry form.
var DefaultCategories = []string{
	"Food",
	"Transport",
	"Shopping",
	"Entertainment",
	"Bills",
	"Health",
	"Other",
}

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Record is one logged expense entry.
	Record struct {
		Date        Date
		Category    string
		Amount      Money
		Description string
	}
)

var (
	// ErrValidation is the base class for rejected user input. The specific
	// sentinels below wrap it, so errors.Is(err, ErrValidation) matches any
	// of them.
	ErrValidation = errors.New("validation failed")

	ErrInvalidAmount   = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrEmptyCategory   = fmt.Errorf("%w: empty category", ErrValidation)
	ErrLongDescription = fmt.Errorf("%w: description too long (max 500 characters)", ErrValidation)
)

// NewDate creates a Date from year, month, day (UTC midnight).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO-8601 calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String renders the wire format.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// InMonth reports whether the date falls in the given calendar month.
func (d Date) InMonth(year, month int) bool {
	return d.Year() == year && int(d.Time.Month()) == month
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (r Record) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if len(r.Description) > 500 {
		return ErrLongDescription
	}
	return nil
}

// KnownCategory reports whether name is one of the form's categories.
func KnownCategory(name string) bool {
	for _, c := range DefaultCategories {
		if c == name {
			return true
		}
	}
	return false
}
