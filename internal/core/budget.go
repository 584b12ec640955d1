package core

import "errors"

// ErrZeroBudget signals a progress computation against a zero (or negative)
// monthly limit. The ratio is undefined there, so it is an explicit error
// instead of NaN or +Inf.
var ErrZeroBudget = errors.New("monthly budget is zero")

// BudgetConfig is the user-set spending ceiling for a calendar month.
// It lives in process memory only; it is not persisted across runs.
type BudgetConfig struct {
	MonthlyLimit Money
}

// IsSet reports whether a usable limit has been configured.
func (b BudgetConfig) IsSet() bool {
	return b.MonthlyLimit.Cents > 0
}

// CategoryAmount is an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Total      Money
	Count      int
	ByCategory []CategoryAmount
}

// BudgetStatus compares a month's spend against the configured limit.
type BudgetStatus struct {
	Limit     Money
	Spent     Money
	Remaining Money
	Fraction  float64 // spent/limit clamped to [0,1]
	Overspent bool
}

// TotalSpent sums amounts over records whose date falls in the given
// calendar month. Records outside the month are ignored.
func TotalSpent(records []Record, year, month int) Money {
	var cents int64
	for _, r := range records {
		if r.Date.InMonth(year, month) {
			cents += r.Amount.Cents
		}
	}
	return Money{Cents: cents}
}

// Remaining returns limit minus total. A negative result signals overspend;
// it is deliberately not clamped.
func Remaining(total, limit Money) Money {
	return Money{Cents: limit.Cents - total.Cents}
}

// ProgressFraction returns the spent-to-limit ratio clamped to [0,1],
// with overspent set when the unclamped ratio exceeds 1. A zero or
// negative limit returns ErrZeroBudget.
func ProgressFraction(total, limit Money) (frac float64, overspent bool, err error) {
	if limit.Cents <= 0 {
		return 0, false, ErrZeroBudget
	}
	f := float64(total.Cents) / float64(limit.Cents)
	if f > 1 {
		return 1, true, nil
	}
	if f < 0 {
		return 0, false, nil
	}
	return f, false, nil
}

// BudgetStatusFor derives the full comparison used by the progress display.
func BudgetStatusFor(total, limit Money) (BudgetStatus, error) {
	frac, over, err := ProgressFraction(total, limit)
	if err != nil {
		return BudgetStatus{}, err
	}
	return BudgetStatus{
		Limit:     limit,
		Spent:     total,
		Remaining: Remaining(total, limit),
		Fraction:  frac,
		Overspent: over,
	}, nil
}

// BuildMonthOverview aggregates records into a month summary. Category
// order follows first appearance within the month.
func BuildMonthOverview(records []Record, year, month int) MonthOverview {
	ov := MonthOverview{Year: year, Month: month}
	index := map[string]int{}
	for _, r := range records {
		if !r.Date.InMonth(year, month) {
			continue
		}
		ov.Count++
		ov.Total.Cents += r.Amount.Cents
		i, ok := index[r.Category]
		if !ok {
			i = len(ov.ByCategory)
			index[r.Category] = i
			ov.ByCategory = append(ov.ByCategory, CategoryAmount{Name: r.Category})
		}
		ov.ByCategory[i].Amount.Cents += r.Amount.Cents
	}
	return ov
}
