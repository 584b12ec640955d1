package http

import (
	"errors"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	data := struct {
		Today      string
		Year       int
		Month      int
		Categories []string
	}{
		Today:      now.Format(core.DateLayout),
		Year:       now.Year(),
		Month:      int(now.Month()),
		Categories: core.DefaultCategories,
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Malformed request</div>`))
		return
	}

	dateStr := strings.TrimSpace(r.Form.Get("date"))
	category := sanitizeInput(r.Form.Get("category"))
	amountStr := strings.TrimSpace(r.Form.Get("amount"))
	desc := sanitizeInput(r.Form.Get("description"))

	date, err := core.ParseDate(dateStr)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Date format should be YYYY-MM-DD</div>`))
		return
	}

	cents, err := core.ParseDecimalToCents(amountStr)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Amount must be a valid number</div>`))
		return
	}

	rec := core.Record{
		Date:        date,
		Category:    category,
		Amount:      core.Money{Cents: cents},
		Description: desc,
	}
	if err := rec.Validate(); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Failed to add expense: ` + template.HTMLEscapeString(err.Error()) + `</div>`))
		return
	}

	ref, err := s.store.Append(r.Context(), rec)
	if err != nil {
		slog.ErrorContext(r.Context(), "Record append error", "error", err,
			"category", rec.Category, "amount_cents", rec.Amount.Cents)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Failed to save expense</div>`))
		return
	}

	// Invalidate the cached aggregate for the record's month and trigger
	// a client refresh.
	year := rec.Date.Year()
	month := int(rec.Date.Month())
	s.invalidateOverview(year, month)

	w.Header().Set("HX-Trigger", `{"expense:created": {"year": `+strconv.Itoa(year)+`, "month": `+strconv.Itoa(month)+`}}`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Expense added successfully! (#` + template.HTMLEscapeString(ref) + `): ` +
		template.HTMLEscapeString(rec.Category) +
		` ` + formatPounds(rec.Amount.Cents) + `</div>`))
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Malformed request</div>`))
		return
	}

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(r.Form.Get("limit")))
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Budget must be a valid number</div>`))
		return
	}
	if cents <= 0 {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Budget must be greater than zero</div>`))
		return
	}

	limit := core.Money{Cents: cents}
	s.setBudget(core.BudgetConfig{MonthlyLimit: limit})

	w.Header().Set("HX-Trigger", `{"budget:updated": {}}`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Monthly budget set to ` + formatPounds(limit.Cents) + `</div>`))
}

type overviewBudget struct {
	Set       bool
	Limit     string
	Percent   int
	Overspent bool
	Remaining string
	Overrun   string
}

type overviewRow struct {
	Name, Amount string
	Width        int
}

type overviewItem struct {
	Date, Category, Amount, Description string
}

// handleMonthOverview renders the monthly overview partial.
func (s *Server) handleMonthOverview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	now := time.Now()
	year := now.Year()
	month := int(now.Month())
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			month = m
		}
	}
	if month < 1 || month > 12 {
		slog.WarnContext(r.Context(), "Invalid month parameter", "year", year, "month", month)
		month = int(now.Month())
	}

	ov, err := s.getOverview(r.Context(), year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Month overview error", "error", err, "year", year, "month", month)
		_, _ = w.Write([]byte(`<section id="month-overview" class="month-overview"><div class="placeholder">Could not load the overview</div></section>`))
		return
	}

	data := struct {
		Year       int
		Month      int
		MonthLabel string
		Total      string
		Count      int
		Budget     overviewBudget
		Rows       []overviewRow
		Items      []overviewItem
	}{
		Year:       ov.Year,
		Month:      ov.Month,
		MonthLabel: time.Month(ov.Month).String() + " " + strconv.Itoa(ov.Year),
		Total:      formatPounds(ov.Total.Cents),
		Count:      ov.Count,
	}

	budget := s.BudgetConfig()
	if budget.IsSet() {
		status, err := core.BudgetStatusFor(ov.Total, budget.MonthlyLimit)
		if err != nil {
			// IsSet guarantees a positive limit, so only log the oddity.
			if !errors.Is(err, core.ErrZeroBudget) {
				slog.ErrorContext(r.Context(), "Budget status error", "error", err)
			}
		} else {
			data.Budget = overviewBudget{
				Set:       true,
				Limit:     formatPounds(status.Limit.Cents),
				Percent:   int(math.Round(status.Fraction * 100)),
				Overspent: status.Overspent,
				Remaining: formatPounds(status.Remaining.Cents),
			}
			if status.Overspent {
				data.Budget.Overrun = formatPounds(-status.Remaining.Cents)
			}
		}
	}

	// Scale category bars against the largest category.
	var maxCents int64
	for _, c := range ov.ByCategory {
		if c.Amount.Cents > maxCents {
			maxCents = c.Amount.Cents
		}
	}
	for _, c := range ov.ByCategory {
		width := 0
		if maxCents > 0 && c.Amount.Cents > 0 {
			width = int((c.Amount.Cents*100 + maxCents/2) / maxCents) // rounded percent
			if width < 2 {
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		data.Rows = append(data.Rows, overviewRow{
			Name:   c.Name,
			Amount: formatPounds(c.Amount.Cents),
			Width:  width,
		})
	}

	// Detail table, most recent first.
	items, err := s.getMonthRecords(r.Context(), year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "List records error", "error", err, "year", year, "month", month)
	} else {
		sort.SliceStable(items, func(i, j int) bool {
			return items[j].Date.Before(items[i].Date.Time)
		})
		for _, rec := range items {
			data.Items = append(data.Items, overviewItem{
				Date:        rec.Date.String(),
				Category:    rec.Category,
				Amount:      formatPounds(rec.Amount.Cents),
				Description: rec.Description,
			})
		}
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="month-overview" class="month-overview"><div class="placeholder">Total Spending: ` + data.Total + `</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "month_overview.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err,
			"template", "month_overview.html", "year", year, "month", month)
		_, _ = w.Write([]byte(`<section id="month-overview" class="month-overview"><div class="placeholder">Could not render the overview</div></section>`))
	}
}

// handleExport streams the full expense file as a CSV download. The bytes
// are exactly what the store persists.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	data, err := s.store.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot error", "error", err)
		http.Error(w, "failed to export expenses", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.csv"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
