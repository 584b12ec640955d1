package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"tally/internal/core"
	"tally/internal/memory"
)

func newTestServer(t *testing.T, budget core.BudgetConfig) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	srv := NewServer(":0", store, budget)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	return srv, store
}

func postForm(srv *Server, path string, form url.Values) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, core.BudgetConfig{})

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != 200 {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Expense Tracker") {
		t.Fatalf("index body missing heading")
	}
	if !strings.Contains(rr.Body.String(), "Food") {
		t.Fatalf("index body missing default category options")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestIndexUnknownPath(t *testing.T) {
	srv, _ := newTestServer(t, core.BudgetConfig{})

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", rr.Code)
	}
}

func TestCreateRecordValidationAndSuccess(t *testing.T) {
	srv, _ := newTestServer(t, core.BudgetConfig{})

	// Wrong method
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/expenses", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	// Invalid amount
	rr = postForm(srv, "/expenses", url.Values{
		"date": {"2024-01-15"}, "category": {"Food"}, "amount": {"abc"},
	})
	if rr.Code != 422 {
		t.Fatalf("invalid amount: expected 422, got %d", rr.Code)
	}

	// Invalid date
	rr = postForm(srv, "/expenses", url.Values{
		"date": {"15/01/2024"}, "category": {"Food"}, "amount": {"7.00"},
	})
	if rr.Code != 422 {
		t.Fatalf("invalid date: expected 422, got %d", rr.Code)
	}

	// Missing category
	rr = postForm(srv, "/expenses", url.Values{
		"date": {"2024-01-15"}, "category": {"  "}, "amount": {"7.00"},
	})
	if rr.Code != 422 {
		t.Fatalf("empty category: expected 422, got %d", rr.Code)
	}

	// Success
	rr = postForm(srv, "/expenses", url.Values{
		"date": {"2024-01-15"}, "category": {"Food"}, "amount": {"7.00"}, "description": {"lunch"},
	})
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "success") {
		t.Fatalf("expected success in body: %s", rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, "expense:created") || !strings.Contains(trigger, `"year": 2024`) {
		t.Fatalf("unexpected HX-Trigger: %q", trigger)
	}
}

func TestMonthOverviewPartial(t *testing.T) {
	srv, _ := newTestServer(t, core.BudgetConfig{})

	for _, form := range []url.Values{
		{"date": {"2024-01-15"}, "category": {"Food"}, "amount": {"10.00"}, "description": {"groceries"}},
		{"date": {"2024-01-20"}, "category": {"Transport"}, "amount": {"5.00"}},
		{"date": {"2024-02-01"}, "category": {"Food"}, "amount": {"99.00"}},
	} {
		if rr := postForm(srv, "/expenses", form); rr.Code != 200 {
			t.Fatalf("seed append failed: %d", rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ui/month-overview?year=2024&month=1", nil))
	if rr.Code != 200 {
		t.Fatalf("overview status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "£15.00") {
		t.Fatalf("overview missing January total: %s", body)
	}
	if !strings.Contains(body, "Transport") {
		t.Fatalf("overview missing category row: %s", body)
	}
	if strings.Contains(body, "£99.00") {
		t.Fatalf("overview leaked February spend: %s", body)
	}
	if !strings.Contains(body, "Set a monthly budget") {
		t.Fatalf("expected unset-budget hint: %s", body)
	}
	if !strings.Contains(body, "groceries") || !strings.Contains(body, "2024-01-20") {
		t.Fatalf("expected detail table rows: %s", body)
	}
}

func TestBudgetEndpointAndProgress(t *testing.T) {
	srv, _ := newTestServer(t, core.BudgetConfig{})

	// Zero budget is rejected outright.
	rr := postForm(srv, "/budget", url.Values{"limit": {"0"}})
	if rr.Code != 422 {
		t.Fatalf("zero budget: expected 422, got %d", rr.Code)
	}

	rr = postForm(srv, "/budget", url.Values{"limit": {"100.00"}})
	if rr.Code != 200 {
		t.Fatalf("set budget: expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "budget:updated") {
		t.Fatalf("missing budget:updated trigger")
	}

	if rr := postForm(srv, "/expenses", url.Values{
		"date": {"2024-01-15"}, "category": {"Bills"}, "amount": {"15.00"},
	}); rr.Code != 200 {
		t.Fatalf("append failed: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ui/month-overview?year=2024&month=1", nil))
	body := rr.Body.String()
	if !strings.Contains(body, "£100.00") {
		t.Fatalf("overview missing budget limit: %s", body)
	}
	if !strings.Contains(body, "Remaining Budget") || !strings.Contains(body, "£85.00") {
		t.Fatalf("overview missing remaining budget: %s", body)
	}
	if !strings.Contains(body, "15% of budget used") {
		t.Fatalf("overview missing progress label: %s", body)
	}
}

func TestBudgetOverspendDisplay(t *testing.T) {
	limit := core.Money{Cents: 1000}
	srv, _ := newTestServer(t, core.BudgetConfig{MonthlyLimit: limit})

	if rr := postForm(srv, "/expenses", url.Values{
		"date": {"2024-03-02"}, "category": {"Shopping"}, "amount": {"25.00"},
	}); rr.Code != 200 {
		t.Fatalf("append failed: %d", rr.Code)
	}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ui/month-overview?year=2024&month=3", nil))
	body := rr.Body.String()
	if !strings.Contains(body, "over budget") {
		t.Fatalf("expected overspend warning: %s", body)
	}
	if !strings.Contains(body, "£15.00") {
		t.Fatalf("expected overrun amount: %s", body)
	}
	if !strings.Contains(body, "100% of budget used") {
		t.Fatalf("progress should clamp at 100%%: %s", body)
	}
}

func TestOverviewCacheInvalidatedOnAppend(t *testing.T) {
	srv, _ := newTestServer(t, core.BudgetConfig{})

	if rr := postForm(srv, "/expenses", url.Values{
		"date": {"2024-01-15"}, "category": {"Food"}, "amount": {"10.00"},
	}); rr.Code != 200 {
		t.Fatalf("append failed: %d", rr.Code)
	}

	// Prime the cache.
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ui/month-overview?year=2024&month=1", nil))
	if !strings.Contains(rr.Body.String(), "£10.00") {
		t.Fatalf("expected first total: %s", rr.Body.String())
	}

	if rr := postForm(srv, "/expenses", url.Values{
		"date": {"2024-01-16"}, "category": {"Food"}, "amount": {"2.50"},
	}); rr.Code != 200 {
		t.Fatalf("second append failed: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ui/month-overview?year=2024&month=1", nil))
	if !strings.Contains(rr.Body.String(), "£12.50") {
		t.Fatalf("overview served stale cache: %s", rr.Body.String())
	}
}

func TestExportMatchesSnapshot(t *testing.T) {
	srv, store := newTestServer(t, core.BudgetConfig{})

	for _, form := range []url.Values{
		{"date": {"2024-01-15"}, "category": {"Food"}, "amount": {"10.00"}, "description": {"groceries, weekly"}},
		{"date": {"2024-01-20"}, "category": {"Transport"}, "amount": {"5.50"}},
	} {
		if rr := postForm(srv, "/expenses", form); rr.Code != 200 {
			t.Fatalf("seed append failed: %d", rr.Code)
		}
	}

	want, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export", nil))
	if rr.Code != 200 {
		t.Fatalf("export status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("Content-Type = %q, want text/csv", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "expenses.csv") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if !bytes.Equal(rr.Body.Bytes(), want) {
		t.Fatalf("export bytes differ from store snapshot:\n%s\n---\n%s", rr.Body.Bytes(), want)
	}
	if !strings.HasPrefix(rr.Body.String(), "date,category,amount,description") {
		t.Fatalf("export missing header row: %s", rr.Body.String())
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv, _ := newTestServer(t, core.BudgetConfig{})

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers")
	}
}

func TestSuspiciousRequestRejected(t *testing.T) {
	srv, _ := newTestServer(t, core.BudgetConfig{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?file=.env", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for suspicious request, got %d", rr.Code)
	}
}

func TestWriteBurstRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, core.BudgetConfig{})

	form := url.Values{"limit": {"100"}}
	var last *httptest.ResponseRecorder
	for i := 0; i < 61; i++ {
		last = postForm(srv, "/budget", form)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d after write burst, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After = %q, want 60", last.Header().Get("Retry-After"))
	}

	// Reads stay unthrottled.
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("read status = %d after write burst, want 200", rr.Code)
	}
}
