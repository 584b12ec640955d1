// Package http serves the expense tracker web UI and its JSON-free,
// HTMX-driven partials.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	appweb "tally/web"
)

// Server wires the record store, caches, and middleware into an
// http.Server ready to run.
type Server struct {
	http.Server
	templates *template.Template
	store     ledger.Store

	detector *security.Detector
	headers  *security.HeadersMiddleware
	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter

	// Month aggregates and record lists are cached per year-month key
	// and invalidated on writes.
	overviewCache *cache.LRUCache[core.MonthOverview]
	recordsCache  *cache.LRUCache[[]core.Record]
	cacheManager  *cache.Manager

	budgetMu sync.RWMutex
	budget   core.BudgetConfig

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, store ledger.Store, budget core.BudgetConfig) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:         store,
		detector:      security.NewDetector(),
		headers:       security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		limiter:       ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		overviewCache: cache.NewLRUCache[core.MonthOverview](100, 5*time.Minute),
		recordsCache:  cache.NewLRUCache[[]core.Record](200, 5*time.Minute),
		cacheManager:  cache.NewManager(),
		budget:        budget,
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	s.cacheManager.Register(s.overviewCache)
	s.cacheManager.Register(s.recordsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.Handle("/", s.wrap(http.HandlerFunc(s.handleIndex)))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/expenses", s.wrap(http.HandlerFunc(s.handleCreateRecord)))
	mux.Handle("/budget", s.wrap(http.HandlerFunc(s.handleSetBudget)))
	mux.Handle("/export", s.wrap(http.HandlerFunc(s.handleExport)))
	// UI partials
	mux.Handle("/ui/month-overview", s.wrap(http.HandlerFunc(s.handleMonthOverview)))

	return s
}

// wrap composes security headers, tracing, suspicious-request logging,
// and write-path rate limiting around a handler.
func (s *Server) wrap(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		slog.WarnContext(r.Context(), "Rate limit exceeded",
			"client_ip", s.detector.ExtractClientIP(r),
			"path", r.URL.Path)
		w.Header().Set("Retry-After", "60")
		http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
	})(next)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request detected",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", s.detector.ExtractClientIP(r))
			http.NotFound(w, r)
			return
		}

		// Only writes are rate limited; reads are served from cache.
		if r.Method == http.MethodPost {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})

	return s.headers.Middleware(s.tracer.Middleware(inner))
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// BudgetConfig returns the current budget setting.
func (s *Server) BudgetConfig() core.BudgetConfig {
	s.budgetMu.RLock()
	defer s.budgetMu.RUnlock()
	return s.budget
}

func (s *Server) setBudget(b core.BudgetConfig) {
	s.budgetMu.Lock()
	s.budget = b
	s.budgetMu.Unlock()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if _, err := s.store.LoadAll(ctx); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) getOverview(ctx context.Context, year, month int) (core.MonthOverview, error) {
	key := cacheKey(year, month)

	if data, found := s.overviewCache.Get(key); found {
		slog.DebugContext(ctx, "Overview cache hit", "year", year, "month", month)
		return data, nil
	}

	// Small timeout so a slow store cannot hang the partial.
	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	data, err := s.store.ReadMonthOverview(cctx, year, month)
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("read month overview (year=%d, month=%d): %w", year, month, err)
	}

	s.overviewCache.Set(key, data)
	slog.DebugContext(ctx, "Overview cached",
		"year", year, "month", month,
		"total_cents", data.Total.Cents,
		"categories", len(data.ByCategory))
	return data, nil
}

func (s *Server) getMonthRecords(ctx context.Context, year, month int) ([]core.Record, error) {
	key := cacheKey(year, month)

	if items, found := s.recordsCache.Get(key); found {
		slog.DebugContext(ctx, "Records cache hit", "year", year, "month", month, "count", len(items))
		result := make([]core.Record, len(items))
		copy(result, items)
		return result, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	all, err := s.store.LoadAll(cctx)
	if err != nil {
		return nil, fmt.Errorf("list month records (year=%d, month=%d): %w", year, month, err)
	}

	var items []core.Record
	for _, rec := range all {
		if rec.Date.InMonth(year, month) {
			items = append(items, rec)
		}
	}

	s.recordsCache.Set(key, items)
	slog.DebugContext(ctx, "Records cached", "year", year, "month", month, "count", len(items))
	return items, nil
}

func (s *Server) invalidateOverview(year, month int) {
	s.overviewCache.Delete(cacheKey(year, month))
	s.recordsCache.Delete(cacheKey(year, month))
}
