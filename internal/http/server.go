// Package http serves the ledger as a JSON API. Every response uses the
// envelope {"success", "data", "message"}.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"dividi/internal/core"
	"dividi/internal/log"
	"dividi/internal/metrics"
	"dividi/internal/middleware/ratelimit"
	"dividi/internal/middleware/security"
	"dividi/internal/middleware/trace"
	"dividi/internal/services"
)

// Ledger is the service surface the handlers need.
type Ledger interface {
	AddExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	UpdateExpense(ctx context.Context, id string, u services.ExpenseUpdate) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	People(ctx context.Context) ([]string, error)
	Plan(ctx context.Context) (services.Plan, error)
}

type Config struct {
	Addr               string
	RateLimitPerMinute int
	CurrencySymbol     string
	// Ready backs /readyz; nil always reports ready.
	Ready   func(ctx context.Context) error
	Metrics *metrics.Metrics
	Logger  *log.Logger
}

type Server struct {
	http.Server
	ledger   Ledger
	currency string
	ready    func(ctx context.Context) error
	started  time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// probe paths skip rate limiting so orchestrators never get throttled.
var probePaths = map[string]bool{"/healthz": true, "/readyz": true, "/metrics": true}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, ledger Ledger) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.DefaultConfig())
	}
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = "₹"
	}
	logger := cfg.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:   ledger,
		currency: cfg.CurrencySymbol,
		ready:    cfg.Ready,
		started:  time.Now(),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector: security.NewDetector(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /expenses", s.handleListExpenses)
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("GET /people", s.handlePeople)
	mux.HandleFunc("GET /balances", s.handleBalances)
	mux.HandleFunc("GET /settlements", s.handleSettlements)
	mux.HandleFunc("GET /settlements/preview", s.handleSettlementPreview)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", cfg.Metrics.Handler())

	route := func(r *http.Request) string {
		if _, pattern := mux.Handler(r); pattern != "" {
			return pattern
		}
		return "unmatched"
	}

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	})(mux)

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if probePaths[r.URL.Path] {
			mux.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
	handler = s.detector.Middleware(logger)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(logger, cfg.Metrics, s.detector.ExtractClientIP, route).Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) uptime() time.Duration {
	return time.Since(s.started).Truncate(time.Second)
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
