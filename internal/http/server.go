// Package http exposes the balance service as a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"saldo/internal/auth"
	"saldo/internal/cache"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/middleware/trace"
)

// BalanceAPI is the balance side of the service layer.
type BalanceAPI interface {
	ComputeBalance(ctx context.Context, userID string) (core.BalanceView, error)
	SetMonthlyIncome(ctx context.Context, userID string, amount core.Money) (core.Money, error)
	SetAutoClose(ctx context.Context, userID string, every core.RepetitionTypes, anchor core.Date) error
	Preferences(ctx context.Context, userID string) (core.UserPreferences, error)
}

// ClosureAPI closes periods and lists history.
type ClosureAPI interface {
	ClosePeriod(ctx context.Context, userID string) (core.ClosureSummary, error)
	ListClosures(ctx context.Context, userID string, limit int) ([]core.MonthClosure, error)
}

// LedgerAPI records new entries.
type LedgerAPI interface {
	RecordTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	RecordSavings(ctx context.Context, s core.SavingsContribution) (core.SavingsContribution, error)
}

// Services groups the handlers' dependencies.
type Services struct {
	Balance  BalanceAPI
	Closures ClosureAPI
	Ledger   LedgerAPI
}

// Options configures the server around the services.
type Options struct {
	Addr               string
	Authenticator      auth.Authenticator
	Logger             *log.Logger
	RateLimitPerMinute int
	TrustedProxies     []string
	// Ready backs /readyz; nil means always ready.
	Ready func(context.Context) error
	// Caches, when set, are reported on /metrics.
	Caches *cache.Manager
}

type Server struct {
	http.Server
	services Services
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector
	ready    func(context.Context) error
	caches   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, svc Services) (*Server, error) {
	if opts.Authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if svc.Balance == nil || svc.Closures == nil || svc.Ledger == nil {
		return nil, fmt.Errorf("all services are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	detector, err := security.NewDetector(logger, opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	s := &Server{
		services: svc,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
		detector: detector,
		ready:    opts.Ready,
		caches:   opts.Caches,
	}

	protect := func(h http.HandlerFunc) http.Handler {
		var handler http.Handler = h
		handler = auth.Middleware(opts.Authenticator, func(w http.ResponseWriter, r *http.Request) {
			writeErrorMessage(w, r, http.StatusUnauthorized, msgUnauthorized)
		})(handler)
		return s.limitWrites(handler)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.Handle("/balance", protect(s.handleBalance))
	mux.Handle("/balance/close", protect(s.handleClose))
	mux.Handle("/balance/auto-close", protect(s.handleAutoClose))
	mux.Handle("/transactions", protect(s.handleTransactions))
	mux.Handle("/savings", protect(s.handleSavings))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, r, http.StatusNotFound, msgNotFound)
	})

	var handler http.Handler = mux
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

// limitWrites rate limits mutating requests per client address.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		writeErrorMessage(w, r, http.StatusTooManyRequests, msgRateLimited)
	})(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

// Shutdown stops background goroutines and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	tm := s.tracer.GetMetrics()
	rl := s.limiter.GetMetrics()
	sec := s.detector.GetMetrics()

	fmt.Fprintf(w, "saldo_http_requests_total %d\n", tm.TotalRequests)
	fmt.Fprintf(w, "saldo_http_client_errors_total %d\n", tm.ClientErrors)
	fmt.Fprintf(w, "saldo_http_server_errors_total %d\n", tm.ServerErrors)
	fmt.Fprintf(w, "saldo_http_in_flight %d\n", tm.InFlight)
	fmt.Fprintf(w, "saldo_http_response_time_avg_microseconds %d\n", tm.AverageResponseTime)
	fmt.Fprintf(w, "saldo_rate_limit_rejected_total %d\n", rl.Rejected)
	fmt.Fprintf(w, "saldo_rate_limit_clients %d\n", rl.ClientCount)
	fmt.Fprintf(w, "saldo_security_suspicious_requests_total %d\n", sec.SuspiciousRequests)
	fmt.Fprintf(w, "saldo_security_spoofed_forwarding_total %d\n", sec.SpoofedForwarding)

	if s.caches == nil {
		return
	}
	stats := s.caches.Stats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := stats[name]
		fmt.Fprintf(w, "saldo_cache_hits_total{cache=%q} %d\n", name, st.Hits)
		fmt.Fprintf(w, "saldo_cache_misses_total{cache=%q} %d\n", name, st.Misses)
		fmt.Fprintf(w, "saldo_cache_entries{cache=%q} %d\n", name, st.Size)
	}
}
