package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"saldo/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// RequestIDHeader carries the request id in and out of the service.
	RequestIDHeader = "X-Request-ID"
)

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Middleware assigns request ids, logs completed requests and keeps simple
// counters for the metrics endpoint.
type Middleware struct {
	extractIP func(*http.Request) string
	events    *log.StructuredLogger
	metrics   *counters
}

type counters struct {
	total      atomic.Int64
	clientErr  atomic.Int64
	serverErr  atomic.Int64
	totalMicro atomic.Int64
	inFlight   atomic.Int64
}

// Metrics is a snapshot of the request counters.
type Metrics struct {
	TotalRequests       int64
	ClientErrors        int64
	ServerErrors        int64
	InFlight            int64
	AverageResponseTime int64 // microseconds
}

func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Middleware{
		extractIP: extractIP,
		events:    log.NewStructuredLogger(logger),
		metrics:   &counters{},
	}
}

// Middleware must run after log.Middleware so the request logger can be
// enriched with the request id.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	next = log.RequestIDMiddleware(func(r *http.Request) string {
		return GetRequestID(r.Context())
	})(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.metrics.inFlight.Add(1)
		defer m.metrics.inFlight.Add(-1)

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID.MatchString(requestID) {
			requestID = GenerateRequestID()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.record(rw.statusCode, duration)
		m.events.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP, requestID)
	})
}

func (m *Middleware) record(status int, d time.Duration) {
	m.metrics.total.Add(1)
	m.metrics.totalMicro.Add(d.Microseconds())
	switch {
	case status >= 500:
		m.metrics.serverErr.Add(1)
	case status >= 400:
		m.metrics.clientErr.Add(1)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	total := m.metrics.total.Load()
	var avg int64
	if total > 0 {
		avg = m.metrics.totalMicro.Load() / total
	}
	return Metrics{
		TotalRequests:       total,
		ClientErrors:        m.metrics.clientErr.Load(),
		ServerErrors:        m.metrics.serverErr.Load(),
		InFlight:            m.metrics.inFlight.Load(),
		AverageResponseTime: avg,
	}
}
