// Package trace tags each request with an ID and records its lifecycle in
// logs and HTTP metrics.
package trace

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	applog "finbits/internal/log"
	"finbits/internal/metrics"
)

// RequestIDHeader carries the request ID in and out.
const RequestIDHeader = "X-Request-ID"

const maxIncomingIDLen = 64

type requestIDKey struct{}

type Middleware struct {
	extractIP func(*http.Request) string
	events    *applog.StructuredLogger
}

// NewMiddleware builds the tracer. extractIP may be nil.
func NewMiddleware(logger *applog.Logger, extractIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &Middleware{
		extractIP: extractIP,
		events:    applog.NewStructuredLogger(logger.WithComponent(applog.ComponentTrace)),
	}
}

// Middleware propagates or assigns the request ID, echoes it in the
// response and scopes the context logger to it. Metrics are labelled with
// the matched mux pattern, which is only known after next has run.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var clientIP string
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		id := r.Header.Get(RequestIDHeader)
		if !validIncomingID(id) {
			id = GenerateRequestID()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = applog.NewContext(ctx, applog.FromContext(ctx).With(applog.FieldRequestID, id))
		r = r.WithContext(ctx)

		m.events.LogHTTPStart(ctx, r, clientIP)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		metrics.ObserveHTTP(r.Method, r.Pattern, rec.status, elapsed)
		m.events.LogHTTPEnd(ctx, r, rec.status, elapsed.Milliseconds(), clientIP)
	})
}

// validIncomingID accepts short printable IDs from upstream proxies.
func validIncomingID(id string) bool {
	if id == "" || len(id) > maxIncomingIDLen {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.written {
		s.status = code
		s.written = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.written = true
	return s.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func GenerateRequestID() string {
	return uuid.NewString()
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
