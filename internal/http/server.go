package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finbits/internal/auth"
	applog "finbits/internal/log"
	"finbits/internal/metrics"
	"finbits/internal/middleware/ratelimit"
	"finbits/internal/middleware/security"
	"finbits/internal/middleware/trace"
	"finbits/internal/services"
)

// Deps are the collaborators the API needs.
type Deps struct {
	Budgets     *services.BudgetService
	Learning    *services.LearningService
	Progression *services.ProgressionService
	Auth        *auth.Issuer

	// Ready reports whether the backing stores answer; nil means always ready.
	Ready func(ctx context.Context) error

	Logger             *applog.Logger
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	budgets     *services.BudgetService
	learning    *services.LearningService
	progression *services.ProgressionService
	issuer      *auth.Issuer
	ready       func(ctx context.Context) error

	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.Discard()
	}

	s := &Server{
		budgets:     deps.Budgets,
		learning:    deps.Learning,
		progression: deps.Progression,
		issuer:      deps.Auth,
		ready:       deps.Ready,
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector:    security.NewDetector(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("POST /budgets", s.authed(s.handleCreateBudget))
	mux.Handle("GET /budgets", s.authed(s.handleListBudgets))
	mux.Handle("GET /budgets/summary/all", s.authed(s.handleBudgetSummary))
	mux.Handle("GET /budgets/{id}", s.authed(s.handleGetBudget))
	mux.Handle("PUT /budgets/{id}", s.authed(s.handleUpdateBudget))
	mux.Handle("DELETE /budgets/{id}", s.authed(s.handleDeleteBudget))
	mux.Handle("POST /budgets/{id}/spend", s.authed(s.handleAddSpending))

	mux.Handle("POST /bits/generate-all", s.authed(s.handleGenerateBit))
	mux.Handle("GET /bits", s.authed(s.handleListBits))
	mux.Handle("GET /bits/{id}", s.authed(s.handleGetBit))
	mux.Handle("DELETE /bits/{id}", s.authed(s.handleDeleteBit))
	mux.Handle("GET /bits/{id}/progress", s.authed(s.handleGetProgress))
	mux.Handle("PATCH /bits/{id}/progress", s.authed(s.handleAnswer))
	mux.Handle("GET /bits/{id}/analytics", s.authed(s.handleAnalytics))

	mux.Handle("GET /me/profile", s.authed(s.handleProfile))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "route not found").Write(w)
	})

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		metrics.RateLimited()
		applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(),
			"Rate limit exceeded",
			applog.NewFields().WithClientIP(s.detector.ExtractClientIP(r)).
				WithHTTPRequest(r.Method, r.URL.Path, "", "", "").ToSlice()...)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})

	// The mux must receive the request pointer the tracer holds so that
	// r.Pattern is visible when request metrics are recorded.
	var handler http.Handler = mux
	handler = mutatingOnly(limit)(handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = tracer.Middleware(handler)
	handler = applog.Middleware(logger.WithComponent(applog.ComponentHTTP))(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// authed requires a valid bearer token before running h.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return s.issuer.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).DebugContext(r.Context(),
			"Request rejected", applog.FieldError, err.Error())
		writeError(w, r, err)
	})(h)
}

// mutatingOnly applies limit to every method except the safe ones.
func mutatingOnly(limit func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				limited.ServeHTTP(w, r)
			}
		})
	}
}

// Shutdown gracefully shuts down the server and the limiter cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
