package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey struct{}

// Middleware makes logger available to handlers through FromContext.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// ComponentMiddleware rescopes the request logger to component.
func ComponentMiddleware(component string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).WithComponent(component)
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger, or one wrapping slog.Default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: ComponentApp}
}

// StructuredLogger writes the fixed-shape records that dashboards and
// alerts key on. Each record sets its own component, so it writes through
// the raw slog logger.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) emit(ctx context.Context, level slog.Level, msg string, fields LogFields) {
	sl.logger.Logger.Log(ctx, level, msg, fields.ToSlice()...)
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	sl.emit(ctx, slog.LevelInfo, "HTTP request started", NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), r.Referer()).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP))
}

// LogHTTPEnd logs 4xx at warn and 5xx at error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}
	sl.emit(ctx, level, "HTTP request completed", NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP))
}

func (sl *StructuredLogger) LogSpendingRecorded(ctx context.Context, owner, budgetID, label, category, amount, remaining string) {
	sl.emit(ctx, slog.LevelInfo, "Spending recorded", NewFields().
		WithUser(owner).
		WithBudget(budgetID, label).
		WithSpending(category, amount, remaining).
		WithOperation(OpSpend).
		WithComponent(ComponentBudget))
}

func (sl *StructuredLogger) LogBitCompleted(ctx context.Context, userID, bitID string, points int) {
	sl.emit(ctx, slog.LevelInfo, "Bit fully completed", NewFields().
		WithUser(userID).
		WithBit(bitID, "").
		WithPoints(points).
		WithOperation(OpReward).
		WithComponent(ComponentLearning))
}

// LogError merges err, operation and component into fields.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	sl.emit(ctx, slog.LevelError, msg, fields.WithError(err).WithOperation(operation).WithComponent(component))
}
