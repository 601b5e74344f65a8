package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(perMinute int) (*Limiter, *time.Time) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestLimiterBurstThenRefill(t *testing.T) {
	rl, now := newTestLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow("10.0.0.1"), "request %d should be allowed", i+1)
	}
	assert.False(t, rl.Allow("10.0.0.1"), "fourth request in the same instant should be rejected")
	assert.True(t, rl.Allow("10.0.0.2"), "other clients are limited separately")

	// 3 per minute refills one token every 20s.
	*now = now.Add(20 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"), "a refilled token should be spendable")
	assert.False(t, rl.Allow("10.0.0.1"), "only one token should have refilled")
}

func TestLimiterRetryAfter(t *testing.T) {
	rl, _ := newTestLimiter(2)
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.1")
	assert.Equal(t, 30*time.Second, rl.RetryAfter("10.0.0.1"))
	// Asking must not consume the token.
	assert.Equal(t, 30*time.Second, rl.RetryAfter("10.0.0.1"))
	assert.Zero(t, rl.RetryAfter("unknown"))
}

func TestLimiterForgetsIdleClients(t *testing.T) {
	rl, now := newTestLimiter(10)
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	*now = now.Add(11 * time.Minute)
	rl.Allow("10.0.0.2")
	rl.forgetIdle()

	assert.Equal(t, 1, rl.ActiveClients())
}

func TestMiddlewareRespondsWithJSON(t *testing.T) {
	rl, _ := newTestLimiter(1)
	defer rl.Stop()

	h := rl.Middleware(func(*http.Request) string { return "1.2.3.4" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/budgets", nil))
	require.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/budgets", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Equal(t, `{"error":"rate limit exceeded"}`, second.Body.String())
}
