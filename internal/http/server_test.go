package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbits/internal/auth"
	"finbits/internal/cache"
	"finbits/internal/core"
	"finbits/internal/generator"
	"finbits/internal/memory"
	"finbits/internal/services"
	"finbits/internal/worker"
)

const testSecret = "test-secret-with-at-least-32-chars!"

type testAPI struct {
	srv    *Server
	issuer *auth.Issuer
	ready  error
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.New()
	progression := services.NewProgressionService(store, store, nil)
	events := worker.New(progression, nil, nil)

	api := &testAPI{issuer: auth.NewIssuer(testSecret, time.Hour)}
	api.srv = NewServer(":0", Deps{
		Budgets:            services.NewBudgetService(store, events, cache.NewLRUCache[[]core.SummaryItem](10, time.Minute), nil),
		Learning:           services.NewLearningService(store, store, generator.Placeholder{}, events, nil, nil),
		Progression:        progression,
		Auth:               api.issuer,
		Ready:              func(context.Context) error { return api.ready },
		RateLimitPerMinute: 1000,
	})
	t.Cleanup(func() { _ = api.srv.Shutdown(context.Background()) })
	return api
}

func (a *testAPI) do(t *testing.T, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(v))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := a.issuer.Issue(user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, rr)["error"]
}

func TestHealthAndReadiness(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := api.do(t, "", http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	api.ready = errors.New("db down")
	rr := api.do(t, "", http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, "", http.MethodGet, "/budgets", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthorized", errorMessage(t, rr))

	req := httptest.NewRequest(http.MethodGet, "/bits", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr = httptest.NewRecorder()
	api.srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBudgetFlow(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, "alice", http.MethodPost, "/budgets", map[string]any{
		"period":      "monthly",
		"totalBudget": 1000,
		"month":       1,
		"week":        4,
		"categories":  []any{map[string]any{"name": "Food", "allocated": 300}, "Rent"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[map[string]any](t, rr)
	id := created["id"].(string)
	assert.Equal(t, float64(1000), created["remaining"])
	assert.Equal(t, float64(300), created["totalAllocated"])
	assert.Nil(t, created["week"])

	rr = api.do(t, "alice", http.MethodPost, "/budgets/"+id+"/spend", map[string]any{"categoryName": "Food", "amount": "120"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	spent := decode[map[string]any](t, rr)
	assert.Equal(t, float64(880), spent["remaining"])
	assert.Equal(t, float64(120), spent["totalSpent"])

	rr = api.do(t, "alice", http.MethodPut, "/budgets/"+id, map[string]any{"savingsGoal": 200, "totalBudget": 900})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, float64(780), decode[map[string]any](t, rr)["remaining"])

	rr = api.do(t, "alice", http.MethodGet, "/budgets/summary/all", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decode[[]map[string]any](t, rr)
	require.Len(t, summary, 1)
	assert.Contains(t, summary[0]["label"], "January ")

	rr = api.do(t, "alice", http.MethodGet, "/budgets", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)

	// Other owners never see the budget.
	rr = api.do(t, "bob", http.MethodGet, "/budgets/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = api.do(t, "bob", http.MethodDelete, "/budgets/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, "alice", http.MethodDelete, "/budgets/"+id, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = api.do(t, "alice", http.MethodGet, "/budgets/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBudgetValidationErrors(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name    string
		body    any
		wantMsg string
	}{
		{"malformed json", `{"period":`, "malformed JSON body"},
		{"missing period", map[string]any{"totalBudget": 10, "categories": []string{"A"}}, "period is required"},
		{"bad period", map[string]any{"period": "daily", "totalBudget": 10, "categories": []string{"A"}}, "period must be one of monthly, weekly"},
		{"missing categories", map[string]any{"period": "weekly", "totalBudget": 10}, "categories is required"},
		{"zero total", map[string]any{"period": "weekly", "totalBudget": 0, "categories": []string{"A"}}, "totalBudget must be greater than zero"},
		{"bad amount", map[string]any{"period": "weekly", "totalBudget": "ten", "categories": []string{"A"}}, `invalid amount "ten"`},
		{"duplicate category", map[string]any{"period": "weekly", "totalBudget": 10, "categories": []string{"A", "A"}}, `duplicate category "A"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(t, "alice", http.MethodPost, "/budgets", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.wantMsg, errorMessage(t, rr))
		})
	}
}

func TestSpendErrors(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, "alice", http.MethodPost, "/budgets", map[string]any{
		"period": "weekly", "totalBudget": 100, "categories": []string{"Food"},
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[map[string]any](t, rr)["id"].(string)

	rr = api.do(t, "alice", http.MethodPost, "/budgets/"+id+"/spend", map[string]any{"categoryName": "Fun", "amount": 5})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, "alice", http.MethodPost, "/budgets/"+id+"/spend", map[string]any{"categoryName": "Food", "amount": -5})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, "alice", http.MethodPost, "/budgets/"+id+"/spend", map[string]any{"categoryName": "Food"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "amount is required", errorMessage(t, rr))
}

func TestLearningFlow(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, "alice", http.MethodPost, "/bits/generate-all", map[string]any{"title": "Compound interest", "category": "investing"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	bit := decode[core.Bit](t, rr)
	assert.Equal(t, "Compound interest", bit.Topic)
	assert.Len(t, bit.Levels.Advanced.Quiz, core.QuestionsPerLevel)

	rr = api.do(t, "alice", http.MethodGet, "/bits", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.Bit](t, rr), 1)

	rr = api.do(t, "alice", http.MethodPatch, "/bits/"+bit.ID+"/progress", map[string]any{"level": "advanced", "questionIndex": 0, "isCorrect": true})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "level advanced is locked", errorMessage(t, rr))

	for _, level := range core.LevelOrder {
		for i := 0; i < core.QuestionsPerLevel; i++ {
			rr = api.do(t, "alice", http.MethodPatch, "/bits/"+bit.ID+"/progress", map[string]any{"level": level, "questionIndex": i, "answer": "A"})
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		}
	}
	p := decode[core.Progress](t, rr)
	assert.True(t, p.AllCompleted())
	assert.True(t, p.Rewarded)
	assert.Equal(t, core.QuestionsPerLevel, p.Advanced.Score)

	rr = api.do(t, "alice", http.MethodGet, "/bits/"+bit.ID+"/analytics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	a := decode[core.Analytics](t, rr)
	assert.Equal(t, 15, a.TotalAnswered)
	assert.Equal(t, 15, a.TotalScore)

	rr = api.do(t, "alice", http.MethodGet, "/me/profile", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	profile := decode[core.Profile](t, rr)
	assert.Equal(t, core.CompletionPoints, profile.Points)

	rr = api.do(t, "bob", http.MethodGet, "/bits/"+bit.ID+"/progress", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[core.Progress](t, rr).Basic.AnsweredQuestions)

	rr = api.do(t, "alice", http.MethodDelete, "/bits/"+bit.ID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = api.do(t, "alice", http.MethodGet, "/bits/"+bit.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGenerateRequiresTitle(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, "alice", http.MethodPost, "/bits/generate-all", map[string]any{"topic": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "title is required", errorMessage(t, rr))

	rr = api.do(t, "alice", http.MethodPost, "/bits/generate-all", map[string]any{"title": "x", "category": "crypto"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMutatingRequestsAreRateLimited(t *testing.T) {
	store := memory.New()
	issuer := auth.NewIssuer(testSecret, time.Hour)
	srv := NewServer(":0", Deps{
		Budgets:            services.NewBudgetService(store, nil, nil, nil),
		Learning:           services.NewLearningService(store, store, generator.Placeholder{}, nil, nil, nil),
		Progression:        services.NewProgressionService(store, store, nil),
		Auth:               issuer,
		RateLimitPerMinute: 2,
	})
	defer srv.Shutdown(context.Background())
	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	send := func(method string) int {
		req := httptest.NewRequest(method, "/budgets", bytes.NewBufferString(`{}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.RemoteAddr = "203.0.113.7:1234"
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusBadRequest, send(http.MethodPost))
	assert.Equal(t, http.StatusBadRequest, send(http.MethodPost))
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodPost))
	assert.Equal(t, http.StatusOK, send(http.MethodGet))
}

func TestResponsesCarryRequestIDAndSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, "alice", http.MethodGet, "/bits", nil)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
}
