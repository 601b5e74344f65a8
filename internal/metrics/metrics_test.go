package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(eventsPublished.WithLabelValues("bit.fully_completed", "error"))
	EventPublished("bit.fully_completed", errors.New("broker down"))
	after := testutil.ToFloat64(eventsPublished.WithLabelValues("bit.fully_completed", "error"))
	assert.Equal(t, before+1, after)

	beforeAns := testutil.ToFloat64(quizAnswers.WithLabelValues("basic", "true"))
	QuizAnswer("basic", true)
	assert.Equal(t, beforeAns+1, testutil.ToFloat64(quizAnswers.WithLabelValues("basic", "true")))

	beforeProbe := testutil.ToFloat64(suspiciousRequests.WithLabelValues("probe_path"))
	SuspiciousRequest("probe_path")
	assert.Equal(t, beforeProbe+1, testutil.ToFloat64(suspiciousRequests.WithLabelValues("probe_path")))

	beforeHit := testutil.ToFloat64(cacheLookups.WithLabelValues("summaries", "hit"))
	CacheLookup("summaries", true)
	assert.Equal(t, beforeHit+1, testutil.ToFloat64(cacheLookups.WithLabelValues("summaries", "hit")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveHTTP(http.MethodGet, "GET /budgets", http.StatusOK, 15*time.Millisecond)
	RewardGranted()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "finbits_http_requests_total"))
	assert.True(t, strings.Contains(body, "finbits_progression_rewards_granted_total"))
}
