// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finbits"

var (
	// httpRequests counts served requests.
	// Labels: method, route (mux pattern), status
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	// httpDuration measures handler latency.
	// Labels: method, route
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP handler latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// rateLimited counts requests rejected by the limiter.
	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter",
	})

	// suspiciousRequests counts requests flagged by the security detector.
	// Labels: reason
	suspiciousRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "suspicious_requests_total",
		Help:      "Requests matching known probing patterns",
	}, []string{"reason"})

	// spendingRecorded counts spending mutations.
	spendingRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "budget",
		Name:      "spending_recorded_total",
		Help:      "Spending amounts recorded against budget categories",
	})

	// quizAnswers counts accepted answers.
	// Labels: level, correct
	quizAnswers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learning",
		Name:      "answers_total",
		Help:      "Quiz answers recorded by level and correctness",
	}, []string{"level", "correct"})

	// bitsCompleted counts bits whose three levels were all completed.
	bitsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learning",
		Name:      "bits_completed_total",
		Help:      "Bits fully completed by a user",
	})

	// generationDuration measures lesson generation calls.
	// Labels: status (success, error, invalid)
	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "generator",
		Name:      "duration_seconds",
		Help:      "Lesson generation latency in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"status"})

	// eventsPublished counts published domain events.
	// Labels: type, status (ok, error)
	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Domain events published by type and outcome",
	}, []string{"type", "status"})

	// eventsHandled counts consumed domain events.
	// Labels: type, status (ok, error)
	eventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "handled_total",
		Help:      "Domain events handled by type and outcome",
	}, []string{"type", "status"})

	// rewardsGranted counts completion rewards applied to profiles.
	rewardsGranted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "progression",
		Name:      "rewards_granted_total",
		Help:      "Completion rewards applied to user profiles",
	})

	// cacheLookups counts read-cache lookups.
	// Labels: cache, result (hit, miss)
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Read cache lookups by cache and result",
	}, []string{"cache", "result"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveHTTP(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RateLimited() { rateLimited.Inc() }

func SuspiciousRequest(reason string) { suspiciousRequests.WithLabelValues(reason).Inc() }

func SpendingRecorded() { spendingRecorded.Inc() }

func QuizAnswer(level string, correct bool) {
	quizAnswers.WithLabelValues(level, strconv.FormatBool(correct)).Inc()
}

func BitCompleted() { bitsCompleted.Inc() }

func ObserveGeneration(status string, d time.Duration) {
	generationDuration.WithLabelValues(status).Observe(d.Seconds())
}

func EventPublished(eventType string, err error) {
	eventsPublished.WithLabelValues(eventType, outcome(err)).Inc()
}

func EventHandled(eventType string, err error) {
	eventsHandled.WithLabelValues(eventType, outcome(err)).Inc()
}

func RewardGranted() { rewardsGranted.Inc() }

func CacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(cache, result).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
