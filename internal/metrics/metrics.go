package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login attempt outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeBusy      = "busy"
	OutcomeGoogle    = "google_redirect"
)

var (
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proflow",
		Name:      "login_attempts_total",
		Help:      "Login form actions by outcome.",
	}, []string{"outcome"})

	AuthRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "proflow",
		Name:      "auth_request_duration_seconds",
		Help:      "Latency of calls to the auth API.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})
)

func RecordAttempt(outcome string) {
	LoginAttempts.WithLabelValues(outcome).Inc()
}

func ObserveAuthRequest(status string, d time.Duration) {
	AuthRequestDuration.WithLabelValues(status).Observe(d.Seconds())
}
