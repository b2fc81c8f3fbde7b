package musicbrainz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes recorded in requestsTotal.
const (
	outcomeOK           = "ok"
	outcomeHTTPError    = "http_error"
	outcomeConnectError = "connect_error"
	outcomeError        = "error"
)

var (
	// requestsTotal counts search attempts by entity and outcome.
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "songfix",
		Subsystem: "musicbrainz",
		Name:      "requests_total",
		Help:      "MusicBrainz search attempts by entity and outcome",
	}, []string{"entity", "outcome"})

	// requestDuration measures a single attempt, excluding time spent at the gate.
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "songfix",
		Subsystem: "musicbrainz",
		Name:      "request_duration_seconds",
		Help:      "Duration of one MusicBrainz search attempt",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"entity"})

	// gateWait measures how long callers queue at the rate gate.
	gateWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "songfix",
		Subsystem: "musicbrainz",
		Name:      "gate_wait_seconds",
		Help:      "Time spent waiting for the MusicBrainz rate gate",
		Buckets:   []float64{0, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

func observeAttempt(entity Entity, outcome string, start time.Time) {
	requestsTotal.WithLabelValues(string(entity), outcome).Inc()
	requestDuration.WithLabelValues(string(entity)).Observe(time.Since(start).Seconds())
}
