package openai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK    = "ok"
	outcomeEmpty = "empty"
	outcomeError = "error"
)

var (
	completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "songfix",
		Subsystem: "openai",
		Name:      "completions_total",
		Help:      "Chat completion calls by outcome.",
	}, []string{"outcome"})

	completionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "songfix",
		Subsystem: "openai",
		Name:      "completion_duration_seconds",
		Help:      "Latency of successful chat completion calls.",
		Buckets:   prometheus.DefBuckets,
	})
)
