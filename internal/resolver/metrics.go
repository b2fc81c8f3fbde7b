package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "songfix",
		Name:      "resolutions_total",
		Help:      "Completed resolutions by source of the returned correction.",
	}, []string{"source"})

	resolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "songfix",
		Name:      "resolution_duration_seconds",
		Help:      "Time to resolve a name, by the stage that finished the chain.",
		Buckets:   []float64{.001, .01, .1, .5, 1, 2.5, 5, 10, 30},
	}, []string{"stage"})

	cacheWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "songfix",
		Name:      "cache_write_failures_total",
		Help:      "Write-backs to the correction cache that failed.",
	})
)
