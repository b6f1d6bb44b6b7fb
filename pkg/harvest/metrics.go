package harvest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	descriptorsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fareharvest_descriptors_total",
		Help: "Request descriptors processed, by result",
	}, []string{"result"})

	observationsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fareharvest_observations_total",
		Help: "Extracted observations passed to the deduplicator, by outcome",
	}, []string{"outcome"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fareharvest_fetch_duration_seconds",
		Help:    "Time taken by upstream page requests",
		Buckets: prometheus.DefBuckets,
	})
)
