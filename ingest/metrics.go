package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomePublished    = "published"
	outcomeEmpty        = "empty"
	outcomeFetchFailed  = "fetch_failed"
	outcomeAvatarFailed = "avatar_failed"
)

var (
	cycleRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smwall_cycle_runs_total",
		Help: "The total number of ingestion cycles by strategy and outcome",
	}, []string{"strategy", "outcome"})

	cycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smwall_cycle_duration_seconds",
		Help:    "Duration of ingestion cycles",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // Start at 50ms, double each bucket
	}, []string{"strategy"})

	itemsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smwall_items_published_total",
		Help: "The total number of items broadcast to subscribers",
	}, []string{"strategy"})

	itemsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smwall_items_duplicate_total",
		Help: "The total number of fetched items dropped because they were already seen",
	}, []string{"strategy"})

	avatarFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smwall_avatar_failures_total",
		Help: "The total number of failed channel avatar resolutions",
	}, []string{"strategy"})
)
