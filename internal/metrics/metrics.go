// Package metrics provides Prometheus metrics for facthistory.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoaderAttempts counts strategy attempts by outcome.
	LoaderAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facthistory",
			Name:      "loader_attempts_total",
			Help:      "Article load attempts per strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// DetailsRequests counts article detail lookups.
	DetailsRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facthistory",
			Name:      "details_requests_total",
			Help:      "Article detail lookups by result",
		},
		[]string{"result"},
	)

	// RefreshDuration measures full refresh cycles.
	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "facthistory",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of statistics refresh cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// StaleRefreshes counts refresh results discarded because a newer one won.
	StaleRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "facthistory",
			Name:      "stale_refreshes_total",
			Help:      "Refresh results discarded as stale",
		},
	)

	// ArticlesLoaded tracks the article count of the current summary.
	ArticlesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "facthistory",
			Name:      "articles_loaded",
			Help:      "Number of articles in the current statistics summary",
		},
	)

	// ExportsTotal counts generated exports by format.
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facthistory",
			Name:      "exports_total",
			Help:      "Generated exports by format",
		},
		[]string{"format"},
	)
)
