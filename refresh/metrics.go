package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidcast_refresh_runs_total",
		Help: "The total number of completed refresh runs",
	})

	refreshListingErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidcast_refresh_listing_errors_total",
		Help: "The total number of refresh runs that failed to fetch the remote listing",
	})

	refreshInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidcast_refresh_in_flight",
		Help: "The number of channel refresh runs currently in flight",
	})

	episodesNew = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidcast_episodes_new_total",
		Help: "The total number of newly materialized episodes",
	})

	episodesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidcast_episodes_failed_total",
		Help: "The total number of per-item failures during refresh runs",
	})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vidcast_refresh_duration_seconds",
		Help:    "Duration of channel refresh runs",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // Start at 1s, double each bucket, 10 buckets
	})
)
