package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookmarksScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marksweep_bookmarks_scanned_total",
			Help: "Bookmarks processed by the scan pipeline, by outcome",
		},
		[]string{"outcome"}, // accessible, broken
	)

	Categorizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marksweep_categorizations_total",
			Help: "Categories assigned, by method",
		},
		[]string{"method"},
	)

	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marksweep_probe_duration_seconds",
			Help:    "Duration of accessibility probes including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"accessible"},
	)

	OrganizeActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marksweep_organize_actions_total",
			Help: "Store mutations attempted during organization",
		},
		[]string{"action", "result"}, // action: create_folder, move, remove
	)

	RetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marksweep_retry_failures_total",
			Help: "Failed attempts that were retried, by operation",
		},
		[]string{"operation"},
	)
)
