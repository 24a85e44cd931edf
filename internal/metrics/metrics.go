// Package metrics holds the Prometheus instruments recorded while resolving
// references. Every recorder is a no-op until InitMetrics is called, so the
// library never touches the default registry on its own.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
)

var (
	resolutionsTotal *prometheus.CounterVec
	fetchesTotal     *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	absentTagsTotal  prometheus.Counter

	metricsOnce       sync.Once
	metricsRegistered bool
)

// InitMetrics registers the resolver metrics with the default registry.
// It is safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		resolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kvresolve_resolutions_total",
				Help: "Total number of resolution passes over a configuration tree",
			},
			[]string{"outcome"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kvresolve_fetches_total",
				Help: "Total number of secret fetches issued",
			},
			[]string{"store", "outcome"},
		)

		fetchDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kvresolve_fetch_duration_seconds",
				Help:    "Duration of secret fetches in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"store"},
		)

		absentTagsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kvresolve_absent_tags_total",
				Help: "Total number of tag references that named a tag missing on the secret",
			},
		)

		metricsRegistered = true
	})
}

// RecordResolution records the outcome of a full resolution pass.
func RecordResolution(outcome string) {
	if !metricsRegistered || resolutionsTotal == nil {
		return
	}
	resolutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordFetch records one fetch against a store.
func RecordFetch(store, outcome string, durationSeconds float64) {
	if !metricsRegistered {
		return
	}

	if fetchesTotal != nil {
		fetchesTotal.WithLabelValues(store, outcome).Inc()
	}

	if fetchDuration != nil {
		fetchDuration.WithLabelValues(store).Observe(durationSeconds)
	}
}

// RecordAbsentTag counts a tag reference that resolved to the empty string.
func RecordAbsentTag() {
	if !metricsRegistered || absentTagsTotal == nil {
		return
	}
	absentTagsTotal.Inc()
}

// GetResolutionsTotal returns the resolutions counter for testing.
func GetResolutionsTotal() *prometheus.CounterVec {
	return resolutionsTotal
}

// GetFetchesTotal returns the fetch counter for testing.
func GetFetchesTotal() *prometheus.CounterVec {
	return fetchesTotal
}

// GetFetchDuration returns the fetch duration histogram for testing.
func GetFetchDuration() *prometheus.HistogramVec {
	return fetchDuration
}

// GetAbsentTagsTotal returns the absent tag counter for testing.
func GetAbsentTagsTotal() prometheus.Counter {
	return absentTagsTotal
}

// IsMetricsRegistered returns whether metrics have been initialized.
func IsMetricsRegistered() bool {
	return metricsRegistered
}

// WriteTextfile writes the default registry in the node_exporter textfile
// format to path.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
