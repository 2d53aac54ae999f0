// Package metrics provides Prometheus metrics for the ingestion pipeline
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IngestionMetrics contains Prometheus metrics for ingestion runs
type IngestionMetrics struct {
	registry *prometheus.Registry

	// Per-source record counters
	recordsProcessedTotal *prometheus.CounterVec
	recordsSkippedTotal   *prometheus.CounterVec
	recordsErrorsTotal    *prometheus.CounterVec
	taxaDiscoveredTotal   *prometheus.CounterVec

	// Run lifecycle
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

// NewIngestionMetrics creates and registers new ingestion metrics
func NewIngestionMetrics(registry *prometheus.Registry) (*IngestionMetrics, error) {
	m := &IngestionMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *IngestionMetrics) initMetrics() {
	m.recordsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_records_processed_total",
			Help: "Total number of records normalized and persisted",
		},
		[]string{"source"},
	)

	m.recordsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_records_skipped_total",
			Help: "Total number of records skipped as duplicates",
		},
		[]string{"source"},
	)

	m.recordsErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_record_errors_total",
			Help: "Total number of per-record failures during ingestion",
		},
		[]string{"source", "stage"}, // stage: fetch, normalize, persist
	)

	m.taxaDiscoveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_taxa_discovered_total",
			Help: "Total number of taxa discovered per source",
		},
		[]string{"source"},
	)

	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_runs_total",
			Help: "Total number of per-source ingestion runs",
		},
		[]string{"source", "status"}, // status: completed, error
	)

	m.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "ingestion_run_duration_seconds",
			Help: "Duration of per-source ingestion runs",
			// Runs are dominated by polite delays, so buckets span 1s to ~17min
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		},
		[]string{"source"},
	)
}

// Describe implements the prometheus.Collector interface
func (m *IngestionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.recordsProcessedTotal.Describe(ch)
	m.recordsSkippedTotal.Describe(ch)
	m.recordsErrorsTotal.Describe(ch)
	m.taxaDiscoveredTotal.Describe(ch)
	m.runsTotal.Describe(ch)
	m.runDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *IngestionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.recordsProcessedTotal.Collect(ch)
	m.recordsSkippedTotal.Collect(ch)
	m.recordsErrorsTotal.Collect(ch)
	m.taxaDiscoveredTotal.Collect(ch)
	m.runsTotal.Collect(ch)
	m.runDuration.Collect(ch)
}

// RecordProcessed increments the processed counter for a source
func (m *IngestionMetrics) RecordProcessed(source string) {
	m.recordsProcessedTotal.WithLabelValues(source).Inc()
}

// RecordSkipped increments the duplicate-skip counter for a source
func (m *IngestionMetrics) RecordSkipped(source string) {
	m.recordsSkippedTotal.WithLabelValues(source).Inc()
}

// RecordError increments the error counter for a source and pipeline stage
func (m *IngestionMetrics) RecordError(source, stage string) {
	m.recordsErrorsTotal.WithLabelValues(source, stage).Inc()
}

// RecordTaxaDiscovered adds to the discovered-taxa counter for a source
func (m *IngestionMetrics) RecordTaxaDiscovered(source string, count int) {
	m.taxaDiscoveredTotal.WithLabelValues(source).Add(float64(count))
}

// RecordRun increments the run counter with its terminal status
func (m *IngestionMetrics) RecordRun(source, status string) {
	m.runsTotal.WithLabelValues(source, status).Inc()
}

// RecordRunDuration observes the duration of a per-source run
func (m *IngestionMetrics) RecordRunDuration(source string, seconds float64) {
	m.runDuration.WithLabelValues(source).Observe(seconds)
}
