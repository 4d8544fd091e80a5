package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for one
// pipeline run. Each Metrics owns its registry so runs and tests never collide
// on the default registerer.
type Metrics struct {
	Registry *prometheus.Registry

	RowsRead      *prometheus.CounterVec   // labels: stage
	RowsDropped   *prometheus.CounterVec   // labels: stage, reason
	RowsWritten   *prometheus.CounterVec   // labels: sink
	StageDuration *prometheus.HistogramVec // labels: stage
	CacheLookups  *prometheus.CounterVec   // labels: entry, result={hit,miss,corrupt}

	LastRunSuccess   prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dst_etl",
			Name:      "rows_read_total",
			Help:      "Rows read per pipeline stage.",
		}, []string{"stage"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dst_etl",
			Name:      "rows_dropped_total",
			Help:      "Rows dropped per pipeline stage and reason.",
		}, []string{"stage", "reason"}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dst_etl",
			Name:      "rows_written_total",
			Help:      "Fused rows written per export sink.",
		}, []string{"sink"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dst_etl",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dst_etl",
			Name:      "cache_lookups_total",
			Help:      "Derived table cache lookups by entry and result.",
		}, []string{"entry", "result"}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dst_etl",
			Name:      "last_run_success",
			Help:      "1 if the last run completed, 0 if it failed.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dst_etl",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	m.Registry.MustRegister(
		m.RowsRead,
		m.RowsDropped,
		m.RowsWritten,
		m.StageDuration,
		m.CacheLookups,
		m.LastRunSuccess,
		m.LastRunTimestamp,
	)

	return m
}

// WriteTextfile writes the registry in the node-exporter textfile format.
// Batch runs have no scrape endpoint, so this is how metrics leave the process.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
