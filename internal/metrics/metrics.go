// Package metrics exposes reconciliation run counters in Prometheus format. Runs are
// batch jobs, so the registry is written to a node_exporter textfile at the end of
// a run rather than served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Runs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatconv_runs_total",
		Help: "Total analysis runs",
	})
	RunFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatconv_run_failures_total",
		Help: "Analysis runs that could not read their inputs",
	})
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatconv_run_duration_seconds",
		Help:    "Analysis run duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	RowsRead = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatconv_rows_read_total",
		Help: "Spreadsheet rows handed to the engine",
	}, []string{"city", "source"})
	RowsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatconv_rows_dropped_total",
		Help: "Chat rows excluded from the analysis",
	}, []string{"city", "reason"})
	Matches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatconv_matches_total",
		Help: "Chat users matched to a roster entry",
	}, []string{"city"})
	ConversionRate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chatconv_conversion_rate_percent",
		Help: "Conversion rate of the last run",
	}, []string{"city"})
)

func init() {
	prometheus.MustRegister(Runs, RunFailures, RunDuration, RowsRead, RowsDropped, Matches, ConversionRate)
}

// ObserveRunDuration records a run duration
func ObserveRunDuration(start time.Time) {
	RunDuration.Observe(time.Since(start).Seconds())
}

// WriteTextfile writes every registered metric to path for the textfile collector.
// An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
