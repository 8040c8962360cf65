// Package metrics exposes Prometheus instrumentation for the import pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rpattn/custimport/internal/domain"
)

var (
	previews = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "custimport",
		Subsystem: "preview",
		Name:      "requests_total",
		Help:      "Total number of import previews broken down by result.",
	}, []string{"result"})

	stagedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "custimport",
		Subsystem: "preview",
		Name:      "rows_total",
		Help:      "Total number of staged rows broken down by status.",
	}, []string{"status"})

	committedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "custimport",
		Subsystem: "commit",
		Name:      "rows_total",
		Help:      "Total number of committed rows broken down by final action.",
	}, []string{"action"})

	durations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "custimport",
		Name:      "operation_duration_seconds",
		Help:      "Latency distribution for preview and commit operations.",
		Buckets: []float64{
			0.01, 0.05, 0.1, 0.25,
			0.5, 1, 2, 5,
			10, 30, 60,
		},
	}, []string{"operation", "result"})
)

// ObservePreview records a finished preview.
func ObservePreview(rows []domain.StagingRow, err error, elapsed time.Duration) {
	result := resultLabel(err)
	previews.With(prometheus.Labels{"result": result}).Inc()
	durations.With(prometheus.Labels{"operation": "preview", "result": result}).Observe(elapsed.Seconds())
	for _, row := range rows {
		stagedRows.With(prometheus.Labels{"status": string(row.Status)}).Inc()
	}
}

// ObserveCommit records a finished commit.
func ObserveCommit(rows []domain.StagingRow, err error, elapsed time.Duration) {
	durations.With(prometheus.Labels{"operation": "commit", "result": resultLabel(err)}).Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	for _, row := range rows {
		if row.FinalAction != "" {
			committedRows.With(prometheus.Labels{"action": string(row.FinalAction)}).Inc()
		}
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
