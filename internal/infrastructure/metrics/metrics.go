// Package metrics provides Prometheus metrics for feed normalization.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Row outcomes
const (
	OutcomeDerived = "derived"
	OutcomeMiss    = "miss"
	OutcomeFailed  = "failed"
	OutcomeCached  = "cached"
)

// Streamed message statuses
const (
	MessageProcessed = "processed"
	MessageFailed    = "failed"
	MessageDropped   = "dropped"
)

var (
	// RowsTotal tracks processed rows by merchant, engine and outcome
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedcanon",
			Subsystem: "rules",
			Name:      "rows_total",
			Help:      "Total number of feed rows processed by rule engine and outcome",
		},
		[]string{"merchant", "engine", "outcome"},
	)

	// RowDuration tracks time spent normalizing a single row
	RowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "feedcanon",
			Subsystem: "rules",
			Name:      "row_duration_seconds",
			Help:      "Duration of single row normalization in seconds",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
		[]string{"merchant"},
	)

	// BatchesTotal tracks batches by merchant and status
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedcanon",
			Subsystem: "batch",
			Name:      "batches_total",
			Help:      "Total number of feed batches by status",
		},
		[]string{"merchant", "status"},
	)

	// MessagesTotal tracks streamed messages by status
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedcanon",
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "Total number of streamed feed messages by status",
		},
		[]string{"status"},
	)
)

// Prometheus records normalization metrics in the default registry
type Prometheus struct{}

// NewPrometheus returns a recorder backed by the package metrics
func NewPrometheus() *Prometheus {
	return &Prometheus{}
}

// ObserveRow records one row outcome for an engine
func (Prometheus) ObserveRow(merchant, engine, outcome string) {
	RowsTotal.WithLabelValues(merchant, engine, outcome).Inc()
}

// ObserveDuration records how long a row took
func (Prometheus) ObserveDuration(merchant string, d time.Duration) {
	RowDuration.WithLabelValues(merchant).Observe(d.Seconds())
}

// ObserveBatch records a finished batch
func (Prometheus) ObserveBatch(merchant, status string) {
	BatchesTotal.WithLabelValues(merchant, status).Inc()
}

// ObserveMessage records a streamed message outcome
func ObserveMessage(status string) {
	MessagesTotal.WithLabelValues(status).Inc()
}
