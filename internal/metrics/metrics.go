// Package metrics provides Prometheus metrics collection for the classifier
// runner. Metrics live on a private registry and are written out as a
// textfile at the end of each run, next to the other outputs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for one run.
type Metrics struct {
	registry *prometheus.Registry

	// Classification metrics
	Predictions        prometheus.Counter // Test rows classified
	PredictionFailures prometheus.Counter // Test rows that could not be classified
	FoldAccuracy       prometheus.Histogram
	Accuracy           prometheus.Gauge // Cross-validated accuracy of the last run

	// Data metrics
	RowsRead *prometheus.CounterVec // Rows read, by dataset (train, test)

	// Pipeline metrics
	StageDuration  *prometheus.HistogramVec // Wall time per pipeline stage
	OutputFailures *prometheus.CounterVec   // Failed output writes, by output
}

// New creates metrics on a fresh private registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates metrics registered on registry. The registry is
// also the source for WriteTextfile.
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "hwr_predictions_total",
			Help: "Total number of test rows classified",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "hwr_prediction_failures_total",
			Help: "Total number of test rows that could not be classified",
		}),
		FoldAccuracy: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hwr_fold_accuracy",
			Help:    "Accuracy of each cross-validation fold",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		Accuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hwr_cv_accuracy",
			Help: "Cross-validated accuracy of the last run",
		}),
		RowsRead: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hwr_rows_read_total",
			Help: "Total number of dataset rows read",
		}, []string{"dataset"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hwr_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		OutputFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hwr_output_failures_total",
			Help: "Total number of failed output writes",
		}, []string{"output"}),
	}
}

// FailureRate returns the share of classified rows whose prediction failed,
// or 0 if no rows have been classified.
func (m *Metrics) FailureRate() float64 {
	var ok, failed float64

	families, err := m.registry.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		switch mf.GetName() {
		case "hwr_predictions_total":
			for _, metric := range mf.Metric {
				ok = metric.GetCounter().GetValue()
			}
		case "hwr_prediction_failures_total":
			for _, metric := range mf.Metric {
				failed = metric.GetCounter().GetValue()
			}
		}
	}

	if ok+failed == 0 {
		return 0
	}
	return failed / (ok + failed)
}

// WriteTextfile writes every metric to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
