package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type MetricsCounter interface {
	Inc()
}

type MetricsHistogram interface {
	Observe(float64)
}

// MetricsWrapper adapts Metrics to the narrow interfaces the classifier and
// the pipeline depend on.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc() {
	w.m.Predictions.Inc()
}

func (w *MetricsWrapper) PredictionFailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *MetricsWrapper) FoldAccuracyObserve(v float64) {
	w.m.FoldAccuracy.Observe(v)
}

func (w *MetricsWrapper) AccuracySet(v float64) {
	w.m.Accuracy.Set(v)
}

func (w *MetricsWrapper) RowsReadAdd(dataset string, n int) {
	w.m.RowsRead.WithLabelValues(dataset).Add(float64(n))
}

func (w *MetricsWrapper) OutputFailure(output string) MetricsCounter {
	return &CounterWrapper{w.m.OutputFailures.WithLabelValues(output)}
}

func (w *MetricsWrapper) Stage(stage string) MetricsHistogram {
	return &HistogramWrapper{w.m.StageDuration.WithLabelValues(stage)}
}

// ObserveStage records the time elapsed since start against stage.
func (w *MetricsWrapper) ObserveStage(stage string, start time.Time) {
	w.Stage(stage).Observe(time.Since(start).Seconds())
}

func (w *MetricsWrapper) FailureRate() float64 {
	return w.m.FailureRate()
}

func (w *MetricsWrapper) WriteTextfile(path string) error {
	return w.m.WriteTextfile(path)
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type HistogramWrapper struct {
	h prometheus.Observer
}

func (hw *HistogramWrapper) Observe(v float64) {
	hw.h.Observe(v)
}
