package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWrapper(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestNew_PrivateRegistries(t *testing.T) {
	// Two runs in one process must not collide on registration.
	a := New()
	b := New()

	NewWrapper(a).PredictionsInc()
	if v := testutil.ToFloat64(b.Predictions); v != 0 {
		t.Errorf("Expected independent registries, got %f predictions on the second", v)
	}
}

func TestMetricsWrapper_ClassifierMethods(t *testing.T) {
	metrics := New()
	wrapper := NewWrapper(metrics)

	wrapper.PredictionsInc()
	wrapper.PredictionsInc()
	if v := testutil.ToFloat64(metrics.Predictions); v != 2 {
		t.Errorf("Expected 2 predictions, got %f", v)
	}

	wrapper.PredictionFailuresInc()
	if v := testutil.ToFloat64(metrics.PredictionFailures); v != 1 {
		t.Errorf("Expected 1 prediction failure, got %f", v)
	}

	wrapper.AccuracySet(0.875)
	if v := testutil.ToFloat64(metrics.Accuracy); v != 0.875 {
		t.Errorf("Expected accuracy 0.875, got %f", v)
	}

	wrapper.FoldAccuracyObserve(0.9)
	wrapper.FoldAccuracyObserve(0.8)
	if n := testutil.CollectAndCount(metrics.FoldAccuracy); n != 1 {
		t.Errorf("Expected one fold accuracy series, got %d", n)
	}
}

func TestMetricsWrapper_LabelledMetrics(t *testing.T) {
	metrics := New()
	wrapper := NewWrapper(metrics)

	wrapper.RowsReadAdd("train", 42)
	wrapper.RowsReadAdd("test", 7)
	if v := testutil.ToFloat64(metrics.RowsRead.WithLabelValues("train")); v != 42 {
		t.Errorf("Expected 42 training rows, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.RowsRead.WithLabelValues("test")); v != 7 {
		t.Errorf("Expected 7 test rows, got %f", v)
	}

	wrapper.OutputFailure("labels").Inc()
	if v := testutil.ToFloat64(metrics.OutputFailures.WithLabelValues("labels")); v != 1 {
		t.Errorf("Expected 1 labels failure, got %f", v)
	}

	wrapper.ObserveStage("train", time.Now().Add(-10*time.Millisecond))
	wrapper.Stage("predict").Observe(0.5)
	if n := testutil.CollectAndCount(metrics.StageDuration); n != 2 {
		t.Errorf("Expected 2 stage series, got %d", n)
	}
}

func TestMetrics_FailureRate(t *testing.T) {
	metrics := New()
	if rate := metrics.FailureRate(); rate != 0 {
		t.Errorf("Expected 0 failure rate with no predictions, got %f", rate)
	}

	wrapper := NewWrapper(metrics)
	for i := 0; i < 3; i++ {
		wrapper.PredictionsInc()
	}
	wrapper.PredictionFailuresInc()

	if rate := metrics.FailureRate(); rate != 0.25 {
		t.Errorf("Expected failure rate 0.25, got %f", rate)
	}
	if rate := wrapper.FailureRate(); rate != 0.25 {
		t.Errorf("Expected wrapper failure rate 0.25, got %f", rate)
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	metrics := New()
	wrapper := NewWrapper(metrics)
	wrapper.PredictionsInc()
	wrapper.AccuracySet(0.5)

	path := filepath.Join(t.TempDir(), "knn_metrics.prom")
	if err := wrapper.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read metrics file: %v", err)
	}
	for _, want := range []string{"hwr_predictions_total 1", "hwr_cv_accuracy 0.5"} {
		if !strings.Contains(string(content), want) {
			t.Errorf("Expected metrics file to contain %q", want)
		}
	}

	missing := filepath.Join(t.TempDir(), "nope", "metrics.prom")
	if err := metrics.WriteTextfile(missing); err == nil {
		t.Error("Expected error writing to a missing directory")
	}
}

func TestMetricsWrapper_ConcurrentAccess(t *testing.T) {
	metrics := New()
	wrapper := NewWrapper(metrics)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				wrapper.PredictionsInc()
				wrapper.FoldAccuracyObserve(0.5)
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if v := testutil.ToFloat64(metrics.Predictions); v != 1000 {
		t.Errorf("Expected 1000 predictions after concurrent access, got %f", v)
	}
}

func TestMetricsWrapper_NilGuard(t *testing.T) {
	wrapper := &MetricsWrapper{m: nil}

	// NewWrapper never stores nil metrics.
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when accessing nil metrics")
		}
	}()

	wrapper.PredictionsInc()
}

func BenchmarkMetricsWrapper_PredictionsInc(b *testing.B) {
	wrapper := NewWrapper(New())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrapper.PredictionsInc()
	}
}
