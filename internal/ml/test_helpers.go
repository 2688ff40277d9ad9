package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu           sync.Mutex
	predictions  int
	failures     int
	foldAccuracy []float64
}

func (m *MockMetrics) PredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) PredictionFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) FoldAccuracyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.foldAccuracy = append(m.foldAccuracy, v)
}

func (m *MockMetrics) counts() (predictions, failures, folds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions, m.failures, len(m.foldAccuracy)
}
