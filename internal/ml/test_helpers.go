package ml

import (
	"context"
	"sync"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	predictions int
	failures    int
	latencySum  float64
	latencyObs  int
	modelAge    float64
	decisions   map[string]int
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyObs++
}

func (m *MockMetrics) MLDecisionInc(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.decisions == nil {
		m.decisions = make(map[string]int)
	}
	m.decisions[label]++
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

// StubClassifier returns a fixed token, or Err, and counts calls.
type StubClassifier struct {
	mu    sync.Mutex
	Token string
	Err   error
	Calls int
	Last  []float64
}

func (s *StubClassifier) Classify(_ context.Context, row []float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	s.Last = append([]float64(nil), row...)
	return s.Token, s.Err
}
