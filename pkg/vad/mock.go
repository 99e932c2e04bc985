package vad

import "sync"

// MockDetector is a scripted DetectorInterface for tests.
type MockDetector struct {
	// InferFunc decides the probability for each window. Nil means 0.
	InferFunc func(samples []float32) (float32, error)

	// InferCalls records a copy of every window passed to Infer.
	InferCalls [][]float32

	ResetCount    int
	DestroyCalled bool

	mu sync.Mutex
}

// NewMockDetector returns a detector that never reports speech.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// NewMockDetectorWithProb returns a fixed probability for every window.
func NewMockDetectorWithProb(prob float32) *MockDetector {
	return &MockDetector{
		InferFunc: func([]float32) (float32, error) { return prob, nil },
	}
}

// NewMockDetectorWithSequence returns probs in order, cycling at the end.
func NewMockDetectorWithSequence(probs []float32) *MockDetector {
	idx := 0
	return &MockDetector{
		InferFunc: func([]float32) (float32, error) {
			if len(probs) == 0 {
				return 0, nil
			}
			prob := probs[idx]
			idx = (idx + 1) % len(probs)
			return prob, nil
		},
	}
}

// NewMockDetectorByAmplitude reports speech (1.0) for any window whose first
// sample's magnitude exceeds level, and silence (0.0) otherwise. Tests build
// synthetic streams out of constant-valued windows.
func NewMockDetectorByAmplitude(level float32) *MockDetector {
	return &MockDetector{
		InferFunc: func(samples []float32) (float32, error) {
			if len(samples) > 0 && (samples[0] > level || samples[0] < -level) {
				return 1, nil
			}
			return 0, nil
		},
	}
}

// Infer implements DetectorInterface.
func (m *MockDetector) Infer(samples []float32) (float32, error) {
	m.mu.Lock()
	m.InferCalls = append(m.InferCalls, append([]float32(nil), samples...))
	fn := m.InferFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(samples)
	}
	return 0, nil
}

// Reset implements DetectorInterface.
func (m *MockDetector) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetCount++
	return nil
}

// Destroy implements DetectorInterface.
func (m *MockDetector) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DestroyCalled = true
	return nil
}

// GetInferCallCount returns the number of times Infer was called.
func (m *MockDetector) GetInferCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.InferCalls)
}

var _ DetectorInterface = (*MockDetector)(nil)
