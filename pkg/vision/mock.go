package vision

import "sync"

// MockSource is an in-process Source for deterministic coordinator tests.
// It returns whatever sample and status were last set.
type MockSource struct {
	mu     sync.Mutex
	sample FaceSample
	status SampleStatus
	reads  int
}

// NewMockSource creates a mock source that starts unavailable.
func NewMockSource() *MockSource {
	return &MockSource{status: StatusUnavailable}
}

// Set configures the next sample and status to return.
func (m *MockSource) Set(sample FaceSample, status SampleStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sample = sample
	m.status = status
}

// SetFresh configures a fresh sample, bumping the frame counter.
func (m *MockSource) SetFresh(sample FaceSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sample.FrameCounter = m.sample.FrameCounter + 1
	m.sample = sample
	m.status = StatusFresh
}

// Read returns the configured sample. After a fresh read the status decays
// to unchanged, mirroring a real segment whose frame counter stopped moving.
func (m *MockSource) Read() (FaceSample, SampleStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	s, st := m.sample, m.status
	if st == StatusFresh {
		m.status = StatusUnchanged
	}
	return s, st
}

// Reads returns how many times Read was called.
func (m *MockSource) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}
