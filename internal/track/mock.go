package track

import "github.com/zzzrenn/HeadCountGuard/internal/detect"

// MockStep is the scripted result of one Update call.
type MockStep struct {
	Tracks  []Track
	Removed []int
}

// MockTracker is a test implementation of the Tracker interface that
// replays scripted steps regardless of the detections it is given.
type MockTracker struct {
	steps  []MockStep
	calls  int
	resets int
}

// NewMockTracker creates a new MockTracker instance.
func NewMockTracker() *MockTracker {
	return &MockTracker{}
}

// Enqueue appends scripted steps; each Update call consumes one.
func (m *MockTracker) Enqueue(steps ...MockStep) {
	m.steps = append(m.steps, steps...)
}

// Calls returns how many times Update has been invoked.
func (m *MockTracker) Calls() int {
	return m.calls
}

// Update returns the next scripted step, or nothing once the script is
// exhausted.
func (m *MockTracker) Update(detections []detect.Detection) ([]Track, []int) {
	m.calls++
	if len(m.steps) == 0 {
		return nil, nil
	}
	next := m.steps[0]
	m.steps = m.steps[1:]
	return next.Tracks, next.Removed
}

// Reset records the call; scripted steps are left in place.
func (m *MockTracker) Reset() {
	m.resets++
}

// Resets returns how many times Reset has been invoked.
func (m *MockTracker) Resets() int {
	return m.resets
}
