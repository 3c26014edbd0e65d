package detect

import (
	"gocv.io/x/gocv"

	"github.com/zzzrenn/HeadCountGuard/internal/geometry"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	detections []Detection
	sequence   [][]Detection
	err        error
	calls      int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections that will be returned by every Detect
// call.
func (m *MockDetector) SetDetections(dets []Detection) {
	m.detections = dets
}

// SetSequence sets per-call detection results. Each Detect call consumes
// one entry; after the sequence is exhausted Detect falls back to the
// fixed detections.
func (m *MockDetector) SetSequence(seq [][]Detection) {
	m.sequence = seq
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	return m.calls
}

// Detect returns the pre-configured detections or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Detection, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		return next, nil
	}
	return m.detections, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// PersonAt returns a preset detection with a plausible standing person box
// centered at the given pixel position.
func PersonAt(cx, cy float64) Detection {
	return Detection{
		Box:        geometry.Box{X: cx - 40, Y: cy - 90, W: 80, H: 180},
		ClassID:    ClassPerson,
		Confidence: 0.92,
	}
}
