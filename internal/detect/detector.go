package detect

import (
	"gocv.io/x/gocv"

	"github.com/zzzrenn/HeadCountGuard/internal/geometry"
)

// ClassPerson is the COCO class index for "person".
const ClassPerson = 0

// Detection is a single detected object in frame pixel coordinates.
type Detection struct {
	Box        geometry.Box
	ClassID    int
	Confidence float64
}

// Detector defines the interface for person detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected people.
	// Returns an empty slice if nothing is detected.
	Detect(frame *gocv.Mat) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for the ONNX detector.
type Config struct {
	// ModelPath is the path to the exported YOLOv8 .onnx model file.
	ModelPath string

	// InputWidth and InputHeight are the model input dimensions.
	InputWidth  int
	InputHeight int

	// NumClasses is the number of classes the model predicts.
	NumClasses int

	// ClassID selects which class to report (default: person).
	ClassID int

	// ConfThreshold is the minimum confidence for a detection to be kept.
	ConfThreshold float64

	// IoUThreshold is the overlap threshold for non-max suppression.
	IoUThreshold float64
}

// DefaultConfig returns a Config with sensible default values for a COCO
// YOLOv8 export.
func DefaultConfig() Config {
	return Config{
		InputWidth:    640,
		InputHeight:   640,
		NumClasses:    80,
		ClassID:       ClassPerson,
		ConfThreshold: 0.25,
		IoUThreshold:  0.45,
	}
}
