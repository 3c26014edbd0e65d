// Package video provides the pipeline's video I/O using GoCV (OpenCV):
// frame sources, the counting overlay and result writing.
package video

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default device capture settings
const (
	DefaultDeviceWidth  = 640
	DefaultDeviceHeight = 480
)

// ErrSourceNotOpen is returned when reading from a source that is not open.
var ErrSourceNotOpen = errors.New("video source is not open")

// ErrEndOfStream is returned by Read when a file source has played out.
var ErrEndOfStream = errors.New("end of video stream")

// Source defines the interface for video frame sources.
type Source interface {
	Open() error

	// Read returns the next frame. The caller is responsible for closing
	// the returned Mat. File sources return ErrEndOfStream once played out;
	// device read failures are transient errors.
	Read() (*gocv.Mat, error)

	// Properties reports the frame size and rate of the open source.
	Properties() (width, height int, fps float64)

	IsOpen() bool
	Close() error
}

// captureSource reads frames from a video file or a camera device.
type captureSource struct {
	source  any // device id (int) or file path (string)
	isFile  bool
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
}

// NewFileSource creates a Source reading the video file at path.
func NewFileSource(path string) Source {
	return &captureSource{source: path, isFile: true}
}

// NewDeviceSource creates a Source capturing from a camera device.
// The capture resolution is set to 640x480 for performance.
func NewDeviceSource(deviceID int) Source {
	return &captureSource{source: deviceID}
}

func (s *captureSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(s.source)
	if err != nil {
		return fmt.Errorf("open video source %v: %w", s.source, err)
	}

	if !s.isFile {
		capture.Set(gocv.VideoCaptureFrameWidth, DefaultDeviceWidth)
		capture.Set(gocv.VideoCaptureFrameHeight, DefaultDeviceHeight)
	}

	s.capture = capture
	s.running = true

	return nil
}

func (s *captureSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		s.running = false
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	s.running = false

	return err
}

// Read reads a single frame. The caller is responsible for closing the
// returned Mat.
func (s *captureSource) Read() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok {
		mat.Close()
		if s.isFile {
			return nil, ErrEndOfStream
		}
		return nil, errors.New("failed to read frame from device")
	}

	if mat.Empty() {
		mat.Close()
		if s.isFile {
			return nil, ErrEndOfStream
		}
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

func (s *captureSource) Properties() (int, int, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return 0, 0, 0
	}

	width := int(s.capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(s.capture.Get(gocv.VideoCaptureFrameHeight))
	fps := s.capture.Get(gocv.VideoCaptureFPS)

	return width, height, fps
}

func (s *captureSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}
