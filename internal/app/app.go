// Package app wires the people counting pipeline together: video in,
// person detection, tracking, crossing decisions, then persistence,
// broadcast and annotated output.
package app

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/zzzrenn/HeadCountGuard/internal/config"
	"github.com/zzzrenn/HeadCountGuard/internal/counting"
	"github.com/zzzrenn/HeadCountGuard/internal/detect"
	"github.com/zzzrenn/HeadCountGuard/internal/geometry"
	"github.com/zzzrenn/HeadCountGuard/internal/store"
	"github.com/zzzrenn/HeadCountGuard/internal/track"
	"github.com/zzzrenn/HeadCountGuard/internal/video"
)

const (
	// occupancySampleInterval is how often, in frames, an occupancy sample
	// is persisted even when no crossing happened.
	occupancySampleInterval = 30

	// maxConsecutiveReadFailures ends the run when a device source stops
	// delivering frames entirely. File sources end via EOF instead.
	maxConsecutiveReadFailures = 30
)

// FrameSink receives each frame after annotation. The frame is only valid
// for the duration of the call.
type FrameSink interface {
	Update(frame *gocv.Mat) error
}

// Config holds the application collaborators. Settings is required; the
// rest are optional.
type Config struct {
	Settings *config.Config
	Store    *store.Store
	OnEvent  func(counting.Event)
	Frames   FrameSink
	Log      *logrus.Logger
}

// App owns the pipeline components and runs frames through them.
type App struct {
	config   Config
	log      *logrus.Logger
	line     geometry.Line
	criteria counting.Criteria
	roi      geometry.Polygon
	source   video.Source
	det      detect.Detector
	tracker  track.Tracker

	mu     sync.RWMutex
	totals counting.Totals
	runID  string
}

// New validates the settings and builds the pipeline components. Geometry
// and tuning errors surface here, before any video is opened.
func New(cfg Config) (*App, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings are required")
	}

	log := cfg.Log
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	s := cfg.Settings

	line, err := geometry.NewLine(
		geometry.Point{X: s.Line.X1, Y: s.Line.Y1},
		geometry.Point{X: s.Line.X2, Y: s.Line.Y2},
		s.Line.InSide,
	)
	if err != nil {
		return nil, fmt.Errorf("invalid counting line: %w", err)
	}

	criteria, err := counting.ParseCriteria(s.Counting.Criteria)
	if err != nil {
		return nil, err
	}

	var roi geometry.Polygon
	for _, p := range s.Counting.ROI {
		roi = append(roi, geometry.Point{X: p.X, Y: p.Y})
	}

	tracker, err := track.NewIoUTracker(track.Config{
		TrackThresh: s.Tracking.TrackThresh,
		TrackBuffer: s.Tracking.TrackBuffer,
		MatchThresh: s.Tracking.MatchThresh,
		Log:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid tracker configuration: %w", err)
	}

	a := &App{
		config:   cfg,
		log:      log,
		line:     line,
		criteria: criteria,
		roi:      roi,
		tracker:  tracker,
	}

	// A purely numeric path selects that camera device, anything else is
	// treated as a file.
	if id, err := strconv.Atoi(s.Video.Path); err == nil {
		a.source = video.NewDeviceSource(id)
	} else {
		a.source = video.NewFileSource(s.Video.Path)
	}

	a.det = buildDetector(s.Detector, log)

	return a, nil
}

// buildDetector tries the ONNX detector first and falls back to the mock
// detector when no model is configured or the runtime is unavailable.
func buildDetector(cfg config.DetectorConfig, log *logrus.Logger) detect.Detector {
	if cfg.ModelPath == "" {
		log.Info("no detector model configured, using mock detector")
		return detect.NewMockDetector()
	}

	d, err := detect.NewONNXDetector(detect.Config{
		ModelPath:     cfg.ModelPath,
		InputWidth:    cfg.InputWidth,
		InputHeight:   cfg.InputHeight,
		NumClasses:    cfg.NumClasses,
		ClassID:       cfg.ClassID,
		ConfThreshold: cfg.ConfThreshold,
		IoUThreshold:  cfg.IoUThreshold,
	})
	if err != nil {
		log.WithError(err).Warn("ONNX detector unavailable, using mock detector")
		return detect.NewMockDetector()
	}

	log.WithField("model", cfg.ModelPath).Info("using ONNX person detector")
	return d
}

// SetSource replaces the video source. Must be called before Run.
func (a *App) SetSource(s video.Source) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.source = s
}

// SetDetector replaces the detector implementation. Must be called before
// Run.
func (a *App) SetDetector(d detect.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.det = d
}

// SetTracker replaces the tracker implementation. Must be called before
// Run.
func (a *App) SetTracker(t track.Tracker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tracker = t
}

// Totals returns a snapshot of the current counts. Safe to call from any
// goroutine while the pipeline runs.
func (a *App) Totals() counting.Totals {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.totals
}

func (a *App) setTotals(t counting.Totals) {
	a.mu.Lock()
	a.totals = t
	a.mu.Unlock()
}

// RunID returns the id of the current or most recent run, or empty before
// the first run.
func (a *App) RunID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runID
}

func (a *App) setRunID(id string) {
	a.mu.Lock()
	a.runID = id
	a.mu.Unlock()
}

// Close releases the detector. The video source is closed by Run itself.
func (a *App) Close() error {
	if a.det == nil {
		return nil
	}
	return a.det.Close()
}
