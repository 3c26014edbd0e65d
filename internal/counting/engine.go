// Package counting implements the line-crossing decision engine: per-track
// side classification against a configured counting line, crossing event
// emission, and the running entry/exit totals.
package counting

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zzzrenn/HeadCountGuard/internal/geometry"
)

// Observation is a single tracked box for the current frame, as produced by
// the tracker.
type Observation struct {
	TrackID int
	Box     geometry.Box
}

// Config holds the engine configuration. Line and Criteria come from the
// validated application configuration; FrameWidth/FrameHeight are the pixel
// dimensions of the video and are used to normalize box coordinates.
type Config struct {
	Line        geometry.Line
	Criteria    Criteria
	FrameWidth  int
	FrameHeight int
	// ROI optionally restricts counting to a region: a crossing is only
	// counted when both ends of the frame-to-frame path are inside it.
	ROI geometry.Polygon
	Log *logrus.Logger
}

// Engine consumes tracker output frame by frame and emits crossing events.
//
// Processing is strictly single-threaded and frame-synchronous: one call to
// ProcessFrame completes all mutation for that frame, which keeps events
// ordered by frame index and removes any need for locking. Callers that
// read totals concurrently must snapshot them outside the engine.
type Engine struct {
	line     geometry.Line
	criteria Criteria
	width    float64
	height   float64
	roi      geometry.Polygon
	states   *StateStore
	entries  int64
	exits    int64
	log      *logrus.Logger
}

// NewEngine validates the configuration and builds an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.FrameWidth <= 0 || cfg.FrameHeight <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d", cfg.FrameWidth, cfg.FrameHeight)
	}
	if _, err := ParseCriteria(string(cfg.Criteria)); err != nil {
		return nil, err
	}
	if a, b := cfg.Line.Endpoints(); a == b {
		return nil, geometry.ErrDegenerateLine
	}
	if len(cfg.ROI) > 0 && len(cfg.ROI) < 3 {
		return nil, fmt.Errorf("roi polygon needs at least 3 vertices, got %d", len(cfg.ROI))
	}

	log := cfg.Log
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	a, b := cfg.Line.Endpoints()
	log.WithFields(logrus.Fields{
		"line":     fmt.Sprintf("(%.3f,%.3f)-(%.3f,%.3f)", a.X, a.Y, b.X, b.Y),
		"criteria": cfg.Criteria,
		"frame":    fmt.Sprintf("%dx%d", cfg.FrameWidth, cfg.FrameHeight),
		"roi":      len(cfg.ROI) > 0,
	}).Info("crossing engine initialized")

	return &Engine{
		line:     cfg.Line,
		criteria: cfg.Criteria,
		width:    float64(cfg.FrameWidth),
		height:   float64(cfg.FrameHeight),
		roi:      cfg.ROI,
		states:   NewStateStore(),
		log:      log,
	}, nil
}

// ProcessFrame evaluates every observation of the frame against the line
// and returns the crossing events it produced, in observation order.
// A malformed observation only skips that track for this frame.
func (e *Engine) ProcessFrame(frameIndex int, observations []Observation) []Event {
	var events []Event
	for i := range observations {
		if ev, ok := e.processObservation(frameIndex, observations[i]); ok {
			events = append(events, ev)
		}
	}

	if len(events) > 0 {
		t := e.Totals()
		e.log.WithFields(logrus.Fields{
			"frame":     frameIndex,
			"crossings": len(events),
			"entries":   t.Entries,
			"exits":     t.Exits,
			"net":       t.Net,
		}).Info("line crossings detected")
	}

	return events
}

// processObservation runs the per-track state machine:
// UNKNOWN -> one side -> the other side, with each side change emitting an
// event only when the frame-to-frame path actually intersects the line.
func (e *Engine) processObservation(frameIndex int, obs Observation) (Event, bool) {
	st := e.states.GetOrCreate(obs.TrackID)

	side, point, determinate := e.classify(obs.Box)
	if !determinate {
		// Reference point exactly on the line, or a straddling box in
		// whole_bbox mode. The previous side stays authoritative and the
		// stored path point does not advance, so a later clear resolves
		// the crossing from the last determinate position.
		e.log.WithFields(logrus.Fields{
			"track": obs.TrackID,
			"frame": frameIndex,
		}).Debug("side indeterminate, keeping previous side")
		return Event{}, false
	}

	if st.Side == geometry.SideUnknown {
		// First determinate observation. A track must be seen on one side
		// before a crossing can be attributed to it.
		st.Side = side
		st.LastPoint = point
		st.HasPoint = true
		return Event{}, false
	}

	if side == st.Side {
		st.LastPoint = point
		st.HasPoint = true
		return Event{}, false
	}

	prevSide := st.Side
	crossed := st.HasPoint && e.line.SegmentCrosses(st.LastPoint, point)
	withinROI := e.inROI(st.LastPoint) && e.inROI(point)

	st.Side = side
	st.LastPoint = point
	st.HasPoint = true

	if !crossed || !withinROI {
		// The side label is authoritative for future comparisons, but an
		// event additionally requires the path to have crossed the segment
		// inside the counting region. This drops crossings invented by a
		// box snapping across the line without a continuous path.
		st.HasCrossed = false
		e.log.WithFields(logrus.Fields{
			"track": obs.TrackID,
			"frame": frameIndex,
			"from":  prevSide.String(),
			"to":    side.String(),
		}).Debug("side changed without confirmed crossing")
		return Event{}, false
	}

	st.HasCrossed = true
	ev := Event{
		TrackID:    obs.TrackID,
		FrameIndex: frameIndex,
		Timestamp:  time.Now(),
	}
	if side == geometry.SideIn {
		ev.Direction = DirectionEntry
		e.entries++
	} else {
		ev.Direction = DirectionExit
		e.exits++
	}

	e.log.WithFields(logrus.Fields{
		"track":     obs.TrackID,
		"frame":     frameIndex,
		"direction": ev.Direction,
	}).Debug("track crossed line")

	return ev, true
}

// classify maps a box to its side of the line. The third return value is
// false when no determinate side exists this frame.
func (e *Engine) classify(b geometry.Box) (geometry.Side, geometry.Point, bool) {
	if e.criteria == CriteriaWholeBox {
		pts := corners(b, e.width, e.height)
		side := e.line.Side(pts[0])
		if side == geometry.SideUnknown {
			return geometry.SideUnknown, geometry.Point{}, false
		}
		for _, p := range pts[1:] {
			if e.line.Side(p) != side {
				return geometry.SideUnknown, geometry.Point{}, false
			}
		}
		center := geometry.Point{X: b.Center().X / e.width, Y: b.Center().Y / e.height}
		return side, center, true
	}

	p := e.criteria.referencePoint(b, e.width, e.height)
	side := e.line.Side(p)
	if side == geometry.SideUnknown {
		return geometry.SideUnknown, geometry.Point{}, false
	}
	return side, p, true
}

func (e *Engine) inROI(p geometry.Point) bool {
	if len(e.roi) == 0 {
		return true
	}
	return e.roi.Contains(p)
}

// EvictTracks discards state for tracks the tracker reported as lost.
// No event is emitted on eviction; a reused id later starts over as a
// fresh unknown-side track.
func (e *Engine) EvictTracks(ids []int) {
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		e.states.Evict(id)
	}
	e.log.WithField("count", len(ids)).Debug("evicted lost tracks")
}

// Totals returns a snapshot of the running counts with net occupancy
// recomputed from the two counters.
func (e *Engine) Totals() Totals {
	return Totals{
		Entries: e.entries,
		Exits:   e.exits,
		Net:     e.entries - e.exits,
	}
}

// LiveTracks returns how many tracks currently hold crossing state.
func (e *Engine) LiveTracks() int {
	return e.states.Len()
}
