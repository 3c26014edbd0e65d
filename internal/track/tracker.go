// Package track associates per-frame detections into tracks with stable
// ids, so the counting engine can follow one person across frames.
package track

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/zzzrenn/HeadCountGuard/internal/detect"
	"github.com/zzzrenn/HeadCountGuard/internal/geometry"
)

// Track is one tracked person in the current frame.
type Track struct {
	ID    int
	Box   geometry.Box
	Score float64
}

// Tracker turns detections into tracks with stable ids. Update returns
// the tracks observed in this frame and the ids of tracks removed after
// running out their miss buffer; each removed id is reported exactly once,
// and ids are never reused. Reset drops all state between runs.
type Tracker interface {
	Update(detections []detect.Detection) (active []Track, removed []int)
	Reset()
}

// Config holds tracker tuning parameters.
type Config struct {
	// TrackThresh is the minimum detection confidence to start a new
	// track. Weaker detections may still extend existing tracks.
	TrackThresh float64

	// TrackBuffer is how many consecutive missed frames a track survives
	// before it is removed.
	TrackBuffer int

	// MatchThresh bounds the association cost (1 - IoU): a detection may
	// extend a track only when their cost is at or below it.
	MatchThresh float64

	Log *logrus.Logger
}

// DefaultConfig returns tuning that works for people walking through a
// doorway camera at normal frame rates.
func DefaultConfig() Config {
	return Config{
		TrackThresh: 0.5,
		TrackBuffer: 30,
		MatchThresh: 0.8,
	}
}

// trackState is the tracker's internal record of one track.
type trackState struct {
	id     int
	box    geometry.Box
	score  float64
	misses int
}

// IoUTracker associates detections to tracks by bounding-box overlap,
// greedily taking the best match first. Lost tracks are kept for
// TrackBuffer frames so a brief occlusion does not change a person's id.
type IoUTracker struct {
	cfg    Config
	tracks []*trackState
	nextID int
	log    *logrus.Logger
}

// NewIoUTracker validates the configuration and builds a tracker.
func NewIoUTracker(cfg Config) (*IoUTracker, error) {
	if cfg.TrackThresh < 0 || cfg.TrackThresh > 1 {
		return nil, fmt.Errorf("track threshold %v out of range [0,1]", cfg.TrackThresh)
	}
	if cfg.MatchThresh < 0 || cfg.MatchThresh > 1 {
		return nil, fmt.Errorf("match threshold %v out of range [0,1]", cfg.MatchThresh)
	}
	if cfg.TrackBuffer < 0 {
		return nil, fmt.Errorf("track buffer must not be negative, got %d", cfg.TrackBuffer)
	}

	log := cfg.Log
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	return &IoUTracker{cfg: cfg, nextID: 1, log: log}, nil
}

// Update advances the tracker by one frame.
func (t *IoUTracker) Update(detections []detect.Detection) ([]Track, []int) {
	matched := make([]bool, len(detections))
	minIoU := 1 - t.cfg.MatchThresh

	// Associate detections to existing tracks, best overlap first.
	// Lost-but-buffered tracks participate so they can be re-acquired
	// under their old id.
	for _, tr := range t.tracks {
		best := -1
		bestIoU := 0.0
		for i, det := range detections {
			if matched[i] {
				continue
			}
			if iou := tr.box.IoU(det.Box); iou > bestIoU {
				best, bestIoU = i, iou
			}
		}
		if best >= 0 && bestIoU >= minIoU {
			matched[best] = true
			tr.box = detections[best].Box
			tr.score = detections[best].Confidence
			tr.misses = 0
		} else {
			tr.misses++
		}
	}

	// Drop tracks that have been missing longer than the buffer.
	var removed []int
	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.misses > t.cfg.TrackBuffer {
			removed = append(removed, tr.id)
			continue
		}
		kept = append(kept, tr)
	}
	t.tracks = kept

	// Unmatched detections above the confidence floor start new tracks.
	for i, det := range detections {
		if matched[i] || det.Confidence < t.cfg.TrackThresh {
			continue
		}
		t.tracks = append(t.tracks, &trackState{
			id:    t.nextID,
			box:   det.Box,
			score: det.Confidence,
		})
		t.log.WithField("track", t.nextID).Debug("new track")
		t.nextID++
	}

	// Report tracks observed in this frame. The track list stays in
	// creation order, so both slices come out in ascending id order.
	active := make([]Track, 0, len(t.tracks))
	for _, tr := range t.tracks {
		if tr.misses == 0 {
			active = append(active, Track{ID: tr.id, Box: tr.box, Score: tr.score})
		}
	}

	if len(removed) > 0 {
		t.log.WithField("count", len(removed)).Debug("removed lost tracks")
	}

	return active, removed
}

// Reset drops every track. The id counter keeps ascending so an id never
// names two different people, even across runs.
func (t *IoUTracker) Reset() {
	t.tracks = nil
}
