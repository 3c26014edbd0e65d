package track

import (
	"testing"

	"github.com/zzzrenn/HeadCountGuard/internal/detect"
	"github.com/zzzrenn/HeadCountGuard/internal/geometry"
)

func det(x, y, w, h, conf float64) detect.Detection {
	return detect.Detection{
		Box:        geometry.Box{X: x, Y: y, W: w, H: h},
		ClassID:    detect.ClassPerson,
		Confidence: conf,
	}
}

func newTestTracker(t *testing.T, cfg Config) *IoUTracker {
	t.Helper()
	tr, err := NewIoUTracker(cfg)
	if err != nil {
		t.Fatalf("NewIoUTracker: %v", err)
	}
	return tr
}

func TestIoUTracker_StableIDAcrossFrames(t *testing.T) {
	tr := newTestTracker(t, DefaultConfig())

	active, removed := tr.Update([]detect.Detection{det(100, 100, 50, 80, 0.9)})
	if len(active) != 1 || active[0].ID != 1 {
		t.Fatalf("frame 1: active = %+v", active)
	}
	if len(removed) != 0 {
		t.Fatalf("frame 1: removed = %v", removed)
	}

	// The person moved a little; the track follows under the same id.
	active, removed = tr.Update([]detect.Detection{det(105, 100, 50, 80, 0.88)})
	if len(active) != 1 || active[0].ID != 1 {
		t.Fatalf("frame 2: active = %+v", active)
	}
	if active[0].Box.X != 105 {
		t.Errorf("box not updated: %+v", active[0].Box)
	}
	if active[0].Score != 0.88 {
		t.Errorf("score not updated: %v", active[0].Score)
	}
	if len(removed) != 0 {
		t.Fatalf("frame 2: removed = %v", removed)
	}
}

func TestIoUTracker_NewTrackNeedsConfidence(t *testing.T) {
	tr := newTestTracker(t, DefaultConfig())

	// Below the confidence floor: no track is started.
	active, _ := tr.Update([]detect.Detection{det(100, 100, 50, 80, 0.3)})
	if len(active) != 0 {
		t.Fatalf("weak detection started a track: %+v", active)
	}

	active, _ = tr.Update([]detect.Detection{det(100, 100, 50, 80, 0.9)})
	if len(active) != 1 {
		t.Fatalf("confident detection did not start a track")
	}

	// A weak detection can still extend the existing track.
	active, _ = tr.Update([]detect.Detection{det(104, 100, 50, 80, 0.3)})
	if len(active) != 1 || active[0].ID != 1 {
		t.Fatalf("weak detection did not extend track: %+v", active)
	}
}

func TestIoUTracker_MissBufferAndRemoval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrackBuffer = 2
	tr := newTestTracker(t, cfg)

	tr.Update([]detect.Detection{det(100, 100, 50, 80, 0.9)})

	// Two missed frames are inside the buffer.
	for frame := 0; frame < 2; frame++ {
		active, removed := tr.Update(nil)
		if len(active) != 0 || len(removed) != 0 {
			t.Fatalf("miss %d: active=%v removed=%v", frame+1, active, removed)
		}
	}

	// Third miss exceeds the buffer: the track is removed, once.
	_, removed := tr.Update(nil)
	if len(removed) != 1 || removed[0] != 1 {
		t.Fatalf("removed = %v, want [1]", removed)
	}
	_, removed = tr.Update(nil)
	if len(removed) != 0 {
		t.Fatalf("removal reported twice: %v", removed)
	}
}

func TestIoUTracker_ReacquireWithinBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrackBuffer = 2
	tr := newTestTracker(t, cfg)

	tr.Update([]detect.Detection{det(100, 100, 50, 80, 0.9)})
	tr.Update(nil) // brief occlusion

	active, removed := tr.Update([]detect.Detection{det(102, 100, 50, 80, 0.9)})
	if len(active) != 1 || active[0].ID != 1 {
		t.Fatalf("track not re-acquired: active = %+v", active)
	}
	if len(removed) != 0 {
		t.Fatalf("removed = %v", removed)
	}
}

func TestIoUTracker_GreedyPrefersBestOverlap(t *testing.T) {
	tr := newTestTracker(t, DefaultConfig())
	tr.Update([]detect.Detection{det(100, 100, 100, 100, 0.9)})

	// Two candidates; the one with higher overlap extends the track even
	// though it comes second, and the other starts a fresh track.
	active, _ := tr.Update([]detect.Detection{
		det(160, 100, 100, 100, 0.9),
		det(110, 100, 100, 100, 0.9),
	})
	if len(active) != 2 {
		t.Fatalf("active = %+v, want 2 tracks", active)
	}
	if active[0].ID != 1 || active[0].Box.X != 110 {
		t.Errorf("track 1 = %+v, want box at x=110", active[0])
	}
	if active[1].ID != 2 || active[1].Box.X != 160 {
		t.Errorf("track 2 = %+v, want box at x=160", active[1])
	}
}

func TestIoUTracker_DisjointDetectionStartsNewTrack(t *testing.T) {
	tr := newTestTracker(t, DefaultConfig())
	tr.Update([]detect.Detection{det(0, 0, 50, 50, 0.9)})

	active, removed := tr.Update([]detect.Detection{det(500, 500, 50, 50, 0.9)})
	if len(active) != 1 || active[0].ID != 2 {
		t.Fatalf("active = %+v, want new track 2", active)
	}
	// The old track is missing but still buffered.
	if len(removed) != 0 {
		t.Fatalf("removed = %v", removed)
	}
}

func TestIoUTracker_IDsNeverReused(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrackBuffer = 0
	tr := newTestTracker(t, cfg)

	tr.Update([]detect.Detection{det(100, 100, 50, 80, 0.9)})
	_, removed := tr.Update(nil)
	if len(removed) != 1 || removed[0] != 1 {
		t.Fatalf("removed = %v, want [1]", removed)
	}

	active, _ := tr.Update([]detect.Detection{det(100, 100, 50, 80, 0.9)})
	if len(active) != 1 || active[0].ID != 2 {
		t.Fatalf("active = %+v, want fresh id 2", active)
	}
}

func TestIoUTracker_ResetDropsTracksKeepsIDs(t *testing.T) {
	tr := newTestTracker(t, DefaultConfig())
	tr.Update([]detect.Detection{det(100, 100, 50, 80, 0.9)})

	tr.Reset()

	// No removal report for reset tracks, and ids continue ascending.
	active, removed := tr.Update([]detect.Detection{det(100, 100, 50, 80, 0.9)})
	if len(removed) != 0 {
		t.Fatalf("removed = %v, want none after reset", removed)
	}
	if len(active) != 1 || active[0].ID != 2 {
		t.Fatalf("active = %+v, want fresh id 2", active)
	}
}

func TestNewIoUTracker_Validation(t *testing.T) {
	bad := []Config{
		{TrackThresh: -0.1, MatchThresh: 0.8},
		{TrackThresh: 1.5, MatchThresh: 0.8},
		{TrackThresh: 0.5, MatchThresh: 2},
		{TrackThresh: 0.5, MatchThresh: 0.8, TrackBuffer: -1},
	}
	for i, cfg := range bad {
		if _, err := NewIoUTracker(cfg); err == nil {
			t.Errorf("config %d: expected error", i)
		}
	}
}

func TestMockTracker(t *testing.T) {
	m := NewMockTracker()
	m.Enqueue(
		MockStep{Tracks: []Track{{ID: 1, Box: geometry.Box{X: 10, Y: 10, W: 5, H: 5}}}},
		MockStep{Removed: []int{1}},
	)

	active, removed := m.Update(nil)
	if len(active) != 1 || active[0].ID != 1 || len(removed) != 0 {
		t.Fatalf("step 1: active=%v removed=%v", active, removed)
	}

	active, removed = m.Update(nil)
	if len(active) != 0 || len(removed) != 1 {
		t.Fatalf("step 2: active=%v removed=%v", active, removed)
	}

	// Script exhausted.
	active, removed = m.Update(nil)
	if active != nil || removed != nil {
		t.Fatalf("step 3: active=%v removed=%v", active, removed)
	}

	if m.Calls() != 3 {
		t.Errorf("Calls = %d, want 3", m.Calls())
	}
}
