package detect

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/zzzrenn/HeadCountGuard/internal/geometry"
)

func TestAnchorCount(t *testing.T) {
	if got := anchorCount(640, 640); got != 8400 {
		t.Errorf("anchorCount(640,640) = %d, want 8400", got)
	}
	if got := anchorCount(320, 320); got != 2100 {
		t.Errorf("anchorCount(320,320) = %d, want 2100", got)
	}
}

func TestDecodePredictions(t *testing.T) {
	cfg := DefaultConfig()
	anchors := anchorCount(cfg.InputWidth, cfg.InputHeight)
	preds := make([]float32, (4+cfg.NumClasses)*anchors)

	set := func(anchor int, cx, cy, w, h, score float32) {
		preds[anchor] = cx
		preds[anchors+anchor] = cy
		preds[2*anchors+anchor] = w
		preds[3*anchors+anchor] = h
		preds[4*anchors+anchor] = score // person class row
	}

	// A confident person, a near-duplicate for NMS to drop, a detection
	// below the confidence threshold and a second person elsewhere.
	set(100, 320, 320, 64, 128, 0.9)
	set(200, 322, 320, 64, 128, 0.8)
	set(300, 500, 500, 64, 128, 0.1)
	set(400, 100, 100, 64, 128, 0.5)

	// 1280x720 frame: boxes scale by 2.0 horizontally, 1.125 vertically.
	dets, err := decodePredictions(preds, cfg, anchors, 1280, 720)
	if err != nil {
		t.Fatalf("decodePredictions: %v", err)
	}

	if len(dets) != 2 {
		t.Fatalf("got %d detections, want 2: %+v", len(dets), dets)
	}
	if dets[0].Confidence < dets[1].Confidence {
		t.Error("detections not sorted by descending confidence")
	}

	got := dets[0].Box
	want := geometry.Box{X: 576, Y: 288, W: 128, H: 144}
	if math.Abs(got.X-want.X) > 0.01 || math.Abs(got.Y-want.Y) > 0.01 ||
		math.Abs(got.W-want.W) > 0.01 || math.Abs(got.H-want.H) > 0.01 {
		t.Errorf("box = %+v, want %+v", got, want)
	}
	if dets[0].ClassID != ClassPerson {
		t.Errorf("class = %d, want %d", dets[0].ClassID, ClassPerson)
	}
}

func TestDecodePredictions_BadLength(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := decodePredictions(make([]float32, 10), cfg, 8400, 640, 640); err == nil {
		t.Error("expected error for truncated output")
	}
}

func TestDecodePredictions_ClampsToFrame(t *testing.T) {
	cfg := DefaultConfig()
	anchors := anchorCount(cfg.InputWidth, cfg.InputHeight)
	preds := make([]float32, (4+cfg.NumClasses)*anchors)

	// Centered on the left edge: half the box falls outside the frame.
	preds[0] = 0
	preds[anchors] = 320
	preds[2*anchors] = 64
	preds[3*anchors] = 128
	preds[4*anchors] = 0.9

	dets, err := decodePredictions(preds, cfg, anchors, 1280, 720)
	if err != nil {
		t.Fatalf("decodePredictions: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}
	if dets[0].Box.X != 0 {
		t.Errorf("box not clamped: %+v", dets[0].Box)
	}
	if math.Abs(dets[0].Box.W-64) > 0.01 {
		t.Errorf("clamped width = %v, want 64", dets[0].Box.W)
	}
}

func TestNonMaxSuppression(t *testing.T) {
	a := Detection{Box: geometry.Box{X: 0, Y: 0, W: 10, H: 10}, Confidence: 0.5}
	b := Detection{Box: geometry.Box{X: 1, Y: 0, W: 10, H: 10}, Confidence: 0.9}
	c := Detection{Box: geometry.Box{X: 100, Y: 100, W: 10, H: 10}, Confidence: 0.3}

	kept := nonMaxSuppression([]Detection{a, b, c}, 0.45)
	if len(kept) != 2 {
		t.Fatalf("got %d detections, want 2: %+v", len(kept), kept)
	}
	if kept[0].Confidence != 0.9 || kept[1].Confidence != 0.3 {
		t.Errorf("kept = %+v", kept)
	}
}

func TestFillInput(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	data := make([]float32, 12)
	fillInput(img, data, 2, 2)

	want := []float32{
		1, 0, 0, 1, // R plane
		0, 1, 0, 1, // G plane
		0, 0, 1, 1, // B plane
	}
	for i := range want {
		if data[i] != want[i] {
			t.Errorf("data[%d] = %v, want %v", i, data[i], want[i])
		}
	}
}

func TestMockDetector(t *testing.T) {
	m := NewMockDetector()

	dets, err := m.Detect(nil)
	if err != nil || len(dets) != 0 {
		t.Fatalf("empty mock: dets=%v err=%v", dets, err)
	}

	m.SetDetections([]Detection{PersonAt(100, 200)})
	dets, _ = m.Detect(nil)
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}
	if c := dets[0].Box.Center(); c.X != 100 || c.Y != 200 {
		t.Errorf("PersonAt center = %+v, want (100,200)", c)
	}

	m.SetSequence([][]Detection{
		{PersonAt(10, 10)},
		nil,
	})
	if dets, _ = m.Detect(nil); len(dets) != 1 {
		t.Error("sequence step 1 not returned")
	}
	if dets, _ = m.Detect(nil); len(dets) != 0 {
		t.Error("sequence step 2 should be empty")
	}
	// Sequence exhausted: falls back to the fixed detections.
	if dets, _ = m.Detect(nil); len(dets) != 1 {
		t.Error("fallback to fixed detections failed")
	}

	wantErr := errors.New("camera unplugged")
	m.SetError(wantErr)
	if _, err := m.Detect(nil); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}

	if m.Calls() != 5 {
		t.Errorf("Calls = %d, want 5", m.Calls())
	}
}
