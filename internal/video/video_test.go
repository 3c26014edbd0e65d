package video

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gocv.io/x/gocv"

	"github.com/zzzrenn/HeadCountGuard/internal/counting"
	"github.com/zzzrenn/HeadCountGuard/internal/geometry"
	"github.com/zzzrenn/HeadCountGuard/internal/track"
)

func TestMockSource_NotOpen(t *testing.T) {
	s := NewMockSource(nil, false)
	if _, err := s.Read(); !errors.Is(err, ErrSourceNotOpen) {
		t.Errorf("err = %v, want ErrSourceNotOpen", err)
	}
}

func TestMockSource_PlaybackAndEOF(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires OpenCV")
	}

	frames := make([]*gocv.Mat, 2)
	for i := range frames {
		m := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	defer func() {
		for _, f := range frames {
			f.Close()
		}
	}()

	s := NewMockSource(frames, false)
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	w, h, fps := s.Properties()
	if w != 64 || h != 64 || fps != 15 {
		t.Errorf("Properties = %d,%d,%v", w, h, fps)
	}

	for i := 0; i < 2; i++ {
		frame, err := s.Read()
		if err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
		frame.Close()
	}

	if _, err := s.Read(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("err = %v, want ErrEndOfStream", err)
	}

	// Reset rewinds playback.
	s.Reset()
	frame, err := s.Read()
	if err != nil {
		t.Fatalf("Read after Reset: %v", err)
	}
	frame.Close()
}

func TestMockSource_Loop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires OpenCV")
	}

	m := gocv.NewMatWithSize(32, 32, gocv.MatTypeCV8UC3)
	defer m.Close()

	s := NewMockSource([]*gocv.Mat{&m}, true)
	s.Open()
	defer s.Close()

	for i := 0; i < 5; i++ {
		frame, err := s.Read()
		if err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
		frame.Close()
	}
}

func TestAnnotator_LabelPlacement(t *testing.T) {
	mustLine := func(a, b geometry.Point, inSide string) geometry.Line {
		line, err := geometry.NewLine(a, b, inSide)
		if err != nil {
			t.Fatalf("NewLine: %v", err)
		}
		return line
	}

	// Vertical line, left in: IN label sits at smaller x.
	an := NewAnnotator(mustLine(geometry.Point{X: 0.5, Y: 0}, geometry.Point{X: 0.5, Y: 1}, "left"), 640, 480)
	if an.a != image.Pt(320, 0) || an.b != image.Pt(320, 480) {
		t.Errorf("endpoints = %v %v", an.a, an.b)
	}
	if an.inLabelAt != image.Pt(290, 240) || an.outLabelAt != image.Pt(350, 240) {
		t.Errorf("labels = in %v out %v", an.inLabelAt, an.outLabelAt)
	}

	// Same line, right in: labels swap.
	an = NewAnnotator(mustLine(geometry.Point{X: 0.5, Y: 0}, geometry.Point{X: 0.5, Y: 1}, "right"), 640, 480)
	if an.inLabelAt != image.Pt(350, 240) || an.outLabelAt != image.Pt(290, 240) {
		t.Errorf("labels = in %v out %v", an.inLabelAt, an.outLabelAt)
	}

	// Horizontal line, left in: "left" means below the line.
	an = NewAnnotator(mustLine(geometry.Point{X: 0.2, Y: 0.5}, geometry.Point{X: 0.8, Y: 0.5}, "left"), 640, 480)
	if an.inLabelAt.Y <= 240 {
		t.Errorf("IN label not below horizontal line: %v", an.inLabelAt)
	}
	if an.outLabelAt.Y >= 240 {
		t.Errorf("OUT label not above horizontal line: %v", an.outLabelAt)
	}
}

func TestAnnotator_Draws(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires OpenCV")
	}

	line, err := geometry.NewLine(geometry.Point{X: 0.5, Y: 0}, geometry.Point{X: 0.5, Y: 1}, "left")
	if err != nil {
		t.Fatalf("NewLine: %v", err)
	}
	an := NewAnnotator(line, 640, 480)

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	tracks := []track.Track{
		{ID: 1, Box: geometry.Box{X: 100, Y: 100, W: 80, H: 180}, Score: 0.9},
	}
	an.Annotate(&frame, tracks, counting.Totals{Entries: 3, Exits: 1, Net: 2})

	// The line pixels should no longer be black.
	if v := frame.GetVecbAt(240, 320); v[0] == 0 && v[1] == 0 && v[2] == 0 {
		t.Error("line not drawn")
	}
}

func TestMotLine(t *testing.T) {
	tr := track.Track{
		ID:    7,
		Box:   geometry.Box{X: 100.5, Y: 200.25, W: 50, H: 80},
		Score: 0.9,
	}
	got := motLine(3, tr)
	want := "3,7,100.50,200.25,50.00,80.00,0.90,-1,-1,-1\n"
	if got != want {
		t.Errorf("motLine = %q, want %q", got, want)
	}
}

func TestWriter_ResultsOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.txt")
	w, err := NewWriter("", path, 640, 480, 30)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	box := geometry.Box{X: 10, Y: 20, W: 30, H: 40}
	if err := w.WriteFrame(1, nil, []track.Track{{ID: 1, Box: box, Score: 0.5}}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := w.WriteFrame(2, nil, []track.Track{
		{ID: 1, Box: box, Score: 0.5},
		{ID: 2, Box: box, Score: 0.7},
	}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), data)
	}
	if lines[0] != "1,1,10.00,20.00,30.00,40.00,0.50,-1,-1,-1" {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "2,2,") {
		t.Errorf("last line = %q", lines[2])
	}
}

func TestWriter_Disabled(t *testing.T) {
	w, err := NewWriter("", "", 0, 0, 0)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.WriteFrame(1, nil, nil); err != nil {
		t.Errorf("WriteFrame: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
