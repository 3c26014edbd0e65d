package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/zzzrenn/HeadCountGuard/internal/store"
)

func testRun() *store.Run {
	started := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	return &store.Run{
		ID:         "2b6f7a90-5f05-4f37-9e61-0c2d4a8b1e77",
		Source:     "videos/lobby.mp4",
		StartedAt:  started,
		FinishedAt: &finished,
		Frames:     2700,
		Entries:    5,
		Exits:      2,
	}
}

func TestOccupancy_RendersHTML(t *testing.T) {
	run := testRun()
	samples := []store.OccupancySample{
		{RunID: run.ID, FrameIndex: 0, Entries: 0, Exits: 0},
		{RunID: run.ID, FrameIndex: 30, Entries: 2, Exits: 0},
		{RunID: run.ID, FrameIndex: 57, Entries: 3, Exits: 1},
		{RunID: run.ID, FrameIndex: 90, Entries: 5, Exits: 2},
	}
	events := []*store.Event{
		{RunID: run.ID, FrameIndex: 12, TrackID: 1, Direction: store.DirectionEntry},
		{RunID: run.ID, FrameIndex: 30, TrackID: 2, Direction: store.DirectionEntry},
		{RunID: run.ID, FrameIndex: 57, TrackID: 1, Direction: store.DirectionExit},
	}

	var buf bytes.Buffer
	if err := Occupancy(run, samples, events, &buf); err != nil {
		t.Fatalf("Occupancy() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<!DOCTYPE html>") {
		t.Error("rendered report is not an HTML document")
	}
	if !strings.Contains(out, "HeadCountGuard Report") {
		t.Error("rendered report missing page title")
	}
	if !strings.Contains(out, run.ID) {
		t.Error("rendered report missing run id")
	}
	for _, series := range []string{`"entries"`, `"exits"`, `"net"`, `"totals"`} {
		if !strings.Contains(out, series) {
			t.Errorf("rendered report missing series %s", series)
		}
	}
}

func TestOccupancy_NoSamples(t *testing.T) {
	// A run with no samples still reports its final totals.
	var buf bytes.Buffer
	if err := Occupancy(testRun(), nil, nil, &buf); err != nil {
		t.Fatalf("Occupancy() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Totals") {
		t.Error("rendered report missing totals chart")
	}
	if !strings.Contains(out, "crossings=0") {
		t.Error("rendered report missing crossing count")
	}
}

func TestOccupancy_NilRun(t *testing.T) {
	var buf bytes.Buffer
	if err := Occupancy(nil, nil, nil, &buf); err == nil {
		t.Fatal("Occupancy() with nil run should fail")
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be written on error, got %d bytes", buf.Len())
	}
}
