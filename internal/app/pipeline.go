package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/zzzrenn/HeadCountGuard/internal/counting"
	"github.com/zzzrenn/HeadCountGuard/internal/store"
	"github.com/zzzrenn/HeadCountGuard/internal/video"
)

// pipeline holds the per-run components built once the source dimensions
// are known.
type pipeline struct {
	app       *App
	engine    *counting.Engine
	annotator *video.Annotator
	writer    *video.Writer
	runID     string
}

// Run processes the configured source frame by frame until it ends, the
// context is canceled, or the source fails repeatedly. Each frame passes
// through detection, tracking and the crossing engine in order; crossings
// are persisted and broadcast before the next frame is read.
func (a *App) Run(ctx context.Context) error {
	if err := a.source.Open(); err != nil {
		return fmt.Errorf("failed to open video source: %w", err)
	}
	defer a.source.Close()

	width, height, fps := a.source.Properties()

	engine, err := counting.NewEngine(counting.Config{
		Line:        a.line,
		Criteria:    a.criteria,
		FrameWidth:  width,
		FrameHeight: height,
		ROI:         a.roi,
		Log:         a.log,
	})
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	a.setRunID(runID)
	a.setTotals(counting.Totals{})
	a.tracker.Reset()

	if a.config.Store != nil {
		run := &store.Run{ID: runID, Source: a.config.Settings.Video.Path}
		if err := a.config.Store.Runs().Create(run); err != nil {
			return fmt.Errorf("failed to create run record: %w", err)
		}
	}

	writer, err := a.openWriter(width, height, fps)
	if err != nil {
		return err
	}

	p := &pipeline{
		app:       a,
		engine:    engine,
		annotator: video.NewAnnotator(a.line, width, height),
		writer:    writer,
		runID:     runID,
	}
	defer p.close()

	a.log.WithFields(logrus.Fields{
		"run":    runID,
		"source": a.config.Settings.Video.Path,
		"frame":  fmt.Sprintf("%dx%d", width, height),
		"fps":    fps,
	}).Info("run started")

	var frameIndex int
	var readErr error
	consecutiveFailures := 0

loop:
	for {
		select {
		case <-ctx.Done():
			a.log.WithField("frames", frameIndex).Info("run canceled")
			break loop
		default:
		}

		frame, err := a.source.Read()
		if err != nil {
			if errors.Is(err, video.ErrEndOfStream) {
				a.log.WithField("frames", frameIndex).Info("end of stream")
				break loop
			}
			consecutiveFailures++
			if consecutiveFailures > maxConsecutiveReadFailures {
				readErr = fmt.Errorf("video source failed: %w", err)
				break loop
			}
			a.log.WithError(err).Warn("failed to read frame")
			continue
		}
		consecutiveFailures = 0

		p.processFrame(frameIndex, frame)
		frameIndex++
	}

	p.finish(frameIndex)
	return readErr
}

// processFrame pushes one frame through the full pipeline. The frame is
// closed before returning.
func (p *pipeline) processFrame(frameIndex int, frame *gocv.Mat) {
	defer frame.Close()
	a := p.app

	dets, err := a.det.Detect(frame)
	if err != nil {
		// The frame's detections are lost but the stream continues;
		// buffered tracks survive the gap.
		a.log.WithError(err).WithField("frame", frameIndex).Warn("detection failed")
		dets = nil
	}

	tracks, removed := a.tracker.Update(dets)

	observations := make([]counting.Observation, len(tracks))
	for i, tr := range tracks {
		observations[i] = counting.Observation{TrackID: tr.ID, Box: tr.Box}
	}

	events := p.engine.ProcessFrame(frameIndex, observations)
	p.engine.EvictTracks(removed)

	totals := p.engine.Totals()
	a.setTotals(totals)

	p.persist(frameIndex, events, totals)

	if a.config.OnEvent != nil {
		for _, ev := range events {
			a.config.OnEvent(ev)
		}
	}

	p.annotator.Annotate(frame, tracks, totals)

	if p.writer != nil {
		if err := p.writer.WriteFrame(frameIndex, frame, tracks); err != nil {
			a.log.WithError(err).Warn("failed to write output frame")
		}
	}

	if a.config.Frames != nil {
		if err := a.config.Frames.Update(frame); err != nil {
			a.log.WithError(err).Debug("failed to buffer frame")
		}
	}
}

// persist stores the frame's crossing events, plus an occupancy sample and
// a progress update on event frames and at the regular sample interval.
func (p *pipeline) persist(frameIndex int, events []counting.Event, totals counting.Totals) {
	s := p.app.config.Store
	if s == nil {
		return
	}

	if len(events) > 0 {
		rows := make([]*store.Event, len(events))
		for i, ev := range events {
			rows[i] = &store.Event{
				RunID:      p.runID,
				FrameIndex: ev.FrameIndex,
				TrackID:    ev.TrackID,
				Direction:  string(ev.Direction),
				OccurredAt: ev.Timestamp,
			}
		}
		if err := s.Events().CreateBatch(rows); err != nil {
			p.app.log.WithError(err).Warn("failed to persist crossing events")
		}
	}

	if len(events) > 0 || frameIndex%occupancySampleInterval == 0 {
		sample := &store.OccupancySample{
			RunID:      p.runID,
			FrameIndex: frameIndex,
			Entries:    totals.Entries,
			Exits:      totals.Exits,
		}
		if err := s.Samples().Create(sample); err != nil {
			p.app.log.WithError(err).Warn("failed to persist occupancy sample")
		}
		if err := s.Runs().UpdateProgress(p.runID, frameIndex+1, totals.Entries, totals.Exits); err != nil {
			p.app.log.WithError(err).Warn("failed to update run progress")
		}
	}
}

// finish closes out the run record with final totals.
func (p *pipeline) finish(frames int) {
	totals := p.app.Totals()

	if s := p.app.config.Store; s != nil {
		if err := s.Runs().Finish(p.runID, time.Now(), frames, totals.Entries, totals.Exits); err != nil {
			p.app.log.WithError(err).Warn("failed to finish run record")
		}
	}

	p.app.log.WithFields(logrus.Fields{
		"run":     p.runID,
		"frames":  frames,
		"entries": totals.Entries,
		"exits":   totals.Exits,
		"net":     totals.Net,
	}).Info("run complete")
}

// close releases per-run resources.
func (p *pipeline) close() {
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			p.app.log.WithError(err).Warn("failed to close output writer")
		}
	}
}

// openWriter prepares the annotated video and MOT results outputs inside a
// timestamped directory, or returns nil when saving is disabled.
func (a *App) openWriter(width, height int, fps float64) (*video.Writer, error) {
	s := a.config.Settings
	if !s.Video.SaveResult {
		return nil, nil
	}

	dir := filepath.Join(s.Video.OutputDir, time.Now().Format("2006_01_02_15_04_05"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	name := filepath.Base(s.Video.Path)
	if _, err := strconv.Atoi(s.Video.Path); err == nil {
		name = "camera.mp4"
	}

	if fps <= 0 {
		fps = 30
	}

	w, err := video.NewWriter(filepath.Join(dir, name), filepath.Join(dir, "results.txt"), width, height, fps)
	if err != nil {
		return nil, err
	}

	a.log.WithField("dir", dir).Info("saving annotated video and results")
	return w, nil
}
