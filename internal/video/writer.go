package video

import (
	"bufio"
	"fmt"
	"os"

	"gocv.io/x/gocv"

	"github.com/zzzrenn/HeadCountGuard/internal/track"
)

// Writer persists pipeline output: the annotated video and a per-frame
// track results file in MOT challenge layout.
type Writer struct {
	video   *gocv.VideoWriter
	results *os.File
	buf     *bufio.Writer
}

// NewWriter creates the configured outputs. Either path may be empty to
// disable that output; a Writer with both disabled is a no-op.
func NewWriter(videoPath, resultsPath string, width, height int, fps float64) (*Writer, error) {
	w := &Writer{}

	if videoPath != "" {
		vw, err := gocv.VideoWriterFile(videoPath, "mp4v", fps, width, height, true)
		if err != nil {
			return nil, fmt.Errorf("create video writer: %w", err)
		}
		if !vw.IsOpened() {
			vw.Close()
			return nil, fmt.Errorf("video writer failed to open %s", videoPath)
		}
		w.video = vw
	}

	if resultsPath != "" {
		f, err := os.Create(resultsPath)
		if err != nil {
			if w.video != nil {
				w.video.Close()
			}
			return nil, fmt.Errorf("create results file: %w", err)
		}
		w.results = f
		w.buf = bufio.NewWriter(f)
	}

	return w, nil
}

// WriteFrame appends one annotated frame and its tracks to the outputs.
func (w *Writer) WriteFrame(frameIndex int, frame *gocv.Mat, tracks []track.Track) error {
	if w.video != nil && frame != nil {
		if err := w.video.Write(*frame); err != nil {
			return fmt.Errorf("write video frame: %w", err)
		}
	}
	if w.buf != nil {
		for _, tr := range tracks {
			if _, err := w.buf.WriteString(motLine(frameIndex, tr)); err != nil {
				return fmt.Errorf("write results line: %w", err)
			}
		}
	}
	return nil
}

// motLine formats one track in the MOT challenge layout:
// frame,id,x,y,w,h,score,-1,-1,-1
func motLine(frameIndex int, tr track.Track) string {
	return fmt.Sprintf("%d,%d,%.2f,%.2f,%.2f,%.2f,%.2f,-1,-1,-1\n",
		frameIndex, tr.ID, tr.Box.X, tr.Box.Y, tr.Box.W, tr.Box.H, tr.Score)
}

// Close flushes and closes all outputs, returning the first error.
func (w *Writer) Close() error {
	var first error
	if w.buf != nil {
		if err := w.buf.Flush(); err != nil {
			first = err
		}
	}
	if w.results != nil {
		if err := w.results.Close(); err != nil && first == nil {
			first = err
		}
	}
	if w.video != nil {
		if err := w.video.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
