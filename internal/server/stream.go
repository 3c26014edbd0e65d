package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// FrameBuffer holds the most recent annotated frame as JPEG bytes. The
// pipeline encodes each frame once with Update; any number of stream
// clients read the same bytes, so the pipeline stays the only component
// touching the video source.
type FrameBuffer struct {
	mu   sync.RWMutex
	jpeg []byte
}

// NewFrameBuffer creates an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Update encodes the frame as JPEG and replaces the buffered image.
func (b *FrameBuffer) Update(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() {
		return fmt.Errorf("cannot buffer empty frame")
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	// Copy out of the native buffer before it is released
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	b.set(data)
	return nil
}

func (b *FrameBuffer) set(data []byte) {
	b.mu.Lock()
	b.jpeg = data
	b.mu.Unlock()
}

// Latest returns the buffered JPEG bytes, or nil if no frame has been
// stored yet. Callers must not modify the returned slice.
func (b *FrameBuffer) Latest() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.jpeg
}

// StreamHandler serves the annotated frames as an MJPEG stream.
type StreamHandler struct {
	frames *FrameBuffer
}

// NewStreamHandler creates a new StreamHandler reading from the given buffer.
func NewStreamHandler(frames *FrameBuffer) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		data := h.frames.Latest()
		if data == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		// Write MJPEG frame
		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
		w.Write(data)
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		time.Sleep(66 * time.Millisecond) // ~15 FPS
	}
}
