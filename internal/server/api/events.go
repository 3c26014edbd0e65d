package api

import (
	"net/http"
	"strings"

	"github.com/zzzrenn/HeadCountGuard/internal/store"
)

// RunEventsHandler handles HTTP requests for the crossing events of a run.
type RunEventsHandler struct {
	store *store.Store
}

// NewRunEventsHandler creates a new RunEventsHandler with the given store.
func NewRunEventsHandler(s *store.Store) *RunEventsHandler {
	return &RunEventsHandler{store: s}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: /api/runs/{id}/events
func (h *RunEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Parse run ID from path: /api/runs/{id}/events
	path := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	parts := strings.Split(path, "/")

	if len(parts) != 2 || parts[1] != "events" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	runID := parts[0]

	switch r.Method {
	case http.MethodGet:
		h.list(w, r, runID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Response types

type eventResponse struct {
	ID         int64  `json:"id"`
	RunID      string `json:"run_id"`
	FrameIndex int    `json:"frame_index"`
	TrackID    int    `json:"track_id"`
	Direction  string `json:"direction"`
	OccurredAt string `json:"occurred_at"`
}

type listEventsResponse struct {
	Events []eventResponse `json:"events"`
}

// list handles GET /api/runs/{id}/events and returns the run's crossing
// events in frame order.
func (h *RunEventsHandler) list(w http.ResponseWriter, r *http.Request, runID string) {
	events, err := h.store.Events().ListByRun(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	response := listEventsResponse{
		Events: make([]eventResponse, 0, len(events)),
	}

	for _, e := range events {
		response.Events = append(response.Events, eventResponse{
			ID:         e.ID,
			RunID:      e.RunID,
			FrameIndex: e.FrameIndex,
			TrackID:    e.TrackID,
			Direction:  e.Direction,
			OccurredAt: e.OccurredAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	writeJSON(w, http.StatusOK, response)
}
