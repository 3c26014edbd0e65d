// Package server provides the HTTP surface of the people counting system:
// health and live-count endpoints, stored run queries, a WebSocket feed of
// crossing events and an MJPEG stream of the annotated video.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/zzzrenn/HeadCountGuard/internal/counting"
	"github.com/zzzrenn/HeadCountGuard/internal/server/api"
	"github.com/zzzrenn/HeadCountGuard/internal/store"
)

// Config holds the server configuration. Every field is optional; routes
// are only registered for the collaborators that are present, so a
// store-only server (the report tooling case) and a full live server share
// the same constructor.
type Config struct {
	StaticDir string
	Store     *store.Store
	Counts    func() counting.Totals
	Frames    *FrameBuffer
	Events    *EventHub
}

// Server represents the HTTP server for the people counting application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Register the live counts endpoint if a totals source is configured
	if s.config.Counts != nil {
		s.mux.HandleFunc("/api/counts", s.handleCounts)
	}

	// Register run API handlers if Store is configured
	if s.config.Store != nil {
		runHandler := api.NewRunHandler(s.config.Store)
		eventsHandler := api.NewRunEventsHandler(s.config.Store)

		// Use a wrapper to route between run and event handlers
		runRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Check if this is an events request: /api/runs/{id}/events
			if strings.HasSuffix(r.URL.Path, "/events") {
				eventsHandler.ServeHTTP(w, r)
				return
			}
			runHandler.ServeHTTP(w, r)
		})

		s.mux.Handle("/api/runs", runRouter)
		s.mux.Handle("/api/runs/", runRouter)
	}

	// Register the crossing event WebSocket endpoint if a hub is configured
	if s.config.Events != nil {
		s.mux.Handle("/api/events", s.config.Events)
	}

	// Register the annotated video stream endpoint if a frame buffer is configured
	if s.config.Frames != nil {
		streamHandler := NewStreamHandler(s.config.Frames)
		s.mux.Handle("/api/stream", streamHandler)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handleCounts handles GET requests to /api/counts and returns the current
// entry/exit totals of the running pipeline.
func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	totals := s.config.Counts()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(totals); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
