package server

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zzzrenn/HeadCountGuard/internal/counting"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventHub broadcasts crossing events to WebSocket subscribers. The
// pipeline pushes each confirmed crossing with Publish; subscribers connect
// via /api/events and receive one JSON message per crossing, in emission
// order.
type EventHub struct {
	log     *logrus.Logger
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewEventHub creates an EventHub with no subscribers. A nil log disables
// hub logging.
func NewEventHub(log *logrus.Logger) *EventHub {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &EventHub{
		log:     log,
		clients: make(map[*websocket.Conn]bool),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Publish sends the event to all connected subscribers. It is intended to
// be called from the single pipeline goroutine; a failed write drops the
// message for that subscriber only.
func (h *EventHub) Publish(event counting.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Warn("failed to encode crossing event")
		return
	}

	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.WithError(err).Debug("dropped event for slow subscriber")
		}
	}
}

// Subscribers returns the number of currently connected clients.
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
