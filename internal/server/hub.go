package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/markview/markview/internal/logging"
	"github.com/markview/markview/internal/types"
)

// UpdateMessage is pushed to connected browsers when a buffer's entry is
// replaced. It carries no content: the browser reacts by polling
// /api/query immediately instead of waiting out its interval. Polling
// remains the source of truth; the socket is purely a latency hint.
type UpdateMessage struct {
	Type      string `json:"type"`
	BufferID  int64  `json:"buffer_id"`
	Timestamp string `json:"timestamp"`
}

// Hub tracks websocket clients and broadcasts update nudges.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	logger  logging.Logger
}

// NewHub creates an empty hub.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		logger:  logger.WithComponent("ws"),
	}
}

// Serve upgrades the request and parks the connection until the client
// goes away. The server never expects inbound messages.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Debug(r.Context(), "websocket accept failed", "error", err.Error())
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	// Block until the peer closes or the request context ends.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// NotifyUpdate broadcasts that a buffer has a fresh entry.
func (h *Hub) NotifyUpdate(id types.BufferID, entry *types.RenderEntry) {
	payload, err := json.Marshal(UpdateMessage{
		Type:      "updated",
		BufferID:  int64(id),
		Timestamp: entry.Timestamp,
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			conn.Close(websocket.StatusGoingAway, "write failed")
		}
		cancel()
	}
}

// CloseAll disconnects every client, used at listener shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	h.clients = make(map[*websocket.Conn]struct{})
}
