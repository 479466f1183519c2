// Package hub fans booking events out to connected websocket clients.
// Delivery is best-effort: slow or dead connections are dropped, never
// retried, and ordering across subscribers is not guaranteed.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"innovia-booking/internal/app"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The booking API sits behind the platform gateway, which owns
		// origin policy.
		return true
	},
}

type Hub struct {
	mu     sync.Mutex
	conns  map[*websocket.Conn]string // conn -> user id
	logger *slog.Logger
}

func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{conns: make(map[*websocket.Conn]string), logger: logger}
}

// Subscribe upgrades the request and keeps the connection registered
// until the client goes away. It blocks for the lifetime of the socket.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.conns[conn] = userID
	h.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	return conn.Close()
}

// Emit implements app.Notifier. Events with a target user go only to
// that user's connections; everything else is broadcast.
func (h *Hub) Emit(ctx context.Context, ev app.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "event", ev.Name, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, userID := range h.conns {
		if ev.UserID != "" && ev.UserID != userID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Subscribers reports the current connection count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
