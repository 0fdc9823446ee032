// Package ws implements the WebSocket adapter that mirrors task
// lifecycle events to connected clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// writeTimeout bounds one broadcast fan-out. A client that cannot take a
// frame within it is disconnected instead of stalling the feed.
const writeTimeout = 5 * time.Second

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection.
type conn struct {
	ws     *websocket.Conn
	remote string
	cancel context.CancelFunc
}

// Hub manages all active WebSocket connections and fans events out to
// them. The feed is one-way; client frames are consumed and ignored.
type Hub struct {
	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*conn]struct{})}
}

// HandleWS upgrades the request to a WebSocket and registers it with the hub.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	// The connection outlives this handler, and net/http cancels
	// r.Context() as soon as it returns, so the conn gets its own
	// lifetime context.
	ctx, cancel := context.WithCancel(context.Background())
	c := &conn{ws: sock, remote: r.RemoteAddr, cancel: cancel}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	total := len(h.conns)
	h.mu.Unlock()

	slog.Info("websocket connected", "remote", c.remote, "total", total)

	// CloseRead consumes pings and control frames; its context ends when
	// the peer goes away or the hub cancels the conn.
	go func() {
		<-sock.CloseRead(ctx).Done()
		h.remove(c)
		_ = sock.Close(websocket.StatusNormalClosure, "")
	}()
}

// Broadcast sends a message to every connected client. The fan-out runs
// against a snapshot of the connection set under a shared deadline, and
// clients whose writes fail or time out are dropped.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	for _, c := range targets {
		if err := c.ws.Write(writeCtx, websocket.MessageText, data); err != nil {
			slog.Debug("websocket write failed", "remote", c.remote, "error", err)
			h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected", "remote", c.remote)
	}
}
