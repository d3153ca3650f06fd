package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/observability"
)

const writeTimeout = 5 * time.Second

// Message types sent to WebSocket clients.
const (
	MessageSnapshot = "snapshot"
)

// ServerMessage is the envelope of every WebSocket message.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub streams snapshots to connected WebSocket clients. New clients receive
// the latest snapshot right after connecting. It implements dashboard.Sink.
//
// Each client has its own writer goroutine; the mutex is never held while
// writing to a connection.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]*client
	latest   []byte
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// client queues at most one pending snapshot. A newer snapshot replaces an
// unsent one, so a slow reader only ever sees the freshest state.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, 1)}
}

// offer enqueues msg without blocking. Callers hold Hub.mu, so the writer is
// the only other party touching send.
func (c *client) offer(msg []byte) {
	select {
	case c.send <- msg:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- msg:
	default:
	}
}

// NewHub creates a Hub.
func NewHub(logger *zap.Logger, metrics *observability.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Name implements dashboard.Sink.
func (h *Hub) Name() string { return "websocket" }

// Publish queues the snapshot for every client and returns without waiting
// for the writes. Clients whose write fails are disconnected by their writer.
func (h *Hub) Publish(_ context.Context, snap domain.Snapshot) error {
	msg, err := json.Marshal(ServerMessage{Type: MessageSnapshot, Payload: snap})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = msg
	for _, c := range h.clients {
		c.offer(msg)
	}
	return nil
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(conn)
	h.mu.Lock()
	if h.latest != nil {
		c.offer(h.latest)
	}
	h.clients[conn] = c
	h.metrics.SetBroadcastClients(len(h.clients))
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", zap.String("remote_addr", r.RemoteAddr))

	go h.writeMessages(c)

	// Clients only listen; reading detects the close.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// writeMessages drains the client's queue until remove closes it.
func (h *Hub) writeMessages(c *client) {
	for msg := range c.send {
		if err := write(c.conn, msg); err != nil {
			h.logger.Debug("websocket write failed", zap.String("remote_addr", c.conn.RemoteAddr().String()), zap.Error(err))
			h.remove(c.conn)
			return
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for conn, c := range h.clients {
		clients = append(clients, c)
		close(c.send)
		delete(h.clients, conn)
	}
	h.metrics.SetBroadcastClients(0)
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.conn.Close()
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	c, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(c.send)
		h.metrics.SetBroadcastClients(len(h.clients))
	}
	h.mu.Unlock()

	if ok {
		conn.Close()
		h.logger.Debug("websocket client disconnected", zap.String("remote_addr", conn.RemoteAddr().String()))
	}
}

func write(c *websocket.Conn, msg []byte) error {
	if err := c.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, msg)
}
