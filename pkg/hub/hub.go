// Package hub fans out status events to connected WebSocket clients.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Event is a message pushed to WebSocket clients.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub tracks live WebSocket subscribers. Broadcast is best-effort: a client
// whose send queue is full is evicted rather than blocking the others.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Conn is the subset of the websocket connection the hub needs. Tests supply
// fakes.
type Conn interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
	Close(status websocket.StatusCode, reason string) error
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
}

// Client is one registered subscriber with a buffered send queue.
type Client struct {
	conn Conn
	send chan Event

	closeOnce sync.Once
}

// Register adds a connection and returns its client handle.
func (h *Hub) Register(conn Conn) *Client {
	c := &Client{
		conn: conn,
		send: make(chan Event, 64),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Remove unregisters a client and closes its send queue.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every client. A client that cannot accept the
// event is removed lazily; delivery to the rest is unaffected.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.Enqueue(event) {
			go h.Remove(c)
		}
	}
}

// Unicast sends an event to a single client, evicting it on a full queue.
// Enqueue happens under the read lock so it cannot race Remove closing the
// queue; an already-removed client is a no-op.
func (h *Hub) Unicast(c *Client, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	h.mu.RLock()
	_, registered := h.clients[c]
	full := registered && !c.Enqueue(event)
	h.mu.RUnlock()
	if full {
		go h.Remove(c)
	}
}

// Enqueue attempts a non-blocking send. False means the queue is full.
func (c *Client) Enqueue(event Event) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// WriteLoop drains the send queue onto the connection, preserving per-client
// order. Returns when the queue closes, the context ends, or a write fails.
func (c *Client) WriteLoop(ctx context.Context) error {
	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return nil
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err = c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close shuts the underlying connection once.
func (c *Client) Close(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		_ = c.conn.Close(status, reason)
	})
}

// Read passes through to the connection for the caller's read loop.
func (c *Client) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	return c.conn.Read(ctx)
}
