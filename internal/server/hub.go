package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stockwatch/internal/cache"
)

// Hub manages WebSocket clients and fans refreshed snapshots out to them.
// Slow clients have messages dropped rather than stalling the rest.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]json.RawMessage // last envelope per ticker

	// OnClientCount is called with the client total after connect and
	// disconnect (for metrics).
	OnClientCount func(n int)
}

// NewHub creates a Hub with no clients.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]json.RawMessage),
	}
}

// Run consumes refreshed entries and broadcasts each to all clients.
// Blocks until ctx is cancelled or the channel is closed.
func (h *Hub) Run(ctx context.Context, updates <-chan cache.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-updates:
			if !ok {
				return
			}
			h.publish(e)
		}
	}
}

func (h *Hub) publish(e cache.Entry) {
	envelope, err := json.Marshal(map[string]interface{}{
		"type": "snapshot",
		"ts":   time.Now().UTC().Format(time.RFC3339Nano),
		"data": entryDTO(e),
	})
	if err != nil {
		log.Printf("[server] marshal ws envelope for %s: %v", e.Ticker, err)
		return
	}

	h.mu.Lock()
	h.latest[e.Ticker] = envelope
	h.mu.Unlock()

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- envelope:
		default:
			// slow client, drop this update for it
		}
	}
	h.mu.RUnlock()
}

// HandleWSRequest registers an upgraded connection and starts its pumps.
// The client immediately receives the latest envelope for every ticker.
func (h *Hub) HandleWSRequest(conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[server] ws client connected (%d total)", count)
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}

	go client.sendInitialState()
	go client.writePump()
	go client.readPump()
}

// RemoveClient drops a client from the hub and signals its write pump to
// shut down. The send channel stays open: sendInitialState and publish hold
// direct client references and may still be sending.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	close(c.done)

	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
