package server

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer. send is never closed; removal
// is signalled through done, so broadcasts racing a disconnect write into a
// channel nobody drains instead of panicking.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	hub  *Hub
}

func (c *Client) sendInitialState() {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	for _, envelope := range c.hub.latest {
		select {
		case c.send <- envelope:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Write coalescing: batch queued messages into a single frame
			// with newline separators
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[server] ws client disconnected")
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		// Application-level ping for browser clients that cannot send
		// WebSocket control frames.
		var base struct {
			Ping int64 `json:"ping"`
		}
		if json.Unmarshal(msg, &base) != nil || base.Ping == 0 {
			continue
		}
		pong, _ := json.Marshal(map[string]interface{}{
			"type":      "pong",
			"ping":      base.Ping,
			"server_ts": time.Now().UnixMilli(),
		})
		select {
		case c.send <- pong:
		default:
		}
	}
}
