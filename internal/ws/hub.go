package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// Client represents a connected WebSocket client. Each connection gets a
// fresh session tag; broadcasts and queue cancellation are addressed by it.
type Client struct {
	conn       *websocket.Conn
	sessionTag string
	playerID   string // set once the client joins a queue
	send       chan []byte
}

// Hub maintains the set of active clients keyed by session tag
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes register/unregister events. Intended as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.sessionTag] = client
			h.mu.Unlock()
			log.Printf("[WS] Session %s connected", client.sessionTag)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, exists := h.clients[client.sessionTag]; exists {
				delete(h.clients, client.sessionTag)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("[WS] Session %s disconnected", client.sessionTag)
		}
	}
}

// SendToSession sends a message to one connected client.
func (h *Hub) SendToSession(tag string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, exists := h.clients[tag]; exists {
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] SendToSession dropped message for session %s (buffer full)", tag)
		}
	}
}

// SendToSessions sends one message to every listed client, preserving the
// per-client delivery order of successive calls.
func (h *Hub) SendToSessions(tags []string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, tag := range tags {
		client, exists := h.clients[tag]
		if !exists {
			continue
		}
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] Broadcast dropped message for session %s (buffer full)", tag)
		}
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed; best-effort close frame.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error for session %s: %v", c.sessionTag, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("WebSocket ping error for session %s: %v", c.sessionTag, err)
				return
			}
		}
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	data, _ := json.Marshal(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
	select {
	case c.send <- data:
	default:
	}
}
