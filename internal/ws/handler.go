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

// Client represents a connected game client
type Client struct {
	conn     *websocket.Conn
	playerID int
	login    string
	send     chan []byte
}

// Hub maintains the set of active clients
type Hub struct {
	clients map[int]*Client // playerID -> Client
	mu      sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[int]*Client),
	}
}

// Register adds a client. A reconnecting player replaces its previous
// connection.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if oldClient, exists := h.clients[client.playerID]; exists {
		log.Printf("[WS] Player %s (%d) reconnecting - closing old connection", client.login, client.playerID)
		if err := oldClient.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced by new connection"), time.Now().Add(5*time.Second)); err != nil {
			log.Printf("Error writing close control to old client %d: %v", oldClient.playerID, err)
		}
		oldClient.conn.Close()
		close(oldClient.send)
	}
	h.clients[client.playerID] = client
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[WS] Player %s (%d) connected (%d online)", client.login, client.playerID, count)
}

// Unregister removes the client and reports whether it was still the
// player's active connection. A reconnect may already have replaced it.
func (h *Hub) Unregister(client *Client) bool {
	h.mu.Lock()
	current, exists := h.clients[client.playerID]
	if !exists || current != client {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, client.playerID)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[WS] Player %s (%d) disconnected (%d online)", client.login, client.playerID, count)
	return true
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsConnected reports whether the given player has an active connection
func (h *Hub) IsConnected(playerID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.clients[playerID]
	return exists
}

// Broadcast sends a message to every connected client
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Client's buffer is full
			log.Printf("Client send buffer full for player %d, dropping message", client.playerID)
		}
	}
}

// SendToPlayer sends a message to a specific player
func (h *Hub) SendToPlayer(playerID int, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, exists := h.clients[playerID]; exists {
		select {
		case client.send <- data:
			// sent
		default:
			log.Printf("[WS] SendToPlayer dropped message for player %d (buffer full)", playerID)
		}
	} else {
		log.Printf("[WS] SendToPlayer no client for player %d", playerID)
	}
}

// Message types
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
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
				// Channel closed — connection is being replaced or cleaned up.
				// Best-effort close frame; ignore errors (conn may already be closed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error for player %d: %v", c.playerID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("WebSocket ping error for player %d: %v", c.playerID, err)
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

// sendRequestError reports a rejected request back to the client
func (c *Client) sendRequestError(code string, message string) {
	data, _ := json.Marshal(map[string]interface{}{
		"type":    "request_error",
		"code":    code,
		"message": message,
	})
	select {
	case c.send <- data:
	default:
	}
}
