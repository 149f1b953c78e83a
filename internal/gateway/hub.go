package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"investsim/internal/metrics"
)

// Hub manages WebSocket clients and fan-out of server-push updates.
// Slow clients are never waited on: a full send buffer drops the
// message and bumps the drop counter.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]json.RawMessage // last envelope per message type

	prom *metrics.Metrics
}

// NewHub creates a Hub. prom may be nil.
func NewHub(prom *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]json.RawMessage),
		prom:    prom,
	}
}

// Register wraps an upgraded connection and starts its pumps.
func (h *Hub) Register(conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	if h.prom != nil {
		h.prom.WSClients.Set(float64(count))
	}
	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.sendInitialState()
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	if h.prom != nil {
		h.prom.WSClients.Set(float64(count))
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast wraps payload in a typed envelope and fans it out to all
// clients. The envelope is also retained so late joiners receive the
// latest state of each message type on connect.
func (h *Hub) Broadcast(msgType string, payload interface{}) {
	envelope, err := json.Marshal(map[string]interface{}{
		"type": msgType,
		"data": payload,
		"ts":   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Printf("[gateway] broadcast marshal error: %v", err)
		return
	}

	h.mu.Lock()
	h.latest[msgType] = envelope
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- envelope:
		default:
			if h.prom != nil {
				h.prom.WSDropped.Inc()
			}
		}
	}
}
