package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// client serializes writes to one connection; gorilla allows at most one
// concurrent writer per conn, and a conn may sit in several rooms.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// Hub is a websocket room registry. Each authenticated participant joins the
// room named by their own user ID; admins additionally join AdminRoom. The
// registry lock is never held across a network write, so a stalled
// connection only delays its own deliveries.
type Hub struct {
	mu      sync.Mutex
	rooms   map[string]map[*websocket.Conn]*client
	clients map[*websocket.Conn]*client
	logger  *zap.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*websocket.Conn]*client),
		clients: make(map[*websocket.Conn]*client),
		logger:  logger,
	}
}

// Join registers a connection in a room.
func (h *Hub) Join(roomID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[conn]
	if !ok {
		c = &client{conn: conn}
		h.clients[conn] = c
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*websocket.Conn]*client)
		h.rooms[roomID] = members
	}
	members[conn] = c
}

// Leave removes a connection from a room.
func (h *Hub) Leave(roomID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(roomID, conn)
}

// removeLocked drops the connection from one room and forgets the client
// once it belongs to no room at all. Caller holds h.mu.
func (h *Hub) removeLocked(roomID string, conn *websocket.Conn) {
	members := h.rooms[roomID]
	delete(members, conn)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
	for _, others := range h.rooms {
		if _, still := others[conn]; still {
			return
		}
	}
	delete(h.clients, conn)
}

// envelope is the wire format pushed to subscribers.
type envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// Publish sends an event to every connection in the room, pruning dead
// connections as it goes. An empty room is not an error.
func (h *Hub) Publish(roomID, event string, payload interface{}) {
	message, err := json.Marshal(envelope{Event: event, Payload: payload, At: time.Now().UTC()})
	if err != nil {
		h.logger.Error("failed to marshal notification", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	var dead []*websocket.Conn
	for _, c := range targets {
		if err := c.write(message); err != nil {
			_ = c.conn.Close()
			dead = append(dead, c.conn)
		}
	}
	if len(dead) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range dead {
		for room := range h.rooms {
			h.removeLocked(room, conn)
		}
	}
}

// Close closes every connection and clears the registry.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
	}
	h.rooms = make(map[string]map[*websocket.Conn]*client)
	h.clients = make(map[*websocket.Conn]*client)
}
