package websocket

import (
	"log"
	"sync"

	"github.com/lmoretti/atrium/backend/internal/metrics"
)

// Hub is the room broadcast primitive: it maintains the set of active
// clients per room and fans every frame out to the room's peers.
//
// Delivery is deliberately best-effort. Frames are relayed as-is with
// no ordering, no acknowledgment and no retry; a client whose buffer
// is full is dropped. The chat engine on top compensates with
// idempotent, content-addressed reconciliation.
type Hub struct {
	// rooms maps roomID to a set of clients in that room
	rooms map[string]map[*Client]bool

	// register requests from clients
	register chan *Client

	// unregister requests from clients
	unregister chan *Client

	// broadcast relays a frame to all clients in a room
	broadcast chan *Frame

	// mutex for thread-safe room operations
	mu sync.RWMutex
}

// Frame is one raw broadcast payload bound for a room.
type Frame struct {
	RoomID  string
	Payload []byte
	Sender  *Client // Original sender (excluded from the fan-out)
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Frame),
	}
}

// Run starts the hub's main event loop
// This should be called in a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case frame := <-h.broadcast:
			h.broadcastToRoom(frame)
		}
	}
}

// registerClient adds a client to a room
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Create room if it doesn't exist
	if h.rooms[client.RoomID] == nil {
		h.rooms[client.RoomID] = make(map[*Client]bool)
	}

	h.rooms[client.RoomID][client] = true
	metrics.ConnectedClients.Inc()
	log.Printf("[WebSocket] Client %s joined room %s (total: %d)",
		client.ParticipantID, client.RoomID, len(h.rooms[client.RoomID]))
}

// unregisterClient removes a client from a room
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.rooms[client.RoomID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			close(client.send)
			metrics.ConnectedClients.Dec()

			log.Printf("[WebSocket] Client %s left room %s (remaining: %d)",
				client.ParticipantID, client.RoomID, len(clients))

			// Clean up empty rooms
			if len(clients) == 0 {
				delete(h.rooms, client.RoomID)
				log.Printf("[WebSocket] Room %s is now empty, removed from hub", client.RoomID)
			}
		}
	}
}

// broadcastToRoom relays a frame to all clients in a room except the
// sender, who already applied it locally.
func (h *Hub) broadcastToRoom(frame *Frame) {
	h.mu.RLock()
	clients := h.rooms[frame.RoomID]
	h.mu.RUnlock()

	sentCount := 0
	for client := range clients {
		if frame.Sender != nil && client == frame.Sender {
			continue
		}

		select {
		case client.send <- frame.Payload:
			sentCount++
		default:
			// Client's buffer is full, remove them
			h.mu.Lock()
			if _, ok := h.rooms[frame.RoomID]; ok {
				delete(h.rooms[frame.RoomID], client)
				close(client.send)
				metrics.ConnectedClients.Dec()
			}
			h.mu.Unlock()
			metrics.DroppedClientsTotal.Inc()
			log.Printf("[WebSocket] Dropped slow client %s from room %s", client.ParticipantID, frame.RoomID)
		}
	}
	metrics.BroadcastsTotal.Inc()
	log.Printf("[WebSocket] Broadcast in room %s relayed to %d clients", frame.RoomID, sentCount)
}

// GetRoomClientCount returns the number of connected clients in a room
func (h *Hub) GetRoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
