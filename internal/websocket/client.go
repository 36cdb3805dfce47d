package websocket

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/lmoretti/atrium/backend/internal/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Client represents a single WebSocket connection to the relay.
type Client struct {
	hub *Hub

	// WebSocket connection
	conn *websocket.Conn

	// Buffered channel of outbound frames
	send chan []byte

	// limiter throttles inbound frames from this participant
	limiter *rate.Limiter

	// Room this client belongs to
	RoomID string

	// Participant info
	ParticipantID string
}

// NewClient creates a new Client instance. sendRate/sendBurst bound
// how many frames per second the participant may push through the
// relay; excess frames are discarded, which the chat engine treats
// like any other broadcast loss.
func NewClient(hub *Hub, conn *websocket.Conn, roomID, participantID string, sendRate float64, sendBurst int) *Client {
	if sendRate <= 0 {
		sendRate = 5
	}
	if sendBurst <= 0 {
		sendBurst = 10
	}
	return &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		limiter:       rate.NewLimiter(rate.Limit(sendRate), sendBurst),
		RoomID:        roomID,
		ParticipantID: participantID,
	}
}

// ReadPump pumps frames from the WebSocket connection to the hub
// This runs in its own goroutine per client
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WebSocket] Read error from %s: %v", c.ParticipantID, err)
			}
			break
		}

		if !c.limiter.Allow() {
			metrics.RateLimitedTotal.Inc()
			log.Printf("[WebSocket] Rate limited frame from %s in room %s", c.ParticipantID, c.RoomID)
			continue
		}

		c.hub.broadcast <- &Frame{
			RoomID:  c.RoomID,
			Payload: payload,
			Sender:  c,
		}
	}
}

// WritePump pumps frames from the hub to the WebSocket connection
// This runs in its own goroutine per client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Send each frame as a separate WebSocket message
			// (concatenating would break JSON parsing on the client)
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

			// Flush any queued frames as separate messages
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
