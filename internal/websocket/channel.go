package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lmoretti/atrium/backend/internal/chat"
)

// Channel is the client side of the room broadcast primitive: a
// dialed websocket connection to the relay that implements
// chat.Broadcaster. Emission is fire-and-forget; if the outbound
// buffer is full the frame is discarded, matching the channel's
// at-most-once contract.
type Channel struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// DialRoom connects to the relay for one room. Every inbound frame is
// handed to onFrame (typically chat.Session.HandleEvent) from the
// channel's read goroutine.
func DialRoom(serverURL, roomID, participantID string, onFrame func(raw []byte)) (*Channel, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}
	u.Path = fmt.Sprintf("/ws/%s", roomID)
	u.RawQuery = url.Values{"participant_id": {participantID}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}

	ch := &Channel{
		conn: conn,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
	go ch.readLoop(onFrame)
	go ch.writeLoop()
	return ch, nil
}

// Emit broadcasts one event to the room, best-effort.
func (ch *Channel) Emit(e chat.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Printf("[Channel] Failed to marshal event: %v", err)
		return
	}
	select {
	case ch.send <- payload:
	case <-ch.done:
	default:
		log.Printf("[Channel] Outbound buffer full, dropping %s event", e.Kind)
	}
}

// Close tears the connection down.
func (ch *Channel) Close() {
	ch.closeOnce.Do(func() {
		close(ch.done)
		ch.conn.Close()
	})
}

func (ch *Channel) readLoop(onFrame func(raw []byte)) {
	defer ch.Close()

	ch.conn.SetReadLimit(maxMessageSize)
	ch.conn.SetReadDeadline(time.Now().Add(pongWait))
	ch.conn.SetPingHandler(func(data string) error {
		ch.conn.SetReadDeadline(time.Now().Add(pongWait))
		return ch.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, payload, err := ch.conn.ReadMessage()
		if err != nil {
			select {
			case <-ch.done:
			default:
				log.Printf("[Channel] Read error: %v", err)
			}
			return
		}
		onFrame(payload)
	}
}

func (ch *Channel) writeLoop() {
	for {
		select {
		case payload := <-ch.send:
			ch.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ch.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("[Channel] Write error: %v", err)
				ch.Close()
				return
			}
		case <-ch.done:
			return
		}
	}
}
