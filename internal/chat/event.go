package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lmoretti/atrium/backend/internal/models"
)

// EventKind discriminates the broadcast event types a room carries.
type EventKind string

const (
	// EventMessage announces a newly sent message
	EventMessage EventKind = "message"

	// EventPromote announces that a message received a durable id
	EventPromote EventKind = "promote"

	// EventPin announces a pin or unpin
	EventPin EventKind = "pin"

	// EventClear announces that the chat history was cleared
	EventClear EventKind = "clear"
)

// Event is the wire format exchanged over the room broadcast channel.
// The channel is fire-and-forget and unordered; every event must be
// safe to lose, duplicate, or receive out of order.
type Event struct {
	Kind EventKind `json:"kind"`

	// ID is the message id the event refers to. For message events
	// this is the sender's id for the message (provisional or durable);
	// for pin events it must be durable.
	ID string `json:"id,omitempty"`

	SenderID   string    `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
	Text       string    `json:"text,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`

	// DurableID carries the persistence-assigned id on promote events
	DurableID string `json:"durable_id,omitempty"`

	// Pinned distinguishes pin from unpin on pin events
	Pinned   bool      `json:"pinned,omitempty"`
	PinnedAt time.Time `json:"pinned_at,omitempty"`
}

// Validate checks the kind-specific required fields. Malformed events
// are dropped by the session rather than applied partially.
func (e *Event) Validate() error {
	switch e.Kind {
	case EventMessage:
		if e.Text == "" || e.SenderName == "" || e.Timestamp.IsZero() {
			return fmt.Errorf("message event missing text, sender_name or timestamp")
		}
	case EventPromote:
		if !models.IsDurableID(e.DurableID) {
			return fmt.Errorf("promote event carries non-durable id %q", e.DurableID)
		}
		if e.Text == "" || e.SenderName == "" || e.Timestamp.IsZero() {
			return fmt.Errorf("promote event missing original message fields")
		}
	case EventPin:
		if !models.IsDurableID(e.ID) {
			return fmt.Errorf("pin event carries non-durable id %q", e.ID)
		}
	case EventClear:
		// no payload
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}

// ParseEvent decodes and validates a raw broadcast frame.
func ParseEvent(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// candidate builds the reconciliation key this event carries.
func (e *Event) candidate() Candidate {
	return Candidate{
		ID:         e.ID,
		Text:       e.Text,
		SenderName: e.SenderName,
		Timestamp:  e.Timestamp,
	}
}
