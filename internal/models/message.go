package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message represents a single chat message in a meeting room.
// A message starts life with a provisional ID generated on the sending
// client and is promoted to a durable ID once the persistence service
// has stored it. Only durable messages can be pinned.
type Message struct {
	// ID is either a provisional UUID or a durable identifier
	// assigned by the persistence service
	ID string `json:"id"`

	// RoomID is the room this message belongs to
	RoomID string `json:"room_id,omitempty"`

	// SenderID is the sending participant's ID
	SenderID string `json:"sender_id"`

	// SenderName is the sender's display name with the role annotation
	// appended, e.g. "Ana Liu (Host)". Use DisplayName to strip it.
	SenderName string `json:"sender_name"`

	// Text is the message body (non-empty after trimming)
	Text string `json:"text"`

	// Timestamp is when the message was sent (sender's clock)
	Timestamp time.Time `json:"timestamp"`

	// Pinned marks the message as currently highlighted in the room
	Pinned bool `json:"pinned"`
}

// PinnedEntry is a denormalized snapshot of a pinned message.
// It carries enough payload for clients that never received the
// original message (e.g. they joined the room late), so the pinned
// set has a lifecycle independent of the message log.
type PinnedEntry struct {
	// ID is the durable message identifier; provisional IDs are
	// never allowed here
	ID string `json:"id"`

	// Text is the pinned message body
	Text string `json:"text"`

	// SenderName is the annotated display name of the original sender
	SenderName string `json:"sender_name"`

	// PinnedAt is when the pin was applied
	PinnedAt time.Time `json:"pinned_at"`
}

// durableIDPattern matches identifiers assigned by the persistence
// service: 32 lowercase hex characters. Provisional UUIDs contain
// dashes and never match.
var durableIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// IsDurableID reports whether id is structurally a durable identifier.
func IsDurableID(id string) bool {
	return durableIDPattern.MatchString(id)
}

// NewProvisionalID generates a locally unique provisional message ID.
func NewProvisionalID() string {
	return uuid.New().String()
}

// DisplayName strips the trailing role annotation from an annotated
// sender name: "Ana Liu (Host)" -> "Ana Liu".
func DisplayName(senderName string) string {
	name := strings.TrimSpace(senderName)
	if !strings.HasSuffix(name, ")") {
		return name
	}
	open := strings.LastIndex(name, "(")
	if open <= 0 {
		return name
	}
	return strings.TrimSpace(name[:open])
}
