package models

import "time"

// Role controls what a participant may do with in-room chat.
type Role string

const (
	// RoleHost is the meeting owner
	RoleHost Role = "host"

	// RoleModerator is a co-host who can manage chat
	RoleModerator Role = "moderator"

	// RoleAttendee is a regular participant
	RoleAttendee Role = "attendee"
)

// CanPin reports whether this role may pin or unpin messages.
// Only hosts and moderators may initiate pin changes; everyone
// still applies pin broadcasts they receive.
func (r Role) CanPin() bool {
	return r == RoleHost || r == RoleModerator
}

// CanClear reports whether this role may clear the room's chat history.
func (r Role) CanClear() bool {
	return r == RoleHost
}

// Title returns the human-readable form used in annotated display
// names, e.g. "Host".
func (r Role) Title() string {
	switch r {
	case RoleHost:
		return "Host"
	case RoleModerator:
		return "Moderator"
	default:
		return "Attendee"
	}
}

// Room represents a meeting room in the portal.
// Rooms are deleted automatically when all participants leave or
// when inactive for too long.
type Room struct {
	// ID is the unique identifier for the room, used in shareable URLs
	// and as the correlation key for persisted chat state
	ID string `json:"id"`

	// Name is the display name of the room
	Name string `json:"name"`

	// CreatedAt is when the room was first created
	CreatedAt time.Time `json:"created_at"`

	// LastActiveAt is updated on each heartbeat to track room activity
	// Used by the cleanup service to delete inactive rooms
	LastActiveAt time.Time `json:"last_active_at"`
}

// Participant represents a user currently in a meeting room.
type Participant struct {
	// ID is the unique identifier for this participant session
	ID string `json:"id"`

	// RoomID links this participant to their current room
	RoomID string `json:"room_id"`

	// Name is the participant's display name without role annotation
	Name string `json:"name"`

	// Role controls chat permissions (pin, clear)
	Role Role `json:"role"`

	// JoinedAt is when this participant joined the room
	JoinedAt time.Time `json:"joined_at"`

	// LastActiveAt is updated on each heartbeat for inactivity tracking
	LastActiveAt time.Time `json:"last_active_at"`
}

// CreateRoomRequest is the request body for creating a new room
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// CreateRoomResponse is the response after creating a room
type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

// JoinRoomRequest is the request body for joining a room
type JoinRoomRequest struct {
	Name string `json:"name"`
	Role Role   `json:"role,omitempty"`
}

// JoinRoomResponse is the response after joining a room
type JoinRoomResponse struct {
	ParticipantID string        `json:"participant_id"`
	Room          Room          `json:"room"`
	Participants  []Participant `json:"participants"`
}

// LeaveRoomRequest is the request body for leaving a room
type LeaveRoomRequest struct {
	ParticipantID string `json:"participant_id"`
}

// HeartbeatRequest is used to keep the room alive
type HeartbeatRequest struct {
	ParticipantID string `json:"participant_id"`
}

// RoomInfoResponse contains room details and current participants
type RoomInfoResponse struct {
	Room         Room          `json:"room"`
	Participants []Participant `json:"participants"`
}

// MessageHistoryResponse is the response for fetching persisted messages
type MessageHistoryResponse struct {
	Messages []Message `json:"messages"`
}

// PinnedListResponse is the response for fetching the pinned set
type PinnedListResponse struct {
	Pinned []PinnedEntry `json:"pinned"`
}
