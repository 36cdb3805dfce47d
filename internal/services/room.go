package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lmoretti/atrium/backend/internal/models"
	"github.com/lmoretti/atrium/backend/internal/supabase"
)

// RoomService handles all room-related business logic.
// It acts as an intermediary between HTTP handlers and the database.
type RoomService struct {
	db *supabase.Client
}

// NewRoomService creates a new RoomService instance.
func NewRoomService(db *supabase.Client) *RoomService {
	return &RoomService{db: db}
}

// CreateRoom generates a new room with a unique ID and inserts it into the database.
// The room ID is a short, URL-friendly string that users can easily share;
// it doubles as the correlation key for persisted chat state.
func (s *RoomService) CreateRoom(name string) (*models.Room, error) {
	roomID, err := generateRoomID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate room ID: %w", err)
	}

	// Default name if not provided
	if name == "" {
		name = "Untitled Meeting"
	}

	now := time.Now().UTC()
	room := &models.Room{
		ID:           roomID,
		Name:         name,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	if err := s.db.CreateRoom(room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return room, nil
}

// GetRoom retrieves a room by its ID along with the current participants.
func (s *RoomService) GetRoom(roomID string) (*models.Room, []models.Participant, error) {
	room, err := s.db.GetRoom(roomID)
	if err != nil {
		return nil, nil, err
	}

	participants, err := s.db.GetParticipants(roomID)
	if err != nil {
		return nil, nil, err
	}

	return room, participants, nil
}

// ListRooms retrieves all active rooms.
func (s *RoomService) ListRooms() ([]models.Room, error) {
	return s.db.ListRooms()
}

// JoinRoom adds a new participant to an existing room. The first
// participant to join becomes the host; later joiners get the role
// they asked for, defaulting to attendee.
func (s *RoomService) JoinRoom(roomID, name string, role models.Role) (*models.Participant, *models.Room, []models.Participant, error) {
	// Verify room exists
	room, err := s.db.GetRoom(roomID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("room not found: %w", err)
	}

	count, err := s.db.CountParticipants(roomID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to count participants: %w", err)
	}
	if count == 0 {
		role = models.RoleHost
	} else if role != models.RoleModerator {
		role = models.RoleAttendee
	}

	now := time.Now().UTC()
	participant := &models.Participant{
		ID:           uuid.New().String(),
		RoomID:       roomID,
		Name:         name,
		Role:         role,
		JoinedAt:     now,
		LastActiveAt: now,
	}

	if err := s.db.AddParticipant(participant); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to join room: %w", err)
	}

	// Broadcast join event so other clients update instantly
	if err := s.db.BroadcastParticipantEvent(roomID, "join", participant); err != nil {
		log.Printf("Failed to broadcast participant join for %s: %v", participant.ID, err)
	}

	// Update room activity
	if err := s.db.UpdateRoomActivity(roomID); err != nil {
		// Non-fatal error, log but continue
		log.Printf("Warning: failed to update room activity: %v", err)
	}

	// Get updated participant list
	participants, err := s.db.GetParticipants(roomID)
	if err != nil {
		return nil, nil, nil, err
	}

	return participant, room, participants, nil
}

// LeaveRoom removes a participant from a room.
// If this was the last participant, the room is automatically deleted
// along with its persisted chat history.
func (s *RoomService) LeaveRoom(roomID, participantID string) error {
	// Fetch participant info before removing (needed for broadcast)
	participant, err := s.db.GetParticipant(participantID)
	if err != nil {
		log.Printf("Could not fetch participant %s for broadcast: %v", participantID, err)
	}

	// Remove the participant
	if err := s.db.RemoveParticipant(participantID); err != nil {
		return fmt.Errorf("failed to leave room: %w", err)
	}

	// Broadcast leave event so other clients update instantly
	if participant != nil {
		if err := s.db.BroadcastParticipantEvent(roomID, "leave", participant); err != nil {
			log.Printf("Failed to broadcast participant leave for %s: %v", participantID, err)
		}
	}

	// Check if room is now empty
	count, err := s.db.CountParticipants(roomID)
	if err != nil {
		return fmt.Errorf("failed to check participant count: %w", err)
	}

	// If room is empty, delete it immediately
	if count == 0 {
		if err := s.deleteRoomWithHistory(roomID); err != nil {
			return fmt.Errorf("failed to delete empty room: %w", err)
		}
	}

	return nil
}

// UpdateHeartbeat refreshes the room and participant's last active timestamp.
// This prevents the room and participant from being cleaned up.
func (s *RoomService) UpdateHeartbeat(roomID, participantID string) error {
	// Update room activity
	if err := s.db.UpdateRoomActivity(roomID); err != nil {
		return err
	}
	// Update participant activity
	if participantID != "" {
		if err := s.db.UpdateParticipantActivity(participantID); err != nil {
			return err
		}
	}
	return nil
}

// deleteRoomWithHistory removes a room and its chat history.
func (s *RoomService) deleteRoomWithHistory(roomID string) error {
	if err := s.db.ClearMessages(context.Background(), roomID); err != nil {
		log.Printf("Failed to clear chat history for room %s: %v", roomID, err)
	}
	return s.db.DeleteRoom(roomID)
}

// generateRoomID creates a short, URL-friendly room identifier.
// Uses cryptographically secure random bytes encoded as hex.
func generateRoomID() (string, error) {
	bytes := make([]byte, 4) // 4 bytes = 8 hex characters
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
