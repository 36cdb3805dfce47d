package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lmoretti/atrium/backend/internal/models"
)

// Chat persistence on top of the chat_messages table. Durable message
// ids are assigned by the database (32-char hex default on the id
// column); pin state lives on the message row so the pinned set can
// be queried with a single filter.
//
// These methods satisfy the chat.Persistence interface.

// CreateMessage inserts a chat message and returns the durable id the
// database assigned to it.
func (c *Client) CreateMessage(ctx context.Context, roomID, senderID, senderName, text string) (string, error) {
	row := map[string]interface{}{
		"room_id":     roomID,
		"sender_id":   senderID,
		"sender_name": senderName,
		"text":        text,
		"timestamp":   time.Now().UTC(),
	}
	respBody, err := c.doRequest("POST", "chat_messages", row)
	if err != nil {
		return "", err
	}

	var created []models.Message
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("failed to parse created message: %w", err)
	}
	if len(created) == 0 {
		return "", fmt.Errorf("create message returned no row")
	}
	if !models.IsDurableID(created[0].ID) {
		return "", fmt.Errorf("create message returned non-durable id %q", created[0].ID)
	}
	return created[0].ID, nil
}

// PinMessage marks a stored message as pinned.
func (c *Client) PinMessage(ctx context.Context, roomID, messageID string) error {
	data := map[string]interface{}{
		"pinned":    true,
		"pinned_at": time.Now().UTC(),
	}
	endpoint := fmt.Sprintf("chat_messages?id=eq.%s&room_id=eq.%s", messageID, roomID)
	_, err := c.doRequest("PATCH", endpoint, data)
	return err
}

// UnpinMessage removes the pin mark from a stored message.
func (c *Client) UnpinMessage(ctx context.Context, roomID, messageID string) error {
	data := map[string]interface{}{
		"pinned": false,
	}
	endpoint := fmt.Sprintf("chat_messages?id=eq.%s&room_id=eq.%s", messageID, roomID)
	_, err := c.doRequest("PATCH", endpoint, data)
	return err
}

// ListMessages retrieves a room's message history in send order.
func (c *Client) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	endpoint := fmt.Sprintf("chat_messages?room_id=eq.%s&select=*&order=timestamp.asc", roomID)
	respBody, err := c.doRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	if err := json.Unmarshal(respBody, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}

	return messages, nil
}

// pinnedRow is the subset of chat_messages columns the pinned-set
// query selects.
type pinnedRow struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	SenderName string    `json:"sender_name"`
	PinnedAt   time.Time `json:"pinned_at"`
}

// ListPinned retrieves the room's currently pinned messages.
func (c *Client) ListPinned(ctx context.Context, roomID string) ([]models.PinnedEntry, error) {
	endpoint := fmt.Sprintf("chat_messages?room_id=eq.%s&pinned=is.true&select=id,text,sender_name,pinned_at&order=pinned_at.asc", roomID)
	respBody, err := c.doRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}

	var rows []pinnedRow
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse pinned messages: %w", err)
	}

	entries := make([]models.PinnedEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.PinnedEntry{
			ID:         row.ID,
			Text:       row.Text,
			SenderName: row.SenderName,
			PinnedAt:   row.PinnedAt,
		})
	}
	return entries, nil
}

// ClearMessages deletes a room's entire chat history.
func (c *Client) ClearMessages(ctx context.Context, roomID string) error {
	endpoint := fmt.Sprintf("chat_messages?room_id=eq.%s", roomID)
	_, err := c.doRequest("DELETE", endpoint, nil)
	return err
}
