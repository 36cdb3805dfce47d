package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lmoretti/atrium/backend/internal/chat"
	"github.com/lmoretti/atrium/backend/internal/models"
)

// ChatHandler contains HTTP handlers for reading persisted chat state.
// Clients hydrate their in-room engine from these endpoints when they
// enter a room or reconnect; live traffic flows over the relay.
type ChatHandler struct {
	persistence chat.Persistence
}

// NewChatHandler creates a new ChatHandler instance.
func NewChatHandler(persistence chat.Persistence) *ChatHandler {
	return &ChatHandler{persistence: persistence}
}

// GetMessages handles GET /api/rooms/{id}/messages
// Returns the room's persisted message history in send order.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	if roomID == "" {
		http.Error(w, "room ID is required", http.StatusBadRequest)
		return
	}

	messages, err := h.persistence.ListMessages(r.Context(), roomID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	writeJSON(w, http.StatusOK, models.MessageHistoryResponse{Messages: messages})
}

// GetPinned handles GET /api/rooms/{id}/pins
// Returns the room's currently pinned messages.
func (h *ChatHandler) GetPinned(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	if roomID == "" {
		http.Error(w, "room ID is required", http.StatusBadRequest)
		return
	}

	pinned, err := h.persistence.ListPinned(r.Context(), roomID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if pinned == nil {
		pinned = []models.PinnedEntry{}
	}

	writeJSON(w, http.StatusOK, models.PinnedListResponse{Pinned: pinned})
}
