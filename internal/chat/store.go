package chat

import (
	"github.com/lmoretti/atrium/backend/internal/models"
)

// MessageStore is the ordered, append-only log of messages for one
// room session. In-place mutation is limited to id promotion and pin
// flags; no record is ever removed except via Clear.
//
// The store is confined to its session's event loop and is therefore
// unsynchronized. Callers outside the loop read copies via Messages.
type MessageStore struct {
	matcher  *Matcher
	messages []models.Message
}

// NewMessageStore creates an empty store using the given matcher for
// duplicate suppression and promotion matching.
func NewMessageStore(matcher *Matcher) *MessageStore {
	return &MessageStore{matcher: matcher}
}

// Append adds a message to the end of the log. It reports whether an
// insertion actually occurred: if the matcher folds the message onto
// an existing record (broadcast echo, retransmit) nothing is stored
// and Append returns false.
func (s *MessageStore) Append(msg models.Message) bool {
	c := Candidate{
		ID:         msg.ID,
		Text:       msg.Text,
		SenderName: msg.SenderName,
		Timestamp:  msg.Timestamp,
	}
	if _, ok := s.matcher.MatchAppend(s.messages, c); ok {
		return false
	}
	s.messages = append(s.messages, msg)
	return true
}

// PromoteID rewrites the id of the record currently holding oldID to
// newID. The transition is one-way: the record must still be
// provisional and newID must be durable, otherwise this is a no-op.
func (s *MessageStore) PromoteID(oldID, newID string) bool {
	if !models.IsDurableID(newID) || models.IsDurableID(oldID) {
		return false
	}
	for i := range s.messages {
		if s.messages[i].ID == oldID {
			s.messages[i].ID = newID
			return true
		}
	}
	return false
}

// Promote finds the pending record a promotion event refers to, using
// the candidate's original text/sender/timestamp, and rewrites its id
// to durableID. No-op if nothing matches or durableID is not durable.
func (s *MessageStore) Promote(c Candidate, durableID string) bool {
	if !models.IsDurableID(durableID) {
		return false
	}
	idx, ok := s.matcher.MatchPromote(s.messages, c)
	if !ok {
		return false
	}
	s.messages[idx].ID = durableID
	return true
}

// SetPinned rewrites the pin flag on the matching record.
// No-op if the id is not present.
func (s *MessageStore) SetPinned(id string, pinned bool) bool {
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].Pinned = pinned
			return true
		}
	}
	return false
}

// Get returns the message with the given id.
func (s *MessageStore) Get(id string) (models.Message, bool) {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return s.messages[i], true
		}
	}
	return models.Message{}, false
}

// Clear empties the log.
func (s *MessageStore) Clear() {
	s.messages = nil
}

// Len returns the number of stored messages.
func (s *MessageStore) Len() int {
	return len(s.messages)
}

// Messages returns a copy of the ordered log.
func (s *MessageStore) Messages() []models.Message {
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}
