package chat

import (
	"github.com/lmoretti/atrium/backend/internal/models"
)

// PinBoard holds the room's currently pinned messages, keyed entirely
// by durable id and decoupled from whether the full message exists in
// the local store. Like MessageStore it is confined to the session's
// event loop.
type PinBoard struct {
	entries []models.PinnedEntry
	index   map[string]int
}

// NewPinBoard creates an empty pin board.
func NewPinBoard() *PinBoard {
	return &PinBoard{index: make(map[string]int)}
}

// Add merges an entry into the board, idempotent by id. Entries with
// a non-durable id are rejected outright. Reports whether the board
// changed.
func (b *PinBoard) Add(e models.PinnedEntry) bool {
	if !models.IsDurableID(e.ID) {
		return false
	}
	if _, ok := b.index[e.ID]; ok {
		return false
	}
	b.index[e.ID] = len(b.entries)
	b.entries = append(b.entries, e)
	return true
}

// Remove deletes the entry with the given id. Reports whether the
// board changed.
func (b *PinBoard) Remove(id string) bool {
	idx, ok := b.index[id]
	if !ok {
		return false
	}
	b.entries = append(b.entries[:idx], b.entries[idx+1:]...)
	delete(b.index, id)
	for i := idx; i < len(b.entries); i++ {
		b.index[b.entries[i].ID] = i
	}
	return true
}

// Replace swaps the board's contents for the authoritative snapshot
// loaded from the persistence service, discarding any state derived
// from broadcasts. Non-durable ids in the snapshot are skipped.
func (b *PinBoard) Replace(entries []models.PinnedEntry) {
	b.entries = nil
	b.index = make(map[string]int)
	for _, e := range entries {
		b.Add(e)
	}
}

// Has reports whether the given id is pinned.
func (b *PinBoard) Has(id string) bool {
	_, ok := b.index[id]
	return ok
}

// Clear empties the board.
func (b *PinBoard) Clear() {
	b.entries = nil
	b.index = make(map[string]int)
}

// Len returns the number of pinned entries.
func (b *PinBoard) Len() int {
	return len(b.entries)
}

// Entries returns a copy of the pinned entries in pin order.
func (b *PinBoard) Entries() []models.PinnedEntry {
	out := make([]models.PinnedEntry, len(b.entries))
	copy(out, b.entries)
	return out
}
