package chat

// UnreadTracker counts messages that arrived while the chat surface
// was hidden. Increments are edge-triggered: the session calls
// NoteAppend exactly once per inserted message, so duplicate events
// and repeated store inspections never double count.
type UnreadTracker struct {
	visible    bool
	count      int
	lastSeenID string
	onChange   func(count int)
}

// NewUnreadTracker creates a tracker in the hidden state (the chat
// panel starts closed when a room is entered). onChange may be nil.
func NewUnreadTracker(onChange func(count int)) *UnreadTracker {
	return &UnreadTracker{onChange: onChange}
}

// SetVisible transitions the visibility state. Hidden -> Visible
// resets the counter and records the last-seen message id; the
// reverse transition just flips the flag.
func (t *UnreadTracker) SetVisible(visible bool, lastMessageID string) {
	if visible && !t.visible {
		t.lastSeenID = lastMessageID
		if t.count != 0 {
			t.count = 0
			t.notify()
		}
	}
	t.visible = visible
}

// NoteAppend records one inserted message. Counts only while hidden.
func (t *UnreadTracker) NoteAppend() {
	if t.visible {
		return
	}
	t.count++
	t.notify()
}

// Reset drops the counter without changing visibility, used when the
// history itself is cleared.
func (t *UnreadTracker) Reset() {
	if t.count == 0 {
		return
	}
	t.count = 0
	t.notify()
}

// Count returns the current unread count.
func (t *UnreadTracker) Count() int {
	return t.count
}

// Visible reports the current visibility state.
func (t *UnreadTracker) Visible() bool {
	return t.visible
}

// LastSeenID returns the id recorded on the last Hidden -> Visible
// transition, empty if the surface was never opened.
func (t *UnreadTracker) LastSeenID() string {
	return t.lastSeenID
}

func (t *UnreadTracker) notify() {
	if t.onChange != nil {
		t.onChange(t.count)
	}
}
