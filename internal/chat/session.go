package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lmoretti/atrium/backend/internal/models"
)

// ErrTextRequired is returned by Send when the text trims to empty.
// It is the only user-visible failure in the chat core; everything
// else degrades silently (see the package documentation).
var ErrTextRequired = errors.New("text required")

// ErrNoRoom is returned by Send when the session has no active room.
var ErrNoRoom = errors.New("no active room")

// Broadcaster is the room's fire-and-forget fan-out primitive.
// Emission must never block; delivery to peers is best-effort,
// unordered and unacknowledged.
type Broadcaster interface {
	Emit(e Event)
}

// Persistence is the durable backend for messages and pin state.
// Calls may fail or be slow; the session never blocks its event loop
// on them.
type Persistence interface {
	CreateMessage(ctx context.Context, roomID, senderID, senderName, text string) (durableID string, err error)
	PinMessage(ctx context.Context, roomID, messageID string) error
	UnpinMessage(ctx context.Context, roomID, messageID string) error
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
	ListPinned(ctx context.Context, roomID string) ([]models.PinnedEntry, error)
	ClearMessages(ctx context.Context, roomID string) error
}

// Identity describes the local participant for the lifetime of a
// room session.
type Identity struct {
	ParticipantID string
	Name          string
	Role          models.Role
}

// SenderName returns the display name with the role annotation the
// wire format carries, e.g. "Ana Liu (Host)".
func (id Identity) SenderName() string {
	return fmt.Sprintf("%s (%s)", id.Name, id.Role.Title())
}

// Callbacks are change notifications for the surrounding UI.
// They are invoked from the session's event loop; handlers must not
// call back into the session synchronously.
type Callbacks struct {
	OnMessagesChanged func(messages []models.Message)
	OnPinnedChanged   func(pinned []models.PinnedEntry)
	OnUnreadChanged   func(count int)
}

// Config carries everything a Session needs for one room.
type Config struct {
	// RoomID is the correlation key for persisted chat state
	RoomID string

	// Identity is the local participant
	Identity Identity

	// Broadcaster is the room broadcast channel (required)
	Broadcaster Broadcaster

	// Persistence is the durable backend; may be nil, in which case
	// messages stay provisional and pins are never stored
	Persistence Persistence

	// DedupWindow and PromoteWindow tune the reconciliation matcher;
	// zero values use the package defaults
	DedupWindow   time.Duration
	PromoteWindow time.Duration

	Callbacks Callbacks
}

// Session synchronizes one room's chat across peers: it appends local
// sends optimistically, broadcasts them, persists in the background,
// promotes provisional ids to durable ones, and folds incoming
// broadcast events onto the local log via the reconciliation matcher.
//
// All state mutation happens on a single event-loop goroutine, so the
// store, pin board and unread tracker need no locking. Mutating
// methods post work onto that loop; read accessors serve snapshots.
type Session struct {
	roomID      string
	identity    Identity
	broadcaster Broadcaster
	persistence Persistence
	callbacks   Callbacks

	store  *MessageStore
	pins   *PinBoard
	unread *UnreadTracker

	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once

	// snapshots served to readers outside the loop
	mu          sync.RWMutex
	msgSnapshot []models.Message
	pinSnapshot []models.PinnedEntry
	unreadCount int
}

// NewSession creates a session for one room. The caller must start
// the event loop with `go session.Run()` and stop it with Close when
// the room is left.
func NewSession(cfg Config) *Session {
	s := &Session{
		roomID:      cfg.RoomID,
		identity:    cfg.Identity,
		broadcaster: cfg.Broadcaster,
		persistence: cfg.Persistence,
		callbacks:   cfg.Callbacks,
		store:       NewMessageStore(NewMatcher(cfg.DedupWindow, cfg.PromoteWindow)),
		pins:        NewPinBoard(),
		tasks:       make(chan func(), 256),
		done:        make(chan struct{}),
	}
	s.unread = NewUnreadTracker(func(count int) {
		s.mu.Lock()
		s.unreadCount = count
		s.mu.Unlock()
		if s.callbacks.OnUnreadChanged != nil {
			s.callbacks.OnUnreadChanged(count)
		}
	})
	return s
}

// Run executes the session's event loop until Close is called.
// This should be called in a goroutine: go session.Run()
func (s *Session) Run() {
	for {
		select {
		case task := <-s.tasks:
			task()
		case <-s.done:
			return
		}
	}
}

// Close stops the event loop and releases the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// post schedules work on the event loop.
func (s *Session) post(task func()) {
	select {
	case s.tasks <- task:
	case <-s.done:
	}
}

// Hydrate loads persisted history and the authoritative pinned set
// into the session. Called once on room entry, before live traffic.
func (s *Session) Hydrate(ctx context.Context) error {
	if s.persistence == nil || s.roomID == "" {
		return nil
	}
	messages, err := s.persistence.ListMessages(ctx, s.roomID)
	if err != nil {
		return fmt.Errorf("failed to load message history: %w", err)
	}
	pinned, err := s.persistence.ListPinned(ctx, s.roomID)
	if err != nil {
		return fmt.Errorf("failed to load pinned messages: %w", err)
	}
	s.post(func() {
		for _, msg := range messages {
			s.store.Append(msg)
		}
		s.pins.Replace(pinned)
		for _, e := range s.pins.Entries() {
			s.store.SetPinned(e.ID, true)
		}
		s.publishMessages()
		s.publishPinned()
	})
	return nil
}

// LoadPins replaces the pinned set with the server-side snapshot.
// This is the reconciliation point that heals any pin broadcast
// missed while the client was absent; call it again on reconnect.
func (s *Session) LoadPins(ctx context.Context) error {
	if s.persistence == nil || s.roomID == "" {
		return nil
	}
	pinned, err := s.persistence.ListPinned(ctx, s.roomID)
	if err != nil {
		return fmt.Errorf("failed to load pinned messages: %w", err)
	}
	s.post(func() {
		s.pins.Replace(pinned)
		s.publishPinned()
	})
	return nil
}

// Send appends a message optimistically, broadcasts it to the room
// and persists it in the background. On persistence success the
// message's provisional id is promoted to the durable one and a
// promote event is broadcast so peers can follow.
//
// Persistence failure is deliberately soft: the message stays visible
// with its provisional id, it just can never be pinned.
func (s *Session) Send(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrTextRequired
	}
	if s.roomID == "" {
		return ErrNoRoom
	}

	msg := models.Message{
		ID:         models.NewProvisionalID(),
		RoomID:     s.roomID,
		SenderID:   s.identity.ParticipantID,
		SenderName: s.identity.SenderName(),
		Text:       text,
		Timestamp:  time.Now().UTC(),
	}

	s.post(func() {
		// A second identical send inside the dedup window (double
		// click, impatient retry) folds onto the first record and
		// must not broadcast or persist again
		if !s.store.Append(msg) {
			return
		}
		s.publishMessages()
		s.broadcaster.Emit(Event{
			Kind:       EventMessage,
			ID:         msg.ID,
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			Text:       msg.Text,
			Timestamp:  msg.Timestamp,
		})
		s.persistInBackground(msg)
	})
	return nil
}

// persistInBackground stores a provisional message and, on success,
// promotes the local record and broadcasts the promotion. Must be
// called from the event loop.
func (s *Session) persistInBackground(msg models.Message) {
	if s.persistence == nil {
		return
	}
	go func() {
		durableID, err := s.persistence.CreateMessage(context.Background(), msg.RoomID, msg.SenderID, msg.SenderName, msg.Text)
		if err != nil {
			log.Printf("[Chat] Failed to persist message %s: %v", msg.ID, err)
			return
		}
		s.post(func() {
			if !s.store.PromoteID(msg.ID, durableID) {
				return
			}
			s.publishMessages()
			s.broadcaster.Emit(Event{
				Kind:       EventPromote,
				ID:         msg.ID,
				SenderID:   msg.SenderID,
				SenderName: msg.SenderName,
				Text:       msg.Text,
				Timestamp:  msg.Timestamp,
				DurableID:  durableID,
			})
		})
	}()
}

// Pin pins a durable message. Only hosts and moderators may initiate
// pins; everyone else's request is a silent no-op, as is pinning a
// provisional or locally unknown message.
func (s *Session) Pin(id string) {
	s.post(func() {
		if !s.identity.Role.CanPin() {
			log.Printf("[Pin] Role %q may not pin messages", s.identity.Role)
			return
		}
		if !models.IsDurableID(id) {
			log.Printf("[Pin] Refusing to pin non-durable id %s", id)
			return
		}
		msg, ok := s.store.Get(id)
		if !ok {
			log.Printf("[Pin] Message %s not found locally", id)
			return
		}
		if s.pins.Has(id) {
			return
		}

		entry := models.PinnedEntry{
			ID:         id,
			Text:       msg.Text,
			SenderName: msg.SenderName,
			PinnedAt:   time.Now().UTC(),
		}
		s.store.SetPinned(id, true)
		s.pins.Add(entry)
		s.publishMessages()
		s.publishPinned()

		// Denormalized payload so peers who never saw the message
		// can still show the pin
		s.broadcaster.Emit(Event{
			Kind:       EventPin,
			ID:         id,
			Text:       entry.Text,
			SenderName: entry.SenderName,
			Pinned:     true,
			PinnedAt:   entry.PinnedAt,
		})
		s.persistPin(id, true)
	})
}

// Unpin removes a pin, symmetric to Pin.
func (s *Session) Unpin(id string) {
	s.post(func() {
		if !s.identity.Role.CanPin() {
			log.Printf("[Pin] Role %q may not unpin messages", s.identity.Role)
			return
		}
		if !s.pins.Has(id) {
			return
		}

		s.store.SetPinned(id, false)
		s.pins.Remove(id)
		s.publishMessages()
		s.publishPinned()

		s.broadcaster.Emit(Event{
			Kind:   EventPin,
			ID:     id,
			Pinned: false,
		})
		s.persistPin(id, false)
	})
}

// persistPin stores a pin state change, best-effort. Errors are
// logged only; the optimistic local state is kept until the next
// LoadPins heals any divergence.
func (s *Session) persistPin(id string, pinned bool) {
	if s.persistence == nil {
		return
	}
	go func() {
		var err error
		if pinned {
			err = s.persistence.PinMessage(context.Background(), s.roomID, id)
		} else {
			err = s.persistence.UnpinMessage(context.Background(), s.roomID, id)
		}
		if err != nil {
			log.Printf("[Pin] Failed to persist pin state for %s: %v", id, err)
		}
	}()
}

// Clear empties the local log and pinned set, tells every peer to do
// the same and asks the persistence service to drop the history.
// Host only.
func (s *Session) Clear() {
	s.post(func() {
		if !s.identity.Role.CanClear() {
			log.Printf("[Chat] Role %q may not clear the room", s.identity.Role)
			return
		}
		s.clearLocal()
		s.broadcaster.Emit(Event{Kind: EventClear})
		if s.persistence == nil {
			return
		}
		roomID := s.roomID
		go func() {
			if err := s.persistence.ClearMessages(context.Background(), roomID); err != nil {
				log.Printf("[Chat] Failed to clear persisted messages: %v", err)
			}
		}()
	})
}

// SetVisible tells the session whether the chat surface is currently
// shown to the local user. Opening the surface resets the unread
// counter and records the newest message as seen.
func (s *Session) SetVisible(visible bool) {
	s.post(func() {
		var lastID string
		if visible {
			if msgs := s.store.messages; len(msgs) > 0 {
				lastID = msgs[len(msgs)-1].ID
			}
		}
		s.unread.SetVisible(visible, lastID)
	})
}

// HandleEvent consumes one raw frame from the broadcast channel.
// Malformed frames are dropped and logged, never applied partially.
func (s *Session) HandleEvent(raw []byte) {
	event, err := ParseEvent(raw)
	if err != nil {
		log.Printf("[Chat] Dropping malformed event: %v", err)
		return
	}
	s.post(func() {
		s.apply(event)
	})
}

// apply folds one broadcast event onto local state. Must run on the
// event loop.
func (s *Session) apply(e Event) {
	switch e.Kind {
	case EventClear:
		s.clearLocal()

	case EventPromote:
		if s.store.Promote(e.candidate(), e.DurableID) {
			s.publishMessages()
		}

	case EventPin:
		s.applyPin(e)

	case EventMessage:
		s.applyMessage(e)
	}
}

// applyMessage handles an ordinary message event: either it matches
// an existing record (sender echo or retransmit) and is ignored, or
// it is appended with a validated durable id or a fresh provisional
// one.
func (s *Session) applyMessage(e Event) {
	id := e.ID
	if !models.IsDurableID(id) {
		// A peer's provisional id means nothing locally
		id = models.NewProvisionalID()
	}
	msg := models.Message{
		ID:         id,
		RoomID:     s.roomID,
		SenderID:   e.SenderID,
		SenderName: e.SenderName,
		Text:       e.Text,
		Timestamp:  e.Timestamp,
	}
	if !s.store.Append(msg) {
		return
	}
	s.unread.NoteAppend()
	s.publishMessages()

	// If the sender's own promotion broadcast gets lost, this client's
	// copy still earns a durable id
	if !models.IsDurableID(msg.ID) {
		s.persistInBackground(msg)
	}
}

// applyPin merges a pin state change, idempotently and regardless of
// the local role: only two roles may initiate pins, but every client
// must converge to the same pinned view.
func (s *Session) applyPin(e Event) {
	if e.Pinned {
		s.store.SetPinned(e.ID, true)
		entry := models.PinnedEntry{
			ID:         e.ID,
			Text:       e.Text,
			SenderName: e.SenderName,
			PinnedAt:   e.PinnedAt,
		}
		if s.pins.Add(entry) {
			s.publishMessages()
			s.publishPinned()
		}
		return
	}
	s.store.SetPinned(e.ID, false)
	if s.pins.Remove(e.ID) {
		s.publishMessages()
		s.publishPinned()
	}
}

// clearLocal empties all room chat state.
func (s *Session) clearLocal() {
	s.store.Clear()
	s.pins.Clear()
	s.unread.Reset()
	s.publishMessages()
	s.publishPinned()
}

// publishMessages refreshes the reader snapshot and notifies the UI.
// Must run on the event loop.
func (s *Session) publishMessages() {
	snapshot := s.store.Messages()
	s.mu.Lock()
	s.msgSnapshot = snapshot
	s.mu.Unlock()
	if s.callbacks.OnMessagesChanged != nil {
		s.callbacks.OnMessagesChanged(snapshot)
	}
}

// publishPinned refreshes the pinned snapshot and notifies the UI.
// Must run on the event loop.
func (s *Session) publishPinned() {
	snapshot := s.pins.Entries()
	s.mu.Lock()
	s.pinSnapshot = snapshot
	s.mu.Unlock()
	if s.callbacks.OnPinnedChanged != nil {
		s.callbacks.OnPinnedChanged(snapshot)
	}
}

// Messages returns the current ordered message log.
func (s *Session) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.msgSnapshot))
	copy(out, s.msgSnapshot)
	return out
}

// Pinned returns the current pinned set.
func (s *Session) Pinned() []models.PinnedEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PinnedEntry, len(s.pinSnapshot))
	copy(out, s.pinSnapshot)
	return out
}

// UnreadCount returns the current unread counter value.
func (s *Session) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unreadCount
}
