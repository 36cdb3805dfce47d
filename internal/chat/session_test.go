package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lmoretti/atrium/backend/internal/models"
)

// fakeBroadcaster records emitted events for inspection.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []Event
}

func (b *fakeBroadcaster) Emit(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *fakeBroadcaster) byKind(kind EventKind) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, e := range b.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// fakePersistence simulates the REST backend with controllable
// failures and deterministic durable ids.
type fakePersistence struct {
	mu         sync.Mutex
	failCreate bool
	nextID     int
	pinOps     map[string]bool
	clears     int
	history    []models.Message
	pinned     []models.PinnedEntry
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{pinOps: make(map[string]bool)}
}

func (p *fakePersistence) CreateMessage(ctx context.Context, roomID, senderID, senderName, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCreate {
		return "", fmt.Errorf("simulated network error")
	}
	p.nextID++
	return fmt.Sprintf("%032d", p.nextID), nil
}

func (p *fakePersistence) PinMessage(ctx context.Context, roomID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pinOps[messageID] = true
	return nil
}

func (p *fakePersistence) UnpinMessage(ctx context.Context, roomID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pinOps[messageID] = false
	return nil
}

func (p *fakePersistence) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Message(nil), p.history...), nil
}

func (p *fakePersistence) ListPinned(ctx context.Context, roomID string) ([]models.PinnedEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.PinnedEntry(nil), p.pinned...), nil
}

func (p *fakePersistence) ClearMessages(ctx context.Context, roomID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
	return nil
}

func (p *fakePersistence) pinOp(id string) (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.pinOps[id]
	return v, ok
}

func newTestSession(t *testing.T, role models.Role, persistence Persistence) (*Session, *fakeBroadcaster) {
	t.Helper()
	b := &fakeBroadcaster{}
	s := NewSession(Config{
		RoomID: "room-1",
		Identity: Identity{
			ParticipantID: "user-1",
			Name:          "Ana Liu",
			Role:          role,
		},
		Broadcaster: b,
		Persistence: persistence,
	})
	go s.Run()
	t.Cleanup(s.Close)
	return s, b
}

// flush waits until every task posted before it has run.
func flush(s *Session) {
	done := make(chan struct{})
	s.post(func() { close(done) })
	<-done
}

// eventually polls for an asynchronous condition.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func rawEvent(t *testing.T, e Event) []byte {
	t.Helper()
	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return raw
}

func peerMessage(text string) Event {
	return Event{
		Kind:       EventMessage,
		ID:         models.NewProvisionalID(),
		SenderID:   "peer-1",
		SenderName: "Bea Ortiz (Attendee)",
		Text:       text,
		Timestamp:  time.Now().UTC(),
	}
}

func TestSendAppendsOptimisticallyAndPromotes(t *testing.T) {
	p := newFakePersistence()
	s, b := newTestSession(t, models.RoleAttendee, p)

	if err := s.Send("hello"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	flush(s)

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if models.IsDurableID(msgs[0].ID) {
		t.Fatal("message must start with a provisional id")
	}
	if got := b.byKind(EventMessage); len(got) != 1 || got[0].Text != "hello" {
		t.Fatalf("expected one message broadcast, got %+v", got)
	}

	// Background persistence promotes the id and broadcasts it
	eventually(t, func() bool {
		m := s.Messages()
		return len(m) == 1 && models.IsDurableID(m[0].ID)
	}, "message was never promoted to a durable id")

	promotes := b.byKind(EventPromote)
	if len(promotes) != 1 {
		t.Fatalf("expected one promote broadcast, got %d", len(promotes))
	}
	if promotes[0].Text != "hello" || !models.IsDurableID(promotes[0].DurableID) {
		t.Fatalf("promote event missing original fields: %+v", promotes[0])
	}
}

func TestSendRejectsEmptyText(t *testing.T) {
	s, b := newTestSession(t, models.RoleAttendee, nil)

	if err := s.Send("   "); err != ErrTextRequired {
		t.Fatalf("expected ErrTextRequired, got %v", err)
	}
	flush(s)
	if len(s.Messages()) != 0 || len(b.byKind(EventMessage)) != 0 {
		t.Fatal("rejected send must not mutate or broadcast")
	}
}

func TestPersistFailureLeavesMessageProvisionalAndUnpinnable(t *testing.T) {
	p := newFakePersistence()
	p.failCreate = true
	s, b := newTestSession(t, models.RoleHost, p)

	if err := s.Send("x"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	flush(s)

	// Give the failing persistence call time to complete
	time.Sleep(50 * time.Millisecond)
	flush(s)

	msgs := s.Messages()
	if len(msgs) != 1 || models.IsDurableID(msgs[0].ID) {
		t.Fatalf("message must stay visible with a provisional id: %+v", msgs)
	}

	// The provisional message can never be pinned, even by the host
	s.Pin(msgs[0].ID)
	flush(s)
	if len(s.Pinned()) != 0 {
		t.Fatal("provisional message must not be pinnable")
	}
	if len(b.byKind(EventPin)) != 0 {
		t.Fatal("rejected pin must not broadcast")
	}
}

func TestOwnEchoDoesNotDuplicate(t *testing.T) {
	s, b := newTestSession(t, models.RoleAttendee, nil)

	if err := s.Send("hello"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	flush(s)

	// The transport may echo our own emission back to us
	echo := b.byKind(EventMessage)[0]
	s.HandleEvent(rawEvent(t, echo))
	flush(s)

	if got := len(s.Messages()); got != 1 {
		t.Fatalf("echo created a duplicate: %d records", got)
	}
}

func TestPeerMessageThenPromotion(t *testing.T) {
	s, _ := newTestSession(t, models.RoleAttendee, nil)

	original := peerMessage("hello")
	s.HandleEvent(rawEvent(t, original))
	flush(s)

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if models.IsDurableID(msgs[0].ID) {
		t.Fatal("peer message without durable id must get a local provisional id")
	}
	localID := msgs[0].ID
	if localID == original.ID {
		t.Fatal("a peer's provisional id must not be adopted locally")
	}

	// The sender's promotion broadcast arrives later
	durable := "0123456789abcdef0123456789abcdef"
	s.HandleEvent(rawEvent(t, Event{
		Kind:       EventPromote,
		ID:         original.ID,
		SenderID:   original.SenderID,
		SenderName: original.SenderName,
		Text:       original.Text,
		Timestamp:  original.Timestamp,
		DurableID:  durable,
	}))
	flush(s)

	msgs = s.Messages()
	if msgs[0].ID != durable {
		t.Fatalf("expected promotion to %s, got %s", durable, msgs[0].ID)
	}

	// A duplicated promote event must not promote twice
	s.HandleEvent(rawEvent(t, Event{
		Kind:       EventPromote,
		SenderName: original.SenderName,
		Text:       original.Text,
		Timestamp:  original.Timestamp,
		DurableID:  "ffffffffffffffffffffffffffffffff",
	}))
	flush(s)
	if got := s.Messages()[0].ID; got != durable {
		t.Fatalf("durable id was rewritten to %s", got)
	}
}

func TestDoubleSendWithinWindowYieldsOneRecord(t *testing.T) {
	s, b := newTestSession(t, models.RoleAttendee, nil)

	if err := s.Send("hello"); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if err := s.Send("hello"); err != nil {
		t.Fatalf("second send failed: %v", err)
	}
	flush(s)

	if got := len(s.Messages()); got != 1 {
		t.Fatalf("expected exactly 1 record, got %d", got)
	}
	if got := len(b.byKind(EventMessage)); got != 1 {
		t.Fatalf("duplicate send must not broadcast again, got %d events", got)
	}
}

func TestRetransmitDoesNotDuplicate(t *testing.T) {
	s, _ := newTestSession(t, models.RoleAttendee, nil)

	e := peerMessage("hello")
	s.HandleEvent(rawEvent(t, e))
	s.HandleEvent(rawEvent(t, e))
	flush(s)

	if got := len(s.Messages()); got != 1 {
		t.Fatalf("retransmit created a duplicate: %d records", got)
	}
}

func TestPinFlow(t *testing.T) {
	p := newFakePersistence()
	s, b := newTestSession(t, models.RoleModerator, p)

	if err := s.Send("pin me"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	eventually(t, func() bool {
		m := s.Messages()
		return len(m) == 1 && models.IsDurableID(m[0].ID)
	}, "message was never promoted")

	id := s.Messages()[0].ID
	s.Pin(id)
	flush(s)

	pinned := s.Pinned()
	if len(pinned) != 1 || pinned[0].ID != id || pinned[0].Text != "pin me" {
		t.Fatalf("unexpected pinned set: %+v", pinned)
	}
	if !s.Messages()[0].Pinned {
		t.Fatal("message pin flag not set")
	}

	events := b.byKind(EventPin)
	if len(events) != 1 || !events[0].Pinned || events[0].Text != "pin me" {
		t.Fatalf("pin broadcast must carry the denormalized payload: %+v", events)
	}

	eventually(t, func() bool {
		v, ok := p.pinOp(id)
		return ok && v
	}, "pin was never persisted")

	// Unpin is symmetric
	s.Unpin(id)
	flush(s)
	if len(s.Pinned()) != 0 || s.Messages()[0].Pinned {
		t.Fatal("unpin did not revert local state")
	}
	events = b.byKind(EventPin)
	if len(events) != 2 || events[1].Pinned {
		t.Fatalf("expected an unpin broadcast, got %+v", events)
	}
}

func TestPinUnauthorizedIsSilentNoOp(t *testing.T) {
	s, b := newTestSession(t, models.RoleAttendee, nil)

	durable := "0123456789abcdef0123456789abcdef"
	s.HandleEvent(rawEvent(t, Event{
		Kind:       EventMessage,
		ID:         durable,
		SenderID:   "peer-1",
		SenderName: "Bea Ortiz (Attendee)",
		Text:       "hello",
		Timestamp:  time.Now().UTC(),
	}))
	flush(s)

	s.Pin(durable)
	flush(s)

	if len(s.Pinned()) != 0 {
		t.Fatal("unauthorized pin must not mutate the pinned set")
	}
	if s.Messages()[0].Pinned {
		t.Fatal("unauthorized pin must not flag the message")
	}
	if len(b.byKind(EventPin)) != 0 {
		t.Fatal("unauthorized pin must not broadcast")
	}
}

func TestApplyPinIsIdempotentAndRoleIndependent(t *testing.T) {
	// A plain attendee still applies pin broadcasts
	s, _ := newTestSession(t, models.RoleAttendee, nil)

	durable := "0123456789abcdef0123456789abcdef"
	pin := Event{
		Kind:       EventPin,
		ID:         durable,
		Text:       "hello",
		SenderName: "Ana Liu (Host)",
		Pinned:     true,
		PinnedAt:   time.Now().UTC(),
	}

	// The full message was never received locally: the pinned set
	// must still gain the denormalized entry
	s.HandleEvent(rawEvent(t, pin))
	s.HandleEvent(rawEvent(t, pin))
	flush(s)

	pinned := s.Pinned()
	if len(pinned) != 1 {
		t.Fatalf("expected exactly 1 pinned entry, got %d", len(pinned))
	}
	if pinned[0].Text != "hello" {
		t.Fatalf("denormalized payload lost: %+v", pinned[0])
	}
	if len(s.Messages()) != 0 {
		t.Fatal("a pin event must not invent a message record")
	}

	// Unpin event removes it
	s.HandleEvent(rawEvent(t, Event{Kind: EventPin, ID: durable, Pinned: false}))
	flush(s)
	if len(s.Pinned()) != 0 {
		t.Fatal("unpin event not applied")
	}
}

func TestClearByHostPropagates(t *testing.T) {
	p := newFakePersistence()
	s, b := newTestSession(t, models.RoleHost, p)

	s.HandleEvent(rawEvent(t, peerMessage("one")))
	s.HandleEvent(rawEvent(t, Event{
		Kind: EventPin, ID: "0123456789abcdef0123456789abcdef",
		Text: "one", SenderName: "Bea Ortiz (Attendee)", Pinned: true, PinnedAt: time.Now().UTC(),
	}))
	flush(s)

	s.Clear()
	flush(s)

	if len(s.Messages()) != 0 || len(s.Pinned()) != 0 {
		t.Fatal("clear must empty the log and the pinned set")
	}
	if len(b.byKind(EventClear)) != 1 {
		t.Fatal("clear must broadcast")
	}
	eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.clears == 1
	}, "clear was never persisted")
}

func TestClearByAttendeeIsRejected(t *testing.T) {
	s, b := newTestSession(t, models.RoleAttendee, nil)

	s.HandleEvent(rawEvent(t, peerMessage("one")))
	flush(s)

	s.Clear()
	flush(s)

	if len(s.Messages()) != 1 {
		t.Fatal("unauthorized clear must not mutate")
	}
	if len(b.byKind(EventClear)) != 0 {
		t.Fatal("unauthorized clear must not broadcast")
	}
}

func TestClearEventFromPeer(t *testing.T) {
	s, _ := newTestSession(t, models.RoleAttendee, nil)

	s.HandleEvent(rawEvent(t, peerMessage("one")))
	s.HandleEvent(rawEvent(t, peerMessage("two")))
	flush(s)

	s.HandleEvent(rawEvent(t, Event{Kind: EventClear}))
	flush(s)

	if len(s.Messages()) != 0 {
		t.Fatal("clear broadcast must empty the local log")
	}
}

func TestUnreadIsEdgeTriggeredOnInsertedAppends(t *testing.T) {
	s, _ := newTestSession(t, models.RoleAttendee, nil)

	// Chat surface starts hidden; three distinct messages and one
	// duplicate arrive
	first := peerMessage("one")
	s.HandleEvent(rawEvent(t, first))
	s.HandleEvent(rawEvent(t, peerMessage("two")))
	s.HandleEvent(rawEvent(t, peerMessage("three")))
	s.HandleEvent(rawEvent(t, first)) // duplicate: no-op append
	flush(s)

	if got := s.UnreadCount(); got != 3 {
		t.Fatalf("expected 3 unread, got %d", got)
	}

	s.SetVisible(true)
	flush(s)
	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("opening the surface must reset unread, got %d", got)
	}

	s.SetVisible(false)
	s.HandleEvent(rawEvent(t, peerMessage("four")))
	flush(s)
	if got := s.UnreadCount(); got != 1 {
		t.Fatalf("expected 1 unread after hiding again, got %d", got)
	}
}

func TestHydrateSeedsHistoryAndPins(t *testing.T) {
	p := newFakePersistence()
	durable := "0123456789abcdef0123456789abcdef"
	p.history = []models.Message{
		{ID: durable, RoomID: "room-1", SenderID: "peer-1", SenderName: "Bea Ortiz (Attendee)", Text: "hello", Timestamp: time.Now().UTC().Add(-time.Hour)},
	}
	p.pinned = []models.PinnedEntry{
		{ID: durable, Text: "hello", SenderName: "Bea Ortiz (Attendee)", PinnedAt: time.Now().UTC()},
	}

	s, _ := newTestSession(t, models.RoleAttendee, p)
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate failed: %v", err)
	}
	flush(s)

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].ID != durable {
		t.Fatalf("history not seeded: %+v", msgs)
	}
	if !msgs[0].Pinned {
		t.Fatal("pin flags not applied to hydrated history")
	}
	if len(s.Pinned()) != 1 {
		t.Fatal("pinned set not seeded")
	}
	if got := s.UnreadCount(); got != 0 {
		t.Fatalf("hydration must not count as unread, got %d", got)
	}
}

func TestLoadPinsReplacesBroadcastDerivedState(t *testing.T) {
	p := newFakePersistence()
	server := "ffffffffffffffffffffffffffffffff"
	p.pinned = []models.PinnedEntry{
		{ID: server, Text: "authoritative", SenderName: "Ana Liu (Host)", PinnedAt: time.Now().UTC()},
	}
	s, _ := newTestSession(t, models.RoleAttendee, p)

	// Diverged local state from a broadcast the server never saw
	s.HandleEvent(rawEvent(t, Event{
		Kind: EventPin, ID: "0123456789abcdef0123456789abcdef",
		Text: "stale", SenderName: "Ana Liu (Host)", Pinned: true, PinnedAt: time.Now().UTC(),
	}))
	flush(s)

	if err := s.LoadPins(context.Background()); err != nil {
		t.Fatalf("load pins failed: %v", err)
	}
	flush(s)

	pinned := s.Pinned()
	if len(pinned) != 1 || pinned[0].ID != server {
		t.Fatalf("pinned set must equal the server snapshot, got %+v", pinned)
	}
}

func TestMalformedEventsAreDropped(t *testing.T) {
	s, _ := newTestSession(t, models.RoleAttendee, nil)

	malformed := [][]byte{
		[]byte("not json"),
		rawEvent(t, Event{Kind: "bogus"}),
		[]byte(`{"kind":"message","text":""}`),
		[]byte(`{"kind":"pin","id":"not-durable","pinned":true}`),
		[]byte(`{"kind":"promote","durable_id":"also-not-durable"}`),
	}
	for _, raw := range malformed {
		s.HandleEvent(raw)
	}
	flush(s)

	if len(s.Messages()) != 0 || len(s.Pinned()) != 0 || s.UnreadCount() != 0 {
		t.Fatal("malformed events must never mutate state")
	}
}

func TestReceiverContributesDurableCopyWhenPromotionIsLost(t *testing.T) {
	p := newFakePersistence()
	s, b := newTestSession(t, models.RoleAttendee, p)

	// A peer message arrives but its promotion broadcast never will
	s.HandleEvent(rawEvent(t, peerMessage("orphan")))
	flush(s)

	// The receiving client persists the copy itself and promotes it
	eventually(t, func() bool {
		m := s.Messages()
		return len(m) == 1 && models.IsDurableID(m[0].ID)
	}, "receiver never contributed a durable copy")

	if len(b.byKind(EventPromote)) != 1 {
		t.Fatal("receiver-side promotion must be broadcast")
	}
}
