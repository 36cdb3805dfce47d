package chat

import (
	"time"

	"github.com/lmoretti/atrium/backend/internal/models"
)

// The broadcast fabric gives us no shared clock and no sequence
// numbers, so content + sender + time proximity is the only usable
// correlation key across the provisional/durable identifier boundary.

const (
	// DefaultDedupWindow is how close in time a broadcast echo must be
	// to an existing record to be treated as a re-delivery of the same
	// send at append time.
	DefaultDedupWindow = 2000 * time.Millisecond

	// DefaultPromoteWindow is the wider window used when matching an
	// id-promotion event to its pending local record. Persistence
	// round-trips can be slower than broadcast latency, hence the
	// larger value. The two windows are independent tuning knobs and
	// must not be merged.
	DefaultPromoteWindow = 5000 * time.Millisecond
)

// Candidate is the incoming side of a reconciliation match: the fields
// a broadcast event carries about the message it refers to.
type Candidate struct {
	// ID is the event's message id, if any. Durable IDs participate
	// in exact matching; provisional IDs from other clients are
	// meaningless locally and are ignored.
	ID         string
	Text       string
	SenderName string
	Timestamp  time.Time
}

// Matcher folds incoming or echoed broadcast events onto existing
// local records instead of creating duplicates, and finds the pending
// record a later promotion event refers to.
type Matcher struct {
	dedupWindow   time.Duration
	promoteWindow time.Duration
}

// NewMatcher creates a Matcher with the given windows.
// Non-positive values fall back to the defaults.
func NewMatcher(dedupWindow, promoteWindow time.Duration) *Matcher {
	if dedupWindow <= 0 {
		dedupWindow = DefaultDedupWindow
	}
	if promoteWindow <= 0 {
		promoteWindow = DefaultPromoteWindow
	}
	return &Matcher{dedupWindow: dedupWindow, promoteWindow: promoteWindow}
}

// MatchAppend finds the record a freshly received message event
// duplicates, using the tight append-time window. Returns the index
// of the match, or false if the candidate is genuinely new.
func (m *Matcher) MatchAppend(messages []models.Message, c Candidate) (int, bool) {
	return m.match(messages, c, m.dedupWindow)
}

// MatchPromote finds the still-provisional record a promotion event
// refers to, using the wider promotion window. Records that already
// hold a durable id are never matched, so a message can be promoted
// at most once.
func (m *Matcher) MatchPromote(messages []models.Message, c Candidate) (int, bool) {
	return m.matchProvisional(messages, c, m.promoteWindow)
}

// match applies rule (1), exact durable-id equality, then falls back
// to rule (2), the content/sender/time-proximity scan.
func (m *Matcher) match(messages []models.Message, c Candidate, window time.Duration) (int, bool) {
	if models.IsDurableID(c.ID) {
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].ID == c.ID {
				return i, true
			}
		}
	}
	return m.matchProvisional(messages, c, window)
}

// matchProvisional scans most-recent-first for a provisional record
// with equal text and sender whose timestamp lies within the window.
func (m *Matcher) matchProvisional(messages []models.Message, c Candidate, window time.Duration) (int, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		rec := messages[i]
		if models.IsDurableID(rec.ID) {
			continue
		}
		if rec.Text != c.Text || rec.SenderName != c.SenderName {
			continue
		}
		if absDuration(rec.Timestamp.Sub(c.Timestamp)) < window {
			return i, true
		}
	}
	return 0, false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
