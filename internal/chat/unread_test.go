package chat

import "testing"

func TestUnreadCountsWhileHidden(t *testing.T) {
	var notified []int
	tr := NewUnreadTracker(func(count int) { notified = append(notified, count) })

	tr.NoteAppend()
	tr.NoteAppend()
	tr.NoteAppend()
	if tr.Count() != 3 {
		t.Fatalf("expected 3 unread, got %d", tr.Count())
	}
	if len(notified) != 3 || notified[2] != 3 {
		t.Fatalf("unexpected notifications: %v", notified)
	}
}

func TestUnreadResetOnVisible(t *testing.T) {
	tr := NewUnreadTracker(nil)
	tr.NoteAppend()
	tr.NoteAppend()

	tr.SetVisible(true, "last-id")
	if tr.Count() != 0 {
		t.Fatalf("expected reset counter, got %d", tr.Count())
	}
	if tr.LastSeenID() != "last-id" {
		t.Fatalf("last seen id not recorded: %q", tr.LastSeenID())
	}
}

func TestUnreadIgnoredWhileVisible(t *testing.T) {
	tr := NewUnreadTracker(nil)
	tr.SetVisible(true, "")

	tr.NoteAppend()
	if tr.Count() != 0 {
		t.Fatalf("visible appends must not count, got %d", tr.Count())
	}
}

func TestUnreadRepeatedVisibleIsStable(t *testing.T) {
	tr := NewUnreadTracker(nil)
	tr.SetVisible(true, "a")
	tr.SetVisible(true, "b")
	if tr.LastSeenID() != "a" {
		t.Fatalf("already-visible transition must not move the watermark: %q", tr.LastSeenID())
	}
}

func TestUnreadResumesAfterHide(t *testing.T) {
	tr := NewUnreadTracker(nil)
	tr.SetVisible(true, "")
	tr.SetVisible(false, "")

	tr.NoteAppend()
	if tr.Count() != 1 {
		t.Fatalf("expected 1 unread after hide, got %d", tr.Count())
	}
}
