package chat

import (
	"testing"
	"time"

	"github.com/lmoretti/atrium/backend/internal/models"
)

func pinEntry(id, text string) models.PinnedEntry {
	return models.PinnedEntry{ID: id, Text: text, SenderName: "A (Host)", PinnedAt: baseTime}
}

func TestPinBoardAddIdempotent(t *testing.T) {
	b := NewPinBoard()
	id := "0123456789abcdef0123456789abcdef"

	if !b.Add(pinEntry(id, "hello")) {
		t.Fatal("first add must change the board")
	}
	if b.Add(pinEntry(id, "hello")) {
		t.Fatal("second add of the same id must be a no-op")
	}
	if b.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", b.Len())
	}
}

func TestPinBoardRejectsProvisionalIDs(t *testing.T) {
	b := NewPinBoard()
	if b.Add(pinEntry(models.NewProvisionalID(), "hello")) {
		t.Fatal("a provisional id must never enter the pinned set")
	}
}

func TestPinBoardRemove(t *testing.T) {
	b := NewPinBoard()
	first := "0123456789abcdef0123456789abcdef"
	second := "ffffffffffffffffffffffffffffffff"
	b.Add(pinEntry(first, "one"))
	b.Add(pinEntry(second, "two"))

	if !b.Remove(first) {
		t.Fatal("remove of a pinned id must succeed")
	}
	if b.Remove(first) {
		t.Fatal("second remove must be a no-op")
	}
	if !b.Has(second) {
		t.Fatal("remaining entry lost after remove")
	}
	// Index must stay consistent after the shift
	if !b.Remove(second) {
		t.Fatal("remove of re-indexed entry must succeed")
	}
	if b.Len() != 0 {
		t.Fatalf("expected empty board, got %d entries", b.Len())
	}
}

func TestPinBoardReplace(t *testing.T) {
	b := NewPinBoard()
	b.Add(pinEntry("0123456789abcdef0123456789abcdef", "stale"))

	snapshot := []models.PinnedEntry{
		pinEntry("ffffffffffffffffffffffffffffffff", "fresh"),
		{ID: models.NewProvisionalID(), Text: "bogus", PinnedAt: time.Now()},
	}
	b.Replace(snapshot)

	if b.Len() != 1 {
		t.Fatalf("expected 1 entry after replace, got %d", b.Len())
	}
	if b.Has("0123456789abcdef0123456789abcdef") {
		t.Fatal("stale entry survived replace")
	}
	if !b.Has("ffffffffffffffffffffffffffffffff") {
		t.Fatal("snapshot entry missing after replace")
	}
}
