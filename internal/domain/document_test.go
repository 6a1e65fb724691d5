package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewDocument_TrimsAndValidates(t *testing.T) {
	doc, err := NewDocument("  id-1  ", "  some text  ", "Title", map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() != "id-1" {
		t.Errorf("expected trimmed id, got %q", doc.ID())
	}
	if doc.Text() != "some text" {
		t.Errorf("expected trimmed text, got %q", doc.Text())
	}
	if doc.Title() != "Title" {
		t.Errorf("unexpected title %q", doc.Title())
	}
}

func TestNewDocument_RejectsEmpty(t *testing.T) {
	if _, err := NewDocument("", "text", "", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("empty id: expected ErrValidation, got %v", err)
	}
	if _, err := NewDocument("id", "   ", "", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("blank text: expected ErrValidation, got %v", err)
	}
}

func TestDocument_WithSourceAndTimestamp(t *testing.T) {
	doc, err := NewDocument("id", "text", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tagged := doc.WithSource("articles").WithTimestamp(ts)

	if tagged.Source() != "articles" {
		t.Errorf("unexpected source %q", tagged.Source())
	}
	if !tagged.Timestamp().Equal(ts) {
		t.Errorf("unexpected timestamp %v", tagged.Timestamp())
	}
	// Value-copy setters must not touch the original.
	if doc.Source() != "" || !doc.Timestamp().IsZero() {
		t.Error("original document was mutated")
	}
}

func TestCandidate_NativeScorePresence(t *testing.T) {
	doc, _ := NewDocument("id", "text", "", nil)

	with := NewCandidate(doc, 1.5, true, 0)
	if score, ok := with.NativeScore(); !ok || score != 1.5 {
		t.Errorf("expected (1.5, true), got (%v, %v)", score, ok)
	}

	without := NewCandidate(doc, 0, false, 3)
	if _, ok := without.NativeScore(); ok {
		t.Error("expected absent native score")
	}
	if without.Position() != 3 {
		t.Errorf("expected position 3, got %d", without.Position())
	}
}
