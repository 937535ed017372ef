package history

import (
	"context"
	"testing"

	"github.com/hazyhaar/preflight/dbopen"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	s := NewStore(db)
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	// WHAT: A recorded entry is readable back after Close drains the buffer.
	// WHY: The HTTP history endpoint reads what RecordAsync wrote.
	s := newTestStore(t)

	id := s.RecordAsync(&Entry{
		FileName:   "cbc.csv",
		Family:     "lab_csv",
		Score:      82,
		Verdict:    "accept",
		Messages:   []string{"first", "second"},
		DurationUs: 1200,
	})
	if id == "" {
		t.Fatal("expected a generated analysis id")
	}
	s.Close() // force flush

	entries, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.AnalysisID != id || e.Score != 82 || e.Verdict != "accept" {
		t.Errorf("entry = %+v, want id %s score 82 accept", e, id)
	}
	if len(e.Messages) != 2 || e.Messages[0] != "first" {
		t.Errorf("messages = %v, want [first second]", e.Messages)
	}
}

func TestRecent_LimitGuard(t *testing.T) {
	// WHAT: Non-positive and oversized limits fall back to the default.
	// WHY: The limit comes straight from a query parameter.
	s := newTestStore(t)
	if _, err := s.Recent(context.Background(), -1); err != nil {
		t.Fatalf("recent with bad limit: %v", err)
	}
	if _, err := s.Recent(context.Background(), 10_000); err != nil {
		t.Fatalf("recent with huge limit: %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	// WHAT: Closing twice does not panic.
	// WHY: Both signal handling and defer paths may close the store.
	s := newTestStore(t)
	s.Close()
	s.Close()
}
