package eventlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/sweeney/scroll-sensor/internal/logic"
)

func testEvent(at time.Time, typ logic.EventType, pos float64) logic.Event {
	return logic.Event{
		Timestamp: at,
		Type:      typ,
		Pin:       logic.StateUnpinned,
		Top:       logic.StateNotTop,
		Bottom:    logic.StateNotBottom,
		Position:  pos,
	}
}

func TestRecordAndRecent(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	events := []logic.Event{
		testEvent(base, logic.EventNotTop, 50),
		testEvent(base.Add(time.Second), logic.EventUnpinned, 50),
		testEvent(base.Add(2*time.Second), logic.EventPinned, 20),
	}
	for _, e := range events {
		if err := s.Record(e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// Newest first.
	wantTypes := []logic.EventType{logic.EventPinned, logic.EventUnpinned, logic.EventNotTop}
	for i, e := range entries {
		if e.Type != wantTypes[i] {
			t.Errorf("entry %d: got %s, want %s", i, e.Type, wantTypes[i])
		}
		if e.ID == "" {
			t.Errorf("entry %d: missing id", i)
		}
	}

	want := Entry{
		Timestamp: base.Add(2 * time.Second),
		Type:      logic.EventPinned,
		Pin:       logic.StateUnpinned,
		Top:       logic.StateNotTop,
		Bottom:    logic.StateNotBottom,
		Position:  20,
	}
	if diff := cmp.Diff(want, entries[0], cmpopts.IgnoreFields(Entry{}, "ID")); diff != "" {
		t.Errorf("newest entry mismatch (-want +got):\n%s", diff)
	}
}

func TestRecentLimit(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		if err := s.Record(testEvent(base.Add(time.Duration(i)*time.Second), logic.EventPinned, float64(i))); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	entries, err := s.Recent(4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[0].Position != 9 {
		t.Errorf("expected newest entry first, got position %v", entries[0].Position)
	}
}

func TestRecentEmpty(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transitions.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Record(testEvent(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), logic.EventBottom, 1500)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	entries, err := s2.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != logic.EventBottom {
		t.Errorf("expected persisted BOTTOM entry, got %v", entries)
	}
}
