// Package eventlog persists scroll state transitions to a local SQLite
// database so the web surface can show recent history across restarts.
package eventlog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sweeney/scroll-sensor/internal/logic"
)

// Store records transitions in SQLite.
type Store struct {
	db *sql.DB
}

// Entry is a persisted transition.
type Entry struct {
	ID        string
	Timestamp time.Time
	Type      logic.EventType
	Pin       logic.PinState
	Top       logic.TopState
	Bottom    logic.BottomState
	Position  float64
}

// Open opens (creating if needed) the transition log at path.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	// A single connection serializes writes and keeps ":memory:" stores
	// from splitting across the pool.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transitions (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL,
			event TEXT NOT NULL,
			pin TEXT,
			top TEXT,
			bottom TEXT,
			position DOUBLE
		);
		CREATE INDEX IF NOT EXISTS idx_transitions_timestamp ON transitions(timestamp);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create transitions table: %w", err)
	}

	return &Store{db: db}, nil
}

// Record persists a single transition event.
func (s *Store) Record(event logic.Event) error {
	_, err := s.db.Exec(
		"INSERT INTO transitions (id, timestamp, event, pin, top, bottom, position) VALUES (?, ?, ?, ?, ?, ?, ?)",
		uuid.NewString(),
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		string(event.Type),
		string(event.Pin),
		string(event.Top),
		string(event.Bottom),
		event.Position,
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// Recent returns up to limit transitions, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		"SELECT id, timestamp, event, pin, top, bottom, position FROM transitions ORDER BY timestamp DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts, eventType, pin, top, bottom string
		if err := rows.Scan(&e.ID, &ts, &eventType, &pin, &top, &bottom, &e.Position); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse transition timestamp %q: %w", ts, err)
		}
		e.Timestamp = t
		e.Type = logic.EventType(eventType)
		e.Pin = logic.PinState(pin)
		e.Top = logic.TopState(top)
		e.Bottom = logic.BottomState(bottom)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
