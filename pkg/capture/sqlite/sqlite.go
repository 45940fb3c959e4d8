// Package sqlite provides a capture.Store backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spoolworks/spool/pkg/capture"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS events (
	seq      INTEGER PRIMARY KEY AUTOINCREMENT,
	stream   TEXT NOT NULL,
	event_id TEXT NOT NULL DEFAULT '',
	type     TEXT NOT NULL DEFAULT '',
	data     TEXT NOT NULL,
	retry_ms INTEGER NOT NULL DEFAULT 0,
	at_ns    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_stream_seq ON events(stream, seq);
`

// Store implements capture.Store using SQLite via the
// github.com/mattn/go-sqlite3 driver (registered as "sqlite3").
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath and migrates the
// schema. dbPath can be a file path or ":memory:".
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// AUTOINCREMENT assignment must be serialized anyway.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Append stores an event and returns its assigned sequence number.
func (s *Store) Append(ctx context.Context, ev capture.Event) (int64, error) {
	if ev.Stream == "" {
		return 0, capture.ErrEmptyStream
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (stream, event_id, type, data, retry_ms, at_ns)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Stream, ev.EventID, ev.Type, ev.Data, ev.Retry.Milliseconds(), at.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return res.LastInsertId()
}

// List returns up to limit events of a stream with Seq > afterSeq.
func (s *Store) List(ctx context.Context, stream string, afterSeq int64, limit int) ([]capture.Event, error) {
	if limit <= 0 {
		limit = capture.DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, stream, event_id, type, data, retry_ms, at_ns
		FROM events WHERE stream = ? AND seq > ? ORDER BY seq LIMIT ?`,
		stream, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Streams returns a summary of every stream, ordered by name.
func (s *Store) Streams(ctx context.Context) ([]capture.StreamInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stream, COUNT(*), MAX(seq), MAX(at_ns)
		FROM events GROUP BY stream ORDER BY stream`)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	defer rows.Close()

	var infos []capture.StreamInfo
	for rows.Next() {
		var info capture.StreamInfo
		var lastNs int64
		if err := rows.Scan(&info.Name, &info.Events, &info.LastSeq, &lastNs); err != nil {
			return nil, err
		}
		info.LastAt = time.Unix(0, lastNs).UTC()
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Search returns events whose data contains the query substring.
// SQLite's LIKE is case-insensitive for ASCII.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]capture.Event, error) {
	if limit <= 0 {
		limit = capture.DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, stream, event_id, type, data, retry_ms, at_ns
		FROM events WHERE data LIKE '%' || ? || '%' ORDER BY seq LIMIT ?`,
		query, limit)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanEvents(rows *sql.Rows) ([]capture.Event, error) {
	var events []capture.Event
	for rows.Next() {
		var ev capture.Event
		var retryMS, atNs int64
		if err := rows.Scan(&ev.Seq, &ev.Stream, &ev.EventID, &ev.Type, &ev.Data, &retryMS, &atNs); err != nil {
			return nil, err
		}
		ev.Retry = time.Duration(retryMS) * time.Millisecond
		ev.At = time.Unix(0, atNs).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}
