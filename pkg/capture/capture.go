// Package capture defines the storage contract for captured event streams.
// Events arrive in wire order and are assigned a global, monotonically
// increasing sequence number on append; replay and resume are expressed in
// terms of that sequence, never the original SSE id.
package capture

import (
	"context"
	"errors"
	"time"
)

// DefaultLimit caps List and Search result pages when the caller passes a
// non-positive limit.
const DefaultLimit = 100

// ErrEmptyStream is returned when an event names no stream.
var ErrEmptyStream = errors.New("stream name required")

// Event is a single captured SSE message.
type Event struct {
	// Seq is the store-assigned global sequence number.
	Seq int64 `json:"seq"`

	// Stream is the capture stream the event belongs to.
	Stream string `json:"stream"`

	// EventID is the SSE id field as received. May be empty.
	EventID string `json:"event_id,omitempty"`

	// Type is the SSE event field. May be empty.
	Type string `json:"type,omitempty"`

	// Data is the decoded data payload.
	Data string `json:"data"`

	// Retry is the reconnection interval announced alongside the event,
	// zero when the producer never sent one.
	Retry time.Duration `json:"retry_ns,omitempty"`

	// At is the capture timestamp.
	At time.Time `json:"at"`
}

// StreamInfo summarizes one capture stream.
type StreamInfo struct {
	Name    string    `json:"name"`
	Events  int64     `json:"events"`
	LastSeq int64     `json:"last_seq"`
	LastAt  time.Time `json:"last_at"`
}

// Store persists captured events.
type Store interface {
	// Append stores an event and returns its assigned sequence number.
	// The Seq field of the passed event is ignored.
	Append(ctx context.Context, ev Event) (int64, error)

	// List returns up to limit events of a stream with Seq > afterSeq,
	// in sequence order. afterSeq 0 lists from the beginning.
	List(ctx context.Context, stream string, afterSeq int64, limit int) ([]Event, error)

	// Streams returns a summary of every stream, ordered by name.
	Streams(ctx context.Context) ([]StreamInfo, error)

	// Search returns events whose data contains the query substring
	// (case-insensitive), across all streams, in sequence order.
	Search(ctx context.Context, query string, limit int) ([]Event, error)

	// Close releases the underlying resources.
	Close() error
}
