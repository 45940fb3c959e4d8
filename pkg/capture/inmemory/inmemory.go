// Package inmemory provides a Store backed by a mutex-guarded slice.
// It backs the memory driver and tests.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/spoolworks/spool/pkg/capture"
)

// Store implements capture.Store in process memory.
type Store struct {
	mu sync.RWMutex

	// events holds every appended event in sequence order.
	events []capture.Event

	// nextSeq is the sequence number the next append receives.
	nextSeq int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{nextSeq: 1}
}

// Append stores an event and returns its assigned sequence number.
func (s *Store) Append(_ context.Context, ev capture.Event) (int64, error) {
	if ev.Stream == "" {
		return 0, capture.ErrEmptyStream
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev.Seq = s.nextSeq
	s.nextSeq++
	s.events = append(s.events, ev)
	return ev.Seq, nil
}

// List returns up to limit events of a stream with Seq > afterSeq.
func (s *Store) List(_ context.Context, stream string, afterSeq int64, limit int) ([]capture.Event, error) {
	if limit <= 0 {
		limit = capture.DefaultLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []capture.Event
	for _, ev := range s.events {
		if ev.Stream != stream || ev.Seq <= afterSeq {
			continue
		}
		result = append(result, ev)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// Streams returns a summary of every stream, ordered by name.
func (s *Store) Streams(_ context.Context) ([]capture.StreamInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byName := make(map[string]*capture.StreamInfo)
	var names []string
	for _, ev := range s.events {
		info, ok := byName[ev.Stream]
		if !ok {
			info = &capture.StreamInfo{Name: ev.Stream}
			byName[ev.Stream] = info
			names = append(names, ev.Stream)
		}
		info.Events++
		// events is in sequence order, so the last hit wins
		info.LastSeq = ev.Seq
		info.LastAt = ev.At
	}

	sort.Strings(names)
	result := make([]capture.StreamInfo, 0, len(names))
	for _, name := range names {
		result = append(result, *byName[name])
	}
	return result, nil
}

// Search returns events whose data contains the query substring.
func (s *Store) Search(_ context.Context, query string, limit int) ([]capture.Event, error) {
	if limit <= 0 {
		limit = capture.DefaultLimit
	}
	needle := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []capture.Event
	for _, ev := range s.events {
		if !strings.Contains(strings.ToLower(ev.Data), needle) {
			continue
		}
		result = append(result, ev)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// Count returns the number of stored events.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
