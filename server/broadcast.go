package server

import (
	"sync"

	"github.com/spoolworks/spool/pkg/capture"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind starts losing events instead of stalling the fanout.
const subscriberBuffer = 64

// Broadcaster fans persisted events out to in-process subscribers, keyed by
// stream name. Sends never block: when a subscriber's channel is full the
// event is dropped for that subscriber only.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[chan capture.Event]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[string]map[chan capture.Event]struct{}),
	}
}

// Subscribe registers a subscriber for a stream. The returned channel
// receives events until cancel is called; cancel is idempotent and leaves
// the channel open, so a drain loop ranging over it must select on its own
// done signal rather than channel close.
func (b *Broadcaster) Subscribe(stream string) (<-chan capture.Event, func()) {
	ch := make(chan capture.Event, subscriberBuffer)

	b.mu.Lock()
	set, ok := b.subs[stream]
	if !ok {
		set = make(map[chan capture.Event]struct{})
		b.subs[stream] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[stream]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, stream)
			}
		}
	}

	return ch, cancel
}

// Notify delivers an event to every subscriber of its stream. Implements
// worker.Notifier.
func (b *Broadcaster) Notify(ev capture.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[ev.Stream] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports the number of active subscribers for a stream.
func (b *Broadcaster) Subscribers(stream string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[stream])
}
