package eventstream

import (
	"time"

	"github.com/spoolworks/spool/pkg/capture"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeEventCaptured is emitted after an event is appended to a
	// capture stream.
	EventTypeEventCaptured = "spool.event.captured"
)

// CapturedEvent is a transport-neutral payload for an event appended to a
// capture stream.
type CapturedEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	Source        EventSource   `json:"source"`
	Event         capture.Event `json:"event"`
}

// EventSource identifies where the captured event originated.
type EventSource struct {
	Stream   string `json:"stream"`
	Producer string `json:"producer,omitempty"`
	Instance string `json:"instance,omitempty"`
}
