package eventstream

import "context"

// Publisher publishes captured-event notifications to an event stream backend.
type Publisher interface {
	PublishEvent(ctx context.Context, event *CapturedEvent) error
	Close() error
}
