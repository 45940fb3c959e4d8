// Package kafka publishes captured events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/spoolworks/spool/pkg/eventstream"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "spool-events"

// Config holds connection settings for the Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic is the topic captured events are written to.
	Topic string
}

// Publisher writes captured events to a Kafka topic. Messages are keyed by
// stream name so all events of one stream land on the same partition in
// capture order.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Kafka publisher for the given brokers and topic.
func NewPublisher(config Config) (*Publisher, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	topic := config.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(config.Brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}, nil
}

// PublishEvent marshals the event to JSON and writes it keyed by stream name.
func (p *Publisher) PublishEvent(ctx context.Context, event *eventstream.CapturedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal captured event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Source.Stream),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("write to kafka: %w", err)
	}

	return nil
}

// Close flushes buffered messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
