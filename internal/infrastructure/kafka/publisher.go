package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"user-registry/internal/domain/event"
)

type producer interface {
	ProduceWithTracing(ctx context.Context, topic string, key, value []byte) error
}

// EventPublisher produces user events as JSON records keyed by user id, so
// every change to one user lands on the same partition in order.
type EventPublisher struct {
	producer producer
	topic    string
}

var _ event.Publisher = (*EventPublisher)(nil)

// NewEventPublisher creates a publisher writing to topic
func NewEventPublisher(p *Producer, topic string) *EventPublisher {
	return &EventPublisher{producer: p, topic: topic}
}

// Publish implements event.Publisher
func (p *EventPublisher) Publish(ctx context.Context, ev event.UserEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode user event: %w", err)
	}
	return p.producer.ProduceWithTracing(ctx, p.topic, []byte(strconv.Itoa(ev.UserID)), value)
}

// DecodeUserEvent parses a record produced by EventPublisher
func DecodeUserEvent(record *kgo.Record) (event.UserEvent, error) {
	var ev event.UserEvent
	if err := json.Unmarshal(record.Value, &ev); err != nil {
		return event.UserEvent{}, fmt.Errorf("decode user event at offset %d: %w", record.Offset, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return event.UserEvent{}, fmt.Errorf("decode user event at offset %d: missing id or type", record.Offset)
	}
	return ev, nil
}
