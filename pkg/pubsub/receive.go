package pubsub

import (
	"context"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// Message is the slice of a Pub/Sub message consumers care about.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// EventType returns the event_type attribute set by the outbox publisher.
func (m Message) EventType() string {
	return m.Attributes["event_type"]
}

// Handler processes one message. Returning an error nacks it for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Receive blocks pulling from sub until ctx is done.
func Receive(ctx context.Context, sub *pubsub.Subscriber, handle Handler) error {
	if sub == nil {
		return errors.New("subscription not configured")
	}
	err := sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		msg := Message{ID: m.ID, Data: m.Data, Attributes: m.Attributes}
		if err := handle(ctx, msg); err != nil {
			m.Nack()
			return
		}
		m.Ack()
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
