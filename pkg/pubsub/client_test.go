package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/bazaarhq/bazaar-backend/pkg/config"
)

func TestSubscriptionNamesSkipsBlank(t *testing.T) {
	names := subscriptionNames(config.PubSubConfig{NotificationSubscription: "notifications", AnalyticsSubscription: " "})
	if len(names) != 1 || names[0] != "notifications" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if err := c.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if c.Subscription("notifications") != nil || c.Publisher("domain-events") != nil {
		t.Fatal("expected nil handles from nil client")
	}
}

func TestMessageEventType(t *testing.T) {
	msg := Message{Attributes: map[string]string{"event_type": "order_paid"}}
	if msg.EventType() != "order_paid" {
		t.Fatalf("unexpected event type %q", msg.EventType())
	}
}
