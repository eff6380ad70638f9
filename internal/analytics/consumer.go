// Package analytics streams paid order lines and approved payouts into the
// BigQuery sales_events table.
package analytics

import (
	"context"
	"errors"
	"fmt"

	gpubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	pkgbigquery "github.com/bazaarhq/bazaar-backend/pkg/bigquery"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/idempotency"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/registry"
	"github.com/bazaarhq/bazaar-backend/pkg/pubsub"
)

// ConsumerName scopes idempotency marks for this consumer.
const ConsumerName = "analytics"

type rowWriter interface {
	Write(ctx context.Context, rows []pkgbigquery.SalesEventRow) error
}

// Consumer writes sales rows for order_paid and payout_approved events.
// A failed insert releases the idempotency mark and nacks the message; row
// insert ids keep the redelivery from double counting.
type Consumer struct {
	events      *registry.EventRegistry
	idempotency *idempotency.Guard
	writer      rowWriter
	currency    string
	logg        *logger.Logger
}

// NewConsumer builds an analytics consumer.
func NewConsumer(events *registry.EventRegistry, guard *idempotency.Guard, writer rowWriter, currency string, logg *logger.Logger) (*Consumer, error) {
	if events == nil {
		return nil, errors.New("event registry is required")
	}
	if guard == nil {
		return nil, errors.New("idempotency guard is required")
	}
	if writer == nil {
		return nil, errors.New("sales writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		events:      events,
		idempotency: guard,
		writer:      writer,
		currency:    currency,
		logg:        logg,
	}, nil
}

// Run consumes the analytics subscription until the context is canceled.
func (c *Consumer) Run(ctx context.Context, sub *gpubsub.Subscriber) error {
	return pubsub.Receive(ctx, sub, c.Handle)
}

func tracked(eventType string) bool {
	switch enums.OutboxEventType(eventType) {
	case enums.EventOrderPaid, enums.EventPayoutApproved:
		return true
	}
	return false
}

// Handle processes one message.
func (c *Consumer) Handle(ctx context.Context, msg pubsub.Message) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.EventType(),
	})
	if !tracked(msg.EventType()) {
		return nil
	}

	event, err := c.events.DecodeMessage(msg.EventType(), msg.Data)
	if err != nil {
		c.logg.Warn(logCtx, "invalid analytics event: "+err.Error())
		return nil
	}
	eventID, err := uuid.Parse(event.Envelope.EventID)
	if err != nil {
		c.logg.Warn(logCtx, "invalid event id")
		return nil
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	rows := salesRows(event, c.currency)
	if len(rows) == 0 {
		c.logg.Info(logCtx, "no sales rows for event")
		return nil
	}

	ran, err := c.idempotency.Once(logCtx, ConsumerName, eventID, func(ctx context.Context) error {
		return c.writer.Write(ctx, rows)
	})
	if err != nil {
		c.logg.Error(logCtx, "sales rows not written", err)
		return fmt.Errorf("write sales rows: %w", err)
	}
	if !ran {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	c.logg.Info(c.logg.WithField(logCtx, "rows", len(rows)), "sales rows written")
	return nil
}
