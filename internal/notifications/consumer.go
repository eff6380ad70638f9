package notifications

import (
	"context"
	"errors"
	"fmt"

	gpubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/bazaarhq/bazaar-backend/pkg/errors"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/idempotency"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/payloads"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/registry"
	"github.com/bazaarhq/bazaar-backend/pkg/pubsub"
)

// ConsumerName scopes idempotency marks for this consumer.
const ConsumerName = "notifications"

type positionApplier interface {
	ApplyPosition(ctx context.Context, event payloads.DriverPositionUpdatedEvent) ([]models.OrderDetail, error)
}

// Consumer turns domain events into mail jobs and in-app notifications.
// Delivery is at-most-once: a failed job is logged and the message acked.
type Consumer struct {
	events      *registry.EventRegistry
	idempotency *idempotency.Guard
	repo        Repository
	mailer      Mailer
	positions   positionApplier
	cfg         config.NotificationConfig
	logg        *logger.Logger
}

// NewConsumer builds a notifications consumer. positions may be nil, in which
// case driver position events are ignored.
func NewConsumer(
	events *registry.EventRegistry,
	guard *idempotency.Guard,
	repo Repository,
	mailer Mailer,
	positions positionApplier,
	cfg config.NotificationConfig,
	logg *logger.Logger,
) (*Consumer, error) {
	if events == nil {
		return nil, fmt.Errorf("event registry required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		events:      events,
		idempotency: guard,
		repo:        repo,
		mailer:      mailer,
		positions:   positions,
		cfg:         cfg,
		logg:        logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context, sub *gpubsub.Subscriber) error {
	return pubsub.Receive(ctx, sub, c.Handle)
}

// Handle processes one delivered message. Only idempotency store failures
// are returned so the message is redelivered.
func (c *Consumer) Handle(ctx context.Context, msg pubsub.Message) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.EventType(),
	})

	event, err := c.events.DecodeMessage(msg.EventType(), msg.Data)
	if err != nil {
		if registry.IsNonRetryable(err) {
			c.logg.Warn(logCtx, "skipping undecodable event: "+err.Error())
			return nil
		}
		c.logg.Error(logCtx, "decode event", err)
		return nil
	}

	eventID, err := uuid.Parse(event.Envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return nil
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	var jobErr error
	ran, err := c.idempotency.Once(ctx, ConsumerName, eventID, func(ctx context.Context) error {
		jobErr = c.dispatch(ctx, event)
		return nil
	})
	if errors.Is(err, idempotency.ErrInFlight) {
		c.logg.Warn(logCtx, "event in flight elsewhere, redelivering later")
		return err
	}
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return err
	}
	if !ran {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}
	switch {
	case jobErr == nil:
	case pkgerrors.Retryable(jobErr):
		c.logg.Error(logCtx, "notification jobs failed", jobErr)
		return nil
	default:
		c.logg.Warn(logCtx, "notification jobs rejected: "+jobErr.Error())
		return nil
	}
	c.logg.Info(logCtx, "event notified")
	return nil
}

func (c *Consumer) dispatch(ctx context.Context, event *registry.ResolvedEvent) error {
	if position, ok := event.Payload.(*payloads.DriverPositionUpdatedEvent); ok {
		return c.applyPosition(ctx, *position)
	}

	plan, err := c.translate(ctx, event)
	if err != nil {
		return err
	}

	var errs error
	for _, job := range plan.mail {
		if err := c.mailer.Send(ctx, job); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("send %s to %s: %w", job.Template, job.Recipient, err))
		}
	}
	for i := range plan.inApp {
		if err := c.repo.Create(ctx, &plan.inApp[i]); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("store notification for %s %s: %w", plan.inApp[i].RecipientRole, plan.inApp[i].RecipientID, err))
		}
	}
	return errs
}

func (c *Consumer) applyPosition(ctx context.Context, event payloads.DriverPositionUpdatedEvent) error {
	if c.positions == nil {
		return nil
	}
	details, err := c.positions.ApplyPosition(ctx, event)
	if err != nil {
		return fmt.Errorf("apply driver position: %w", err)
	}
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"driver_id":      event.DriverID.String(),
		"active_details": len(details),
	})
	c.logg.Info(logCtx, "driver position applied")
	return nil
}
