package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/db/models"
	"github.com/bazaarhq/bazaar-backend/pkg/enums"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/registry"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	publishTimeout      = 15 * time.Second
	retryCeiling        = 10 * time.Second
	maxJitter           = 250 * time.Millisecond
)

// Message attributes read by the worker consumers.
const (
	attrEventID       = "event_id"
	attrEventType     = "event_type"
	attrAggregateType = "aggregate_type"
	attrAggregateID   = "aggregate_id"
	attrCreatedAt     = "created_at"
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pinger interface {
	Ping(context.Context) error
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetters interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	Stop()
}

// RelayParams wires a Relay. OpenTopic defaults to the Pub/Sub client.
type RelayParams struct {
	Outbox      config.OutboxConfig
	Logger      *logger.Logger
	DB          txRunner
	PubSub      pinger
	Events      eventStore
	DeadLetters deadLetters
	Resolver    eventResolver
	OpenTopic   func(topic string) topicPublisher
}

type relaySettings struct {
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func settingsFrom(cfg config.OutboxConfig) relaySettings {
	s := relaySettings{
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		poll:        time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}
	if s.batchSize <= 0 {
		s.batchSize = fallbackBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = fallbackMaxAttempts
	}
	if s.poll <= 0 {
		s.poll = fallbackPoll
	}
	return s
}

// Relay drains outbox_events into Pub/Sub. Every batch is claimed inside one
// transaction, so concurrent relays skip rows another relay holds.
type Relay struct {
	logg     *logger.Logger
	db       txRunner
	pubsub   pinger
	events   eventStore
	dlq      deadLetters
	resolver eventResolver
	topics   *topicCache
	settings relaySettings
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Events == nil:
		return nil, errors.New("outbox repository is required")
	case params.DeadLetters == nil:
		return nil, errors.New("dlq repository is required")
	case params.Resolver == nil:
		return nil, errors.New("event registry is required")
	case params.OpenTopic == nil:
		return nil, errors.New("topic opener is required")
	}
	return &Relay{
		logg:     params.Logger,
		db:       params.DB,
		pubsub:   params.PubSub,
		events:   params.Events,
		dlq:      params.DeadLetters,
		resolver: params.Resolver,
		topics:   newTopicCache(params.OpenTopic),
		settings: settingsFrom(params.Outbox),
	}, nil
}

// Run polls until ctx is canceled. Publishers opened along the way are
// flushed on return.
func (r *Relay) Run(ctx context.Context) error {
	defer r.topics.stopAll()

	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", r.db.Ping},
		{"pubsub", r.pubsub.Ping},
	} {
		if err := dep.ping(ctx); err != nil {
			r.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	delay := newRetryDelay(r.settings.poll, retryCeiling)
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay context canceled")
			return err
		}

		report, err := r.processBatch(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			if err := sleep(ctx, jitter(delay.grow())); err != nil {
				return err
			}
		case report.total() > 0:
			delay.reset()
			r.logg.Info(r.logg.WithFields(ctx, report.fields()), "outbox batch relayed")
		default:
			delay.reset()
			if err := sleep(ctx, jitter(r.settings.poll)); err != nil {
				return err
			}
		}
	}
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetried
	outcomeParked
)

type batchReport struct {
	published int
	retried   int
	parked    int
}

func (b *batchReport) add(o outcome) {
	switch o {
	case outcomePublished:
		b.published++
	case outcomeRetried:
		b.retried++
	case outcomeParked:
		b.parked++
	}
}

func (b batchReport) total() int {
	return b.published + b.retried + b.parked
}

func (b batchReport) fields() map[string]any {
	return map[string]any{
		"published": b.published,
		"retried":   b.retried,
		"parked":    b.parked,
	}
}

func (r *Relay) processBatch(ctx context.Context) (batchReport, error) {
	var report batchReport
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.events.FetchUnpublishedForPublish(tx, r.settings.batchSize, r.settings.maxAttempts)
		if err != nil {
			return err
		}
		for _, row := range rows {
			o, err := r.relayOne(ctx, tx, row)
			if err != nil {
				return err
			}
			report.add(o)
		}
		return nil
	})
	return report, err
}

// relayOne publishes a single row. The returned error is reserved for
// bookkeeping failures, which abort the whole batch.
func (r *Relay) relayOne(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (outcome, error) {
	ctx = r.logg.WithFields(ctx, rowFields(row))

	resolved, err := r.resolver.Resolve(row)
	if err != nil {
		return outcomeParked, r.park(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}
	topic := resolved.Descriptor.Topic
	ctx = r.logg.WithFields(ctx, map[string]any{"topic": topic, "event_id": resolved.Envelope.EventID})

	err = r.publish(ctx, topic, messageFor(row, resolved.Envelope.EventID))
	if err == nil {
		if err := r.events.MarkPublishedTx(tx, row.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		return outcomePublished, nil
	}

	if registry.IsNonRetryable(err) {
		return outcomeParked, r.park(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}
	if row.AttemptCount+1 >= r.settings.maxAttempts {
		return outcomeParked, r.park(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err))
	}

	r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox publish failed, will retry")
	if err := r.events.MarkFailedTx(tx, row.ID, err); err != nil {
		return outcomeRetried, fmt.Errorf("mark failure %s: %w", row.ID, err)
	}
	return outcomeRetried, nil
}

func (r *Relay) publish(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := r.topics.get(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	result := pub.Publish(ctx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(ctx)
	return err
}

// park moves a row to the dead-letter table and pins its attempt count at the
// ceiling so the fetch query never returns it again.
func (r *Relay) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event parked in dlq")

	entry := row.DeadLetter(reason, cause, time.Now().UTC())
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := r.events.MarkTerminalTx(tx, row.ID, cause, r.settings.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return nil
}

func messageFor(row models.OutboxEvent, eventID string) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			attrEventID:       eventID,
			attrEventType:     string(row.EventType),
			attrAggregateType: string(row.AggregateType),
			attrAggregateID:   row.AggregateID.String(),
			attrCreatedAt:     row.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

func rowFields(row models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}

type retryDelay struct {
	base    time.Duration
	ceiling time.Duration
	current time.Duration
}

func newRetryDelay(base, ceiling time.Duration) *retryDelay {
	return &retryDelay{base: base, ceiling: ceiling, current: base}
}

// grow doubles the delay up to the ceiling and returns the new value.
func (d *retryDelay) grow() time.Duration {
	d.current = min(d.current*2, d.ceiling)
	return d.current
}

func (d *retryDelay) reset() {
	d.current = d.base
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(maxJitter)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
