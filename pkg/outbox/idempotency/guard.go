// Package idempotency deduplicates Pub/Sub deliveries of outbox events.
// Pub/Sub is at-least-once; a Guard turns that into effectively-once per
// consumer for as long as the mark lives.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/pkg/redis"
)

const (
	markInFlight = "in_flight"
	markDone     = "done"
)

// ErrInFlight means another worker is still handling the same event.
var ErrInFlight = errors.New("event is being processed by another worker")

// Guard records which events a consumer has handled. Keys look like
// bz:idempotency:evt:<consumer>:<event_id>.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	lease time.Duration
}

// NewGuard keeps done marks for ttl. In-flight marks expire after a shorter
// lease so a crashed worker does not block redelivery for the full ttl.
func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Guard{store: store, ttl: ttl, lease: min(ttl, 5*time.Minute)}, nil
}

// Once runs fn unless consumer already handled eventID. It reports whether fn
// ran. A failed fn clears the mark so the redelivery retries; a delivery that
// arrives while another is in flight gets ErrInFlight and should be nacked.
func (g *Guard) Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return false, err
	}

	claimed, err := g.store.Claim(ctx, key, markInFlight, g.lease)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		state, _, err := g.store.Lookup(ctx, key)
		if err != nil {
			return false, fmt.Errorf("lookup %s: %w", key, err)
		}
		if state == markInFlight {
			return false, ErrInFlight
		}
		return false, nil
	}

	if err := fn(ctx); err != nil {
		if relErr := g.store.Release(context.WithoutCancel(ctx), key); relErr != nil {
			return true, fmt.Errorf("%w (release idempotency mark: %v)", err, relErr)
		}
		return true, err
	}
	if err := g.store.Put(context.WithoutCancel(ctx), key, markDone, g.ttl); err != nil {
		return true, fmt.Errorf("mark %s done: %w", key, err)
	}
	return true, nil
}

// Forget drops the mark so the event can be handled again.
func (g *Guard) Forget(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Release(ctx, key)
}

func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
