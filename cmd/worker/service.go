package main

import (
	"context"
	"errors"
	"fmt"

	gpubsub "cloud.google.com/go/pubsub/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bazaarhq/bazaar-backend/pkg/logger"
)

// subscriptionConsumer drains one Pub/Sub subscription until ctx ends.
type subscriptionConsumer interface {
	Run(ctx context.Context, sub *gpubsub.Subscriber) error
}

type dependency struct {
	name string
	ping func(context.Context) error
}

// lane binds a consumer to the subscription it reads.
type lane struct {
	name     string
	consumer subscriptionConsumer
	sub      *gpubsub.Subscriber
}

// Supervisor runs every consumer lane side by side. The first lane to fail
// cancels the others.
type Supervisor struct {
	logg  *logger.Logger
	deps  []dependency
	lanes []lane
}

func NewSupervisor(logg *logger.Logger) *Supervisor {
	return &Supervisor{logg: logg}
}

// Requires adds a dependency that must answer a ping before any lane starts.
func (s *Supervisor) Requires(name string, ping func(context.Context) error) {
	s.deps = append(s.deps, dependency{name: name, ping: ping})
}

// Consume adds a lane. A nil subscription is a wiring error reported by Run.
func (s *Supervisor) Consume(name string, consumer subscriptionConsumer, sub *gpubsub.Subscriber) {
	s.lanes = append(s.lanes, lane{name: name, consumer: consumer, sub: sub})
}

func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.lanes) == 0 {
		return errors.New("no consumers configured")
	}
	for _, d := range s.deps {
		if err := d.ping(ctx); err != nil {
			return fmt.Errorf("%s not ready: %w", d.name, err)
		}
	}
	for _, l := range s.lanes {
		if l.sub == nil {
			return fmt.Errorf("%s subscription not configured", l.name)
		}
	}
	s.logg.Info(ctx, "worker dependencies ready")

	group, groupCtx := errgroup.WithContext(ctx)
	for _, l := range s.lanes {
		group.Go(func() error {
			laneCtx := s.logg.WithField(groupCtx, "consumer", l.name)
			s.logg.Info(laneCtx, "consumer started")
			err := l.consumer.Run(laneCtx, l.sub)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(laneCtx, "consumer stopped unexpectedly", err)
				return fmt.Errorf("%s: %w", l.name, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
