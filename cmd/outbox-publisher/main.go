package main

import (
	"context"
	"errors"

	"github.com/bazaarhq/bazaar-backend/pkg/bootstrap"
	"github.com/bazaarhq/bazaar-backend/pkg/db"
	"github.com/bazaarhq/bazaar-backend/pkg/migrate"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/registry"
	"github.com/bazaarhq/bazaar-backend/pkg/pubsub"
)

func main() {
	proc := bootstrap.Start("outbox-publisher")
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient, err := db.New(boot, cfg.DB, logg)
	proc.Must(boot, "database", err)
	proc.OnClose("database", dbClient.Close)
	proc.Must(boot, "dev migrations", migrate.MaybeRunDev(boot, cfg, logg, dbClient))

	psClient, err := pubsub.NewClient(boot, cfg.GCP, cfg.PubSub, logg)
	proc.Must(boot, "pubsub", err)
	proc.OnClose("pubsub", psClient.Close)

	events, err := registry.NewEventRegistry(cfg.PubSub)
	proc.Must(boot, "event registry", err)

	relay, err := NewRelay(RelayParams{
		Outbox:      cfg.Outbox,
		Logger:      logg,
		DB:          dbClient,
		PubSub:      psClient,
		Events:      outbox.NewRepository(dbClient.DB()),
		DeadLetters: outbox.NewDLQRepository(dbClient.DB()),
		Resolver:    events,
		OpenTopic:   openGCPTopic(psClient.Publisher),
	})
	proc.Must(boot, "outbox relay", err)

	ctx, stop := proc.RunContext()
	defer stop()
	logg.Info(ctx, "starting outbox relay")

	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Fail(ctx, "outbox relay stopped unexpectedly", err)
	}
	logg.Info(ctx, "outbox relay shut down")
	proc.Close(ctx)
}
