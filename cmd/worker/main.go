package main

import (
	"context"
	"errors"

	"github.com/bazaarhq/bazaar-backend/internal/analytics"
	"github.com/bazaarhq/bazaar-backend/internal/analytics/writer"
	"github.com/bazaarhq/bazaar-backend/internal/delivery"
	"github.com/bazaarhq/bazaar-backend/internal/notifications"
	"github.com/bazaarhq/bazaar-backend/internal/orders"
	"github.com/bazaarhq/bazaar-backend/pkg/bigquery"
	"github.com/bazaarhq/bazaar-backend/pkg/bootstrap"
	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/db"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/idempotency"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox/registry"
	"github.com/bazaarhq/bazaar-backend/pkg/pubsub"
	"github.com/bazaarhq/bazaar-backend/pkg/redis"
)

func main() {
	proc := bootstrap.Start("worker")
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient, err := db.New(boot, cfg.DB, logg)
	proc.Must(boot, "database", err)
	proc.OnClose("database", dbClient.Close)

	redisClient, err := redis.New(boot, cfg.Redis, logg)
	proc.Must(boot, "redis", err)
	proc.OnClose("redis", redisClient.Close)

	psClient, err := pubsub.NewClient(boot, cfg.GCP, cfg.PubSub, logg)
	proc.Must(boot, "pubsub", err)
	proc.OnClose("pubsub", psClient.Close)

	events, err := registry.NewEventRegistry(cfg.PubSub)
	proc.Must(boot, "event registry", err)

	guard, err := idempotency.NewGuard(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	proc.Must(boot, "idempotency guard", err)

	positions, err := positionApplier(cfg, logg, dbClient)
	proc.Must(boot, "delivery service", err)

	notificationConsumer, err := notifications.NewConsumer(
		events,
		guard,
		notifications.NewRepository(dbClient.DB()),
		notifications.NewLogMailer(logg),
		positions,
		cfg.Notification,
		logg,
	)
	proc.Must(boot, "notification consumer", err)

	sup := NewSupervisor(logg)
	sup.Requires("database", dbClient.Ping)
	sup.Requires("redis", redisClient.Ping)
	sup.Requires("pubsub", psClient.Ping)
	sup.Consume("notifications", notificationConsumer, psClient.NotificationSubscription())

	// Analytics is optional; without a subscription only notifications run.
	if cfg.PubSub.AnalyticsSubscription != "" {
		bqClient, err := bigquery.NewClient(boot, cfg.GCP, cfg.BigQuery, logg)
		proc.Must(boot, "bigquery", err)
		proc.OnClose("bigquery", bqClient.Close)

		sales, err := writer.New(bqClient, cfg.BigQuery)
		proc.Must(boot, "sales writer", err)

		analyticsConsumer, err := analytics.NewConsumer(events, guard, sales, cfg.Pricing.SiteCurrency, logg)
		proc.Must(boot, "analytics consumer", err)

		sup.Requires("bigquery", bqClient.Ping)
		sup.Consume("analytics", analyticsConsumer, psClient.AnalyticsSubscription())
	}

	ctx, stop := proc.RunContext()
	defer stop()
	logg.Info(ctx, "starting worker")

	if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Fail(ctx, "worker stopped unexpectedly", err)
	}
	logg.Info(ctx, "worker shut down")
	proc.Close(ctx)
}

// positionApplier lets driver position events move in-flight deliveries
// forward from the worker.
func positionApplier(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*delivery.Service, error) {
	conn := dbClient.DB()
	return delivery.NewService(
		dbClient,
		delivery.NewRepository(conn),
		outbox.NewService(outbox.NewRepository(conn), logg),
		orders.NewLogWriter(orders.NewRepository(conn)),
		cfg.Delivery,
		cfg.Password,
		logg,
	)
}
