package main

import (
	"context"
	"errors"
	"flag"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bazaarhq/bazaar-backend/internal/cron"
	"github.com/bazaarhq/bazaar-backend/internal/notifications"
	"github.com/bazaarhq/bazaar-backend/pkg/bootstrap"
	"github.com/bazaarhq/bazaar-backend/pkg/db"
	"github.com/bazaarhq/bazaar-backend/pkg/metrics"
	"github.com/bazaarhq/bazaar-backend/pkg/migrate"
	"github.com/bazaarhq/bazaar-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	only := flag.String("jobs", "", "comma-separated job names to run (default all)")
	flag.Parse()

	proc := bootstrap.Start("cron-worker")
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient, err := db.New(boot, cfg.DB, logg)
	proc.Must(boot, "database", err)
	proc.OnClose("database", dbClient.Close)
	proc.Must(boot, "dev migrations", migrate.MaybeRunDev(boot, cfg, logg, dbClient))

	redisClient, err := redis.New(boot, cfg.Redis, logg)
	proc.Must(boot, "redis", err)
	proc.OnClose("redis", redisClient.Close)

	// One lock per environment so staging and prod schedulers never contend.
	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, "cron-worker:"+env, cfg.Cron.LockTTL)
	proc.Must(boot, "cron lock", err)

	outboxRetention, err := cron.NewOutboxRetentionJob(logg, dbClient, cfg.Cron.OutboxRetentionDays)
	proc.Must(boot, "outbox retention job", err)
	notificationCleanup, err := cron.NewNotificationCleanupJob(logg, dbClient, notifications.NewRepository(dbClient.DB()), cfg.Cron.NotificationRetentionDays)
	proc.Must(boot, "notification cleanup job", err)

	registry := cron.NewRegistry(outboxRetention, notificationCleanup)
	if *only != "" {
		registry, err = registry.Only(strings.Split(*only, ",")...)
		proc.Must(boot, "job selection", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	proc.Must(boot, "cron service", err)

	ctx, stop := proc.RunContext()
	defer stop()
	if *once {
		if err := service.RunOnce(ctx); err != nil {
			proc.Fail(ctx, "cron cycle failed", err)
		}
		proc.Close(ctx)
		return
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Fail(ctx, "cron worker stopped unexpectedly", err)
	}
	logg.Info(ctx, "cron worker shut down")
	proc.Close(ctx)
}
