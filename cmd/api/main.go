package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bazaarhq/bazaar-backend/api/routes"
	"github.com/bazaarhq/bazaar-backend/internal/auth"
	"github.com/bazaarhq/bazaar-backend/internal/balances"
	"github.com/bazaarhq/bazaar-backend/internal/catalog"
	"github.com/bazaarhq/bazaar-backend/internal/delivery"
	"github.com/bazaarhq/bazaar-backend/internal/notifications"
	"github.com/bazaarhq/bazaar-backend/internal/orders"
	"github.com/bazaarhq/bazaar-backend/internal/payouts"
	"github.com/bazaarhq/bazaar-backend/pkg/bootstrap"
	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/db"
	"github.com/bazaarhq/bazaar-backend/pkg/env"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
	"github.com/bazaarhq/bazaar-backend/pkg/metrics"
	"github.com/bazaarhq/bazaar-backend/pkg/migrate"
	"github.com/bazaarhq/bazaar-backend/pkg/outbox"
	"github.com/bazaarhq/bazaar-backend/pkg/redis"
)

const shutdownGrace = 20 * time.Second

func main() {
	proc := bootstrap.Start("api")
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient, err := db.New(boot, cfg.DB, logg)
	proc.Must(boot, "database", err)
	proc.OnClose("database", dbClient.Close)
	proc.Must(boot, "dev migrations", migrate.MaybeRunDev(boot, cfg, logg, dbClient))

	redisClient, err := redis.New(boot, cfg.Redis, logg)
	proc.Must(boot, "redis", err)
	proc.OnClose("redis", redisClient.Close)

	services, err := buildServices(cfg, logg, dbClient, redisClient)
	proc.Must(boot, "services", err)

	// PORT is set by the hosting platform and wins over config.
	port := env.Get("PORT", cfg.App.Port)
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := proc.RunContext()
	defer stop()
	ctx = logg.WithField(ctx, "addr", server.Addr)

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "api server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			proc.Fail(ctx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		drain, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(drain); err != nil {
			logg.Error(ctx, "api server shutdown", err)
		}
	}
	proc.Close(ctx)
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Services, error) {
	conn := dbClient.DB()
	events := outbox.NewService(outbox.NewRepository(conn), logg)
	marketplace := metrics.NewMarketplaceMetrics(prometheus.DefaultRegisterer)
	deliveryRepo := delivery.NewRepository(conn)

	var svc routes.Services
	var err error

	if svc.Auth, err = auth.NewService(auth.ServiceParams{Accounts: auth.NewRepository(conn), JWTConfig: cfg.JWT}); err != nil {
		return svc, err
	}
	catalogService, err := catalog.NewService(catalog.NewRepository(conn), cfg.Pricing, logg)
	if err != nil {
		return svc, err
	}
	ordersService, err := orders.NewService(
		dbClient,
		orders.NewRepository(conn),
		catalogService,
		deliveryRepo,
		events,
		marketplace,
		orders.Config{Pricing: cfg.Pricing, Digital: cfg.Digital, BaseURL: cfg.App.BaseURL},
		logg,
	)
	if err != nil {
		return svc, err
	}
	svc.Orders = ordersService

	if svc.Delivery, err = delivery.NewService(dbClient, deliveryRepo, events, ordersService, cfg.Delivery, cfg.Password, logg); err != nil {
		return svc, err
	}
	svc.Payouts, err = payouts.NewService(
		dbClient,
		payouts.NewRepository(conn),
		balances.NewAggregator(conn),
		redisClient,
		events,
		marketplace,
		cfg.Payout,
		logg,
	)
	if err != nil {
		return svc, err
	}
	svc.Notifications, err = notifications.NewService(notifications.NewRepository(conn))
	return svc, err
}
