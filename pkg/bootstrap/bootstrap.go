// Package bootstrap is the startup sequence shared by every binary: load
// .env and config, build the logger, and track resources that must be closed
// on the way out, including the fatal paths that skip deferred calls.
package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bazaarhq/bazaar-backend/pkg/config"
	"github.com/bazaarhq/bazaar-backend/pkg/logger"
)

type closer struct {
	name string
	fn   func() error
}

type Process struct {
	Config *config.Config
	Logger *logger.Logger

	service string
	closers []closer
	exit    func(int)
}

// Start loads configuration for service. It exits the process when the
// config is invalid.
func Start(service string) *Process {
	p := &Process{
		Logger:  logger.New(logger.Options{ServiceName: service}),
		service: service,
		exit:    os.Exit,
	}
	if err := godotenv.Load(); err != nil {
		p.Logger.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	p.Must(context.Background(), "config", err)
	cfg.Service.Kind = service
	p.Config = cfg
	p.Logger = logger.ForApp(service, cfg.App)
	return p
}

// Must logs and exits when err is set, closing everything registered so far.
func (p *Process) Must(ctx context.Context, resource string, err error) {
	if err == nil {
		return
	}
	p.Logger.Error(p.Logger.WithField(ctx, "resource", resource), "startup failed", err)
	p.Close(ctx)
	p.exit(1)
}

// OnClose registers fn to run on Close. Closers run in reverse order.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

func (p *Process) Close(ctx context.Context) {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.fn(); err != nil {
			p.Logger.Error(ctx, "error closing "+c.name, err)
		}
	}
	p.closers = nil
}

// RunContext is cancelled on SIGINT or SIGTERM and carries the process's
// env and service kind as log fields.
func (p *Process) RunContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	env := ""
	if p.Config != nil {
		env = p.Config.App.Env
	}
	return p.Logger.WithFields(ctx, map[string]any{"env": env, "serviceKind": p.service}), stop
}

// Fail logs err, closes resources and exits non-zero.
func (p *Process) Fail(ctx context.Context, msg string, err error) {
	p.Logger.Error(ctx, msg, err)
	p.Close(ctx)
	p.exit(1)
}
