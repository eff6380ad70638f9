package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

// DefaultDir is relative to the repository root.
const DefaultDir = "pkg/migrate/migrations"

const versionLayout = "20060102150405"

// Step describes one migration touched or inspected by a command.
type Step struct {
	Version  int64
	Path     string
	State    string
	Duration time.Duration
}

// Run executes up, down or status against db using the SQL files in dir.
func Run(ctx context.Context, db *sql.DB, dir, command string) ([]Step, error) {
	provider, err := newProvider(db, dir)
	if err != nil {
		return nil, err
	}
	switch command {
	case "up":
		return applied(provider.Up(ctx))
	case "down":
		res, err := provider.Down(ctx)
		return applied(wrapOne(res), err)
	case "status":
		return statuses(provider.Status(ctx))
	}
	return nil, fmt.Errorf("unsupported goose command %q", command)
}

// MigrateToVersion moves the schema up or down until it sits at target.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir, target string) ([]Step, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected %s): %w", target, versionLayout, err)
	}
	provider, err := newProvider(db, dir)
	if err != nil {
		return nil, err
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case current < version:
		return applied(provider.UpTo(ctx, version))
	case current > version:
		return applied(provider.DownTo(ctx, version))
	}
	return nil, nil
}

// Migrations are written in Postgres DDL.
func newProvider(db *sql.DB, dir string) (*goose.Provider, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dir == "" {
		return nil, errors.New("dir is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("open migrations in %q: %w", dir, err)
	}
	return provider, nil
}

func wrapOne(res *goose.MigrationResult) []*goose.MigrationResult {
	if res == nil {
		return nil
	}
	return []*goose.MigrationResult{res}
}

func applied(results []*goose.MigrationResult, err error) ([]Step, error) {
	steps := make([]Step, 0, len(results))
	for _, r := range results {
		steps = append(steps, Step{Version: r.Source.Version, Path: r.Source.Path, State: r.Direction, Duration: r.Duration})
	}
	if err != nil {
		return steps, fmt.Errorf("goose: %w", err)
	}
	return steps, nil
}

func statuses(list []*goose.MigrationStatus, err error) ([]Step, error) {
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	steps := make([]Step, 0, len(list))
	for _, s := range list {
		steps = append(steps, Step{Version: s.Source.Version, Path: s.Source.Path, State: string(s.State)})
	}
	return steps, nil
}
