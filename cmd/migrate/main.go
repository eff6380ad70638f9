package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/bazaarhq/bazaar-backend/pkg/bootstrap"
	"github.com/bazaarhq/bazaar-backend/pkg/db"
	"github.com/bazaarhq/bazaar-backend/pkg/migrate"
)

const usage = "up|down|status|version|create|validate"

func main() {
	cmd := flag.String("cmd", "up", "migration command: "+usage)
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate only touch the filesystem.
	switch *cmd {
	case "create":
		if *name == "" {
			exitf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			exitf("create migration: %v", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		n, err := migrate.ValidateDir(*dir)
		if err != nil {
			exitf("validate migrations: %v", err)
		}
		fmt.Printf("%d migrations valid\n", n)
		return
	}

	proc := bootstrap.Start("migrate")
	cfg, logg := proc.Config, proc.Logger
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd, "dir": *dir})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	proc.Must(ctx, "database", err)
	proc.OnClose("database", dbClient.Close)

	sqlDB, err := dbClient.DB().DB()
	proc.Must(ctx, "sql database", err)

	steps, err := run(ctx, sqlDB, *cmd, *dir, *target)
	for _, step := range steps {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":  step.Version,
			"file":     step.Path,
			"state":    step.State,
			"duration": step.Duration.String(),
		}), "migration")
	}
	if err != nil {
		proc.Fail(ctx, "migration failed", err)
	}
	logg.Info(logg.WithField(ctx, "steps", len(steps)), "migration finished")
	proc.Close(ctx)
}

func run(ctx context.Context, sqlDB *sql.DB, cmd, dir, target string) ([]migrate.Step, error) {
	switch cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, dir, cmd)
	case "version":
		if target == "" {
			return nil, fmt.Errorf("missing -version")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, dir, target)
	}
	return nil, fmt.Errorf("unknown -cmd %q (want %s)", cmd, usage)
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
