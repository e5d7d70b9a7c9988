package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/jw6ventures/habitplanner/internal/config"
	"github.com/jw6ventures/habitplanner/internal/logger"
)

var version = "dev"

var CLI struct {
	Version kong.VersionFlag

	Serve   ServeCmd   `cmd:"" help:"Run the HTTP API." default:"1"`
	Migrate MigrateCmd `cmd:"" help:"Apply pending database migrations and exit."`
}

// appContext is handed to every command's Run method.
type appContext struct {
	ctx context.Context
	cfg *config.Config
	log *zap.Logger
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("habitplanner"),
		kong.Description("Habit tracking API with streaks and weekly activity."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Env: cfg.Env, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := kctx.Run(&appContext{ctx: ctx, cfg: cfg, log: log}); err != nil {
		log.Error("command failed", zap.String("command", kctx.Command()), zap.Error(err))
		_ = log.Sync()
		stop()
		os.Exit(1)
	}
}
