package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"crabmigrate/internal/config"
	"crabmigrate/internal/daemon"
	"crabmigrate/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		logger.Error("initialize daemon", logging.Error(err))
		return
	}

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}
	logger.Info("daemon running",
		slog.String("api_bind", cfg.Paths.APIBind),
		slog.String("database", cfg.DatabasePath()),
	)

	<-ctx.Done()
	logger.Info("shutdown requested")
	d.Stop()
}
