package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"firma/internal/config"
	"firma/internal/db"
	"firma/internal/game"
)

// The worker sweeps lapsed event deadlines so games that sit idle
// still get their default responses applied.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := game.NewService(pool, logger)

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("FIRMA_WORKER_RUN_ONCE")), "true")
	if runOnce {
		swept, err := svc.SweepDeadlines(ctx)
		if err != nil {
			logger.Error("sweep failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed", "swept", swept)
		return
	}

	ticker := time.NewTicker(cfg.SweepEvery)
	defer ticker.Stop()

	logger.Info("worker started", "sweep_every", cfg.SweepEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			swept, err := svc.SweepDeadlines(ctx)
			if err != nil {
				logger.Error("deadline sweep failed", "err", err)
				continue
			}
			if swept > 0 {
				logger.Info("deadline sweep complete", "swept", swept)
			}
		}
	}
}
