// Package main содержит точку входа фоновой проверки перебронирования.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/carwash-booking/internal/app/reconciler"
	"github.com/magabrotheeeer/carwash-booking/internal/config"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.SetupLogger(cfg.Env, os.Stdout)

	logger.Info("starting reconciler", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := reconciler.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize reconciler", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("reconciler stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("reconciler stopped gracefully")
}
