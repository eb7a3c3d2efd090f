// Package main Carwash Booking API
//
// @title           Carwash Booking API
// @version         1.0
// @description     API записи сотрудников на еженедельную мойку автомобилей
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	// Часовые пояса встраиваются в бинарник: образ может не содержать tzdata.
	_ "time/tzdata"

	"github.com/magabrotheeeer/carwash-booking/internal/app/carwash"
	"github.com/magabrotheeeer/carwash-booking/internal/config"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.SetupLogger(cfg.Env, os.Stdout)

	logger.Info("starting carwash-booking", slog.String("env", cfg.Env))
	logger.Debug("debug messages are enabled", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := carwash.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("carwash-booking stopped gracefully")
}
