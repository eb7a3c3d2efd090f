// Package reconciler содержит фоновое приложение, которое по расписанию ищет
// перебронированные недели и публикует оповещения в RabbitMQ.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/carwash-booking/internal/config"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
	"github.com/magabrotheeeer/carwash-booking/internal/metrics"
	reconcilerservice "github.com/magabrotheeeer/carwash-booking/internal/services/reconciler"
	"github.com/magabrotheeeer/carwash-booking/internal/storage/repository"
)

// App представляет приложение проверки перебронирования.
type App struct {
	service  *reconcilerservice.Service
	schedule string
	db       *repository.Storage
	conn     *amqp.Connection
	ch       *amqp.Channel
	logger   *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	var err error
	for range 10 {
		if err = repository.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// New подключается к хранилищу и брокеру.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.Retries, cfg.RetryTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.AlertsExchange, rabbitmq.GetAlertQueues())
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(ctx, db); err != nil {
		_ = db.Close()
		closeResources(ch, conn, logger)
		return nil, err
	}

	service := reconcilerservice.NewReconcilerService(
		db,
		rabbitmq.NewPublisher(ch, rabbitmq.AlertsExchange),
		metrics.New(prometheus.DefaultRegisterer),
		logger,
		cfg.MustLocation(),
		cfg.StoreTimeout,
	)

	return &App{
		service:  service,
		schedule: cfg.Schedule,
		db:       db,
		conn:     conn,
		ch:       ch,
		logger:   logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run выполняет проверку сразу и затем по расписанию, пока не отменён ctx.
func (a *App) Run(ctx context.Context) error {
	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(a.schedule, func() {
		_ = a.service.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("bad reconciler schedule %q: %w", a.schedule, err)
	}

	_ = a.service.Run(ctx)
	c.Start()
	a.logger.Info("reconciler scheduled", slog.String("schedule", a.schedule))

	<-ctx.Done()

	a.logger.Info("shutting down reconciler")
	<-c.Stop().Done()

	closeResources(a.ch, a.conn, a.logger)
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
	return nil
}
