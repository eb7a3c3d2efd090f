package carwash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/carwash-booking/internal/cache"
	"github.com/magabrotheeeer/carwash-booking/internal/config"
	"github.com/magabrotheeeer/carwash-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/jwt"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/password"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
	"github.com/magabrotheeeer/carwash-booking/internal/metrics"
	"github.com/magabrotheeeer/carwash-booking/internal/migrations"
	authservice "github.com/magabrotheeeer/carwash-booking/internal/services/auth"
	bookingservice "github.com/magabrotheeeer/carwash-booking/internal/services/booking"
	reconcilerservice "github.com/magabrotheeeer/carwash-booking/internal/services/reconciler"
	settingsservice "github.com/magabrotheeeer/carwash-booking/internal/services/settings"
	userservice "github.com/magabrotheeeer/carwash-booking/internal/services/users"
	"github.com/magabrotheeeer/carwash-booking/internal/storage/repository"

	// Регистрация сгенерированной документации Swagger.
	_ "github.com/magabrotheeeer/carwash-booking/docs"
)

// App - HTTP-сервер со всеми зависимостями.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
}

// New подключает хранилище и кэш, применяет миграции, создаёт первого
// администратора и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = repository.CheckDatabaseReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	loc := cfg.MustLocation()
	m := metrics.New(prometheus.DefaultRegisterer)
	hasher := password.Bcrypt{}

	userService := userservice.NewUserService(db, hasher, logger, cfg.DefaultPassword, cfg.StoreTimeout)
	created, err := userService.EnsureAdmin(ctx, userservice.Bootstrap{
		Email:     cfg.Admin.Email,
		Password:  cfg.Admin.Password,
		FirstName: cfg.Admin.FirstName,
		LastName:  cfg.Admin.LastName,
	})
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		return nil, err
	}
	if created {
		logger.Warn("bootstrap admin created, change its password", slog.String("email", cfg.Admin.Email))
	}

	bookingService := bookingservice.NewBookingService(db, db, cacheRedis, m, logger, bookingservice.Options{
		Location:     loc,
		StoreTimeout: cfg.StoreTimeout,
		CacheTTL:     cfg.CacheTTL,
	})
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	services := Services{
		Auth:       authservice.NewAuthService(db, hasher, jwtMaker, logger),
		Booking:    bookingService,
		Settings:   settingsservice.NewSettingsService(db, cacheRedis, logger, loc, cfg.StoreTimeout),
		Users:      userService,
		Reconciler: reconcilerservice.NewReconcilerService(db, nil, m, logger, loc, cfg.StoreTimeout),
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, services, middlewarectx.NewRateLimiter(cfg.RateLimit, cfg.RateBurst))

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем мягко останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.closeResources()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.closeResources()
		return err
	}
}

func (a *App) closeResources() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
}
