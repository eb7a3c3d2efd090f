// Package carwash собирает HTTP-приложение сервиса записи на мойку.
package carwash

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/admin/overbooking"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/admin/roster"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/admin/settingsread"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/admin/settingsupdate"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/admin/usercreate"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/admin/userlist"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/admin/userremove"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/admin/userreset"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/admin/userupdate"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/admin/window"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/auth/appearance"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/booking/cancel"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/booking/create"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/booking/dashboard"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/booking/history"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/booking/parking"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/profile/profileread"
	"github.com/magabrotheeeer/carwash-booking/internal/http/handlers/profile/profileupdate"
	"github.com/magabrotheeeer/carwash-booking/internal/http/middlewarectx"
	authservice "github.com/magabrotheeeer/carwash-booking/internal/services/auth"
	bookingservice "github.com/magabrotheeeer/carwash-booking/internal/services/booking"
	reconcilerservice "github.com/magabrotheeeer/carwash-booking/internal/services/reconciler"
	settingsservice "github.com/magabrotheeeer/carwash-booking/internal/services/settings"
	userservice "github.com/magabrotheeeer/carwash-booking/internal/services/users"
)

// Services - бизнес-логика, которую обслуживают маршруты.
type Services struct {
	Auth       *authservice.Service
	Booking    *bookingservice.Service
	Settings   *settingsservice.Service
	Users      *userservice.Service
	Reconciler *reconcilerservice.Service
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, s Services, limiter *middlewarectx.RateLimiter) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.With(middlewarectx.RateLimitMiddleware(logger, limiter)).
			Post("/login", login.New(logger, s.Auth).ServeHTTP)
		r.Get("/login/appearance", appearance.New(logger, s.Settings).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Auth, logger))

			r.Get("/dashboard", dashboard.New(logger, s.Booking).ServeHTTP)
			r.With(middlewarectx.RateLimitMiddleware(logger, limiter)).
				Post("/registrations", create.New(logger, s.Booking).ServeHTTP)
			r.Get("/registrations/history", history.New(logger, s.Booking).ServeHTTP)
			r.Delete("/registrations/{id}", cancel.New(logger, s.Booking).ServeHTTP)
			r.Patch("/registrations/{id}/parking-spot", parking.New(logger, s.Booking).ServeHTTP)

			r.Get("/profile", profileread.New(logger, s.Users).ServeHTTP)
			r.Put("/profile", profileupdate.New(logger, s.Users).ServeHTTP)

			// Только администратор
			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.AdminOnly(logger))

				r.Get("/settings", settingsread.New(logger, s.Settings).ServeHTTP)
				r.Put("/settings", settingsupdate.New(logger, s.Settings).ServeHTTP)

				r.Post("/window/open", window.New(logger, s.Settings, window.Open).ServeHTTP)
				r.Post("/window/close", window.New(logger, s.Settings, window.Close).ServeHTTP)
				r.Delete("/window", window.New(logger, s.Settings, window.Clear).ServeHTTP)

				r.Get("/users", userlist.New(logger, s.Users).ServeHTTP)
				r.Post("/users", usercreate.New(logger, s.Users).ServeHTTP)
				r.Put("/users/{id}", userupdate.New(logger, s.Users).ServeHTTP)
				r.Delete("/users/{id}", userremove.New(logger, s.Users).ServeHTTP)
				r.Post("/users/{id}/reset-password", userreset.New(logger, s.Users).ServeHTTP)

				r.Get("/registrations/week", roster.New(logger, s.Booking).ServeHTTP)
				r.Get("/overbooking", overbooking.New(logger, s.Reconciler).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
