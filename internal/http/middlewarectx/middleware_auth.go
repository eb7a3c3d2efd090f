// Package middlewarectx содержит HTTP middleware для обработки и проверки JWT токенов,
// проверки роли и ограничения частоты запросов.
//
// JWTMiddleware проверяет наличие и валидность JWT токена в заголовке Authorization
// и в случае успеха добавляет в контекст идентификатор пользователя и роль.
// В случае ошибки проверки возвращает HTTP 401 Unauthorized с сообщением об ошибке.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/carwash-booking/internal/http/response"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserID - ключ для идентификатора пользователя в контексте
	UserID Key = "user_id"
	// Role - ключ для роли пользователя в контексте
	Role Key = "role"
)

// Service описывает интерфейс сервиса для валидации JWT токена.
type Service interface {
	ValidateToken(token string) (models.Actor, error)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
func JWTMiddleware(auth Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Info("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}

			actor, err := auth.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Info("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// WithActor кладёт в контекст идентификатор пользователя и роль.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	ctx = context.WithValue(ctx, UserID, actor.UserID)
	return context.WithValue(ctx, Role, actor.Role)
}

// ActorFrom достаёт из контекста пользователя, положенного JWTMiddleware.
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	id, ok := ctx.Value(UserID).(string)
	if !ok || id == "" {
		return models.Actor{}, false
	}
	role, _ := ctx.Value(Role).(string)
	return models.Actor{UserID: id, Role: role}, true
}
