// Package dashboard отдаёт главную страницу пользователя: неделю, окно записи,
// квоты и состояние формы записи.
package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/carwash-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/carwash-booking/internal/http/response"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
	"github.com/magabrotheeeer/carwash-booking/internal/services/booking"
)

// Handler обрабатывает запрос главной страницы.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service строит состояние главной страницы для пользователя.
type Service interface {
	Dashboard(ctx context.Context, actor models.Actor) (*booking.Dashboard, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Главная страница
// @Description Текущая неделя, открыто ли окно записи, квоты и состояние формы.
// @Tags Booking
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=booking.Dashboard}
// @Failure 401 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse "Хранилище не ответило вовремя"
// @Router /dashboard [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.booking.dashboard"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	actor, ok := middlewarectx.ActorFrom(r.Context())
	if !ok {
		log.Error("user identification missing")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("user identification missing"))
		return
	}

	d, err := h.service.Dashboard(r.Context(), actor)
	if err != nil {
		log.Error("failed to build dashboard", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(d))
}
