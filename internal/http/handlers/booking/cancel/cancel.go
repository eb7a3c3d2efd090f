// Package cancel реализует отмену записи владельцем или администратором.
package cancel

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/carwash-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/carwash-booking/internal/http/response"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

// Handler обрабатывает отмену записи.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service удаляет запись, если actor её владелец или администратор.
type Service interface {
	Cancel(ctx context.Context, actor models.Actor, id string) error
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отменить запись
// @Tags Booking
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID записи"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse "Чужая запись"
// @Failure 404 {object} response.ErrorResponse "Запись не найдена"
// @Router /registrations/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.booking.cancel"
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

	id := chi.URLParam(r, "id")
	if id == "" {
		log.Info("empty registration id")
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid id"))
		return
	}

	if err := h.service.Cancel(r.Context(), actor, id); err != nil {
		log.Error("failed to cancel registration", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("registration cancelled", slog.String("registration_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"deleted_id": id,
	}))
}
