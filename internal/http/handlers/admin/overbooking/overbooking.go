// Package overbooking показывает администратору недели, где записей больше, чем мест.
package overbooking

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/carwash-booking/internal/http/response"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	Detect(ctx context.Context) ([]models.OverbookingAlert, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Перебронированные недели
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.OverbookingAlert}
// @Router /admin/overbooking [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.overbooking"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	alerts, err := h.service.Detect(r.Context())
	if err != nil {
		log.Error("failed to detect overbooked weeks", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	if len(alerts) > 0 {
		log.Warn("overbooked weeks present", slog.Int("count", len(alerts)))
	}

	render.JSON(w, r, response.StatusOKWithData(alerts))
}
