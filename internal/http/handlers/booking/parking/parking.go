// Package parking реализует изменение места парковки у существующей записи.
// Остальные поля записи через этот обработчик не меняются.
package parking

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/carwash-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/carwash-booking/internal/http/response"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

// Handler обрабатывает изменение места парковки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service меняет место парковки, если actor владелец записи или администратор.
type Service interface {
	UpdateParkingSpot(ctx context.Context, actor models.Actor, id, spot string) (*models.Registration, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Изменить место парковки
// @Tags Booking
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID записи"
// @Param request body models.ParkingSpotRequest true "Новое место"
// @Success 200 {object} response.Response{data=models.Registration}
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /registrations/{id}/parking-spot [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.booking.parking"
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

	var req models.ParkingSpotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	reg, err := h.service.UpdateParkingSpot(r.Context(), actor, chi.URLParam(r, "id"), req.ParkingSpot)
	if err != nil {
		log.Error("failed to update parking spot", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(reg))
}
