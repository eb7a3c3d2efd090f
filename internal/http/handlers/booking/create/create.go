// Package create реализует HTTP-обработчик записи автомобиля на текущую неделю.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/carwash-booking/internal/http/middlewarectx"
	"github.com/magabrotheeeer/carwash-booking/internal/http/response"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
	"github.com/magabrotheeeer/carwash-booking/internal/services/booking"
)

// Handler обрабатывает попытку записи.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service выполняет транзакцию записи.
type Service interface {
	Submit(ctx context.Context, actor models.Actor, req models.RegistrationRequest) (*booking.Outcome, error)
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
// @Summary Записаться на мойку
// @Description Записывает автомобиль пользователя на текущую неделю. Если за время
// @Description заполнения формы места закончились или окно закрылось, возвращает 409
// @Description и новое состояние формы.
// @Tags Booking
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.RegistrationRequest true "Автомобиль и место парковки"
// @Success 201 {object} response.Response{data=models.Registration}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.Response{data=booking.Outcome} "Запись невозможна"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 503 {object} response.ErrorResponse "Хранилище не ответило вовремя"
// @Router /registrations [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.booking.create"
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

	var req models.RegistrationRequest
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

	outcome, err := h.service.Submit(r.Context(), actor, req)
	if err != nil {
		log.Error("failed to register", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	if !outcome.Accepted {
		log.Info("registration not accepted", slog.String("state", string(outcome.State)))
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.ErrorWithData(string(outcome.State), outcome))
		return
	}

	log.Info("registration accepted", slog.String("registration_id", outcome.Registration.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(outcome.Registration))
}
