// Package settingsupdate меняет вместимость недели, картинку входа и автоматическое открытие.
package settingsupdate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/carwash-booking/internal/http/response"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

type Service interface {
	Update(ctx context.Context, upd models.SettingsUpdate) (models.AppSettings, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Изменить настройки
// @Description Меняются только переданные поля. Вместимость должна быть больше нуля.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.SettingsUpdate true "Изменения"
// @Success 200 {object} response.Response{data=models.AppSettings}
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/settings [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.settingsupdate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.SettingsUpdate
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

	s, err := h.service.Update(r.Context(), req)
	if err != nil {
		log.Error("failed to update settings", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("settings updated", slog.Int("weekly_capacity", s.WeeklyCapacity))
	render.JSON(w, r, response.StatusOKWithData(s))
}
