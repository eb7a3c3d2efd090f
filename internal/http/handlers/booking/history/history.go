// Package history отдаёт историю записей: администратору все, пользователю только свои.
package history

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
)

// Handler обрабатывает запрос истории.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service возвращает историю записей, отсортированную от новых к старым.
type Service interface {
	History(ctx context.Context, actor models.Actor, query string) ([]models.Registration, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary История записей
// @Description Поиск без учёта регистра по имени пользователя и описанию автомобиля.
// @Tags Booking
// @Produce  json
// @Security BearerAuth
// @Param q query string false "Строка поиска"
// @Success 200 {object} response.Response{data=[]models.Registration}
// @Router /registrations/history [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.booking.history"
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

	regs, err := h.service.History(r.Context(), actor, r.URL.Query().Get("q"))
	if err != nil {
		log.Error("failed to load history", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Debug("history loaded", slog.Int("count", len(regs)))
	render.JSON(w, r, response.StatusOKWithData(regs))
}
