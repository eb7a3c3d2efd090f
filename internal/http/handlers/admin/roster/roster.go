// Package roster отдаёт список записей на текущую неделю для отчёта администратора.
package roster

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/carwash-booking/internal/http/response"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/week"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	WeekRoster(ctx context.Context) (week.Key, []models.Registration, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// Roster - записи одной недели.
type Roster struct {
	WeekNumber    int                   `json:"week_number"`
	WeekYear      int                   `json:"week_year"`
	Month         int                   `json:"month"`
	Year          int                   `json:"year"`
	Registrations []models.Registration `json:"registrations"`
}

// ServeHTTP godoc
// @Summary Записи текущей недели
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=Roster}
// @Router /admin/registrations/week [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.roster"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	k, regs, err := h.service.WeekRoster(r.Context())
	if err != nil {
		log.Error("failed to load week roster", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}
	if regs == nil {
		regs = []models.Registration{}
	}

	render.JSON(w, r, response.StatusOKWithData(Roster{
		WeekNumber:    k.Week,
		WeekYear:      k.WeekYear,
		Month:         k.Month,
		Year:          k.Year,
		Registrations: regs,
	}))
}
