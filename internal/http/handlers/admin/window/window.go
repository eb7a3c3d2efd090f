// Package window реализует ручное управление окном записи на текущую неделю:
// открыть, закрыть или снять оба переопределения.
package window

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

// Action - что сделать с окном записи.
type Action string

const (
	// Open открывает запись на текущую неделю.
	Open Action = "open"
	// Close закрывает запись на текущую неделю.
	Close Action = "close"
	// Clear снимает ручные переопределения.
	Clear Action = "clear"
)

// Handler выполняет одно Action.
type Handler struct {
	log     *slog.Logger
	service Service
	action  Action
}

// Service меняет ручные переопределения окна записи.
type Service interface {
	OpenCurrentWeek(ctx context.Context) (models.AppSettings, error)
	CloseCurrentWeek(ctx context.Context) (models.AppSettings, error)
	ClearOverrides(ctx context.Context) (models.AppSettings, error)
}

// New создает Handler для action.
func New(log *slog.Logger, service Service, action Action) *Handler {
	return &Handler{
		log:     log,
		service: service,
		action:  action,
	}
}

// ServeHTTP godoc
// @Summary Управление окном записи
// @Description POST /admin/window/open и /admin/window/close ставят переопределение на текущую неделю,
// @Description DELETE /admin/window снимает оба переопределения.
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.AppSettings}
// @Router /admin/window/open [post]
// @Router /admin/window/close [post]
// @Router /admin/window [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.window"
	log := h.log.With(
		slog.String("op", op),
		slog.String("action", string(h.action)),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var (
		s   models.AppSettings
		err error
	)
	switch h.action {
	case Open:
		s, err = h.service.OpenCurrentWeek(r.Context())
	case Close:
		s, err = h.service.CloseCurrentWeek(r.Context())
	default:
		s, err = h.service.ClearOverrides(r.Context())
	}
	if err != nil {
		log.Error("failed to change booking window", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	log.Info("booking window changed")
	render.JSON(w, r, response.StatusOKWithData(s))
}
