// Package appearance отдаёт настройки внешнего вида страницы входа.
package appearance

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/carwash-booking/internal/http/response"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
)

// Handler обрабатывает запрос картинки страницы входа.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service возвращает адрес картинки для страницы входа.
type Service interface {
	LoginImageURL(ctx context.Context) (string, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Картинка страницы входа
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 500 {object} response.ErrorResponse
// @Router /login/appearance [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.appearance"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	url, err := h.service.LoginImageURL(r.Context())
	if err != nil {
		log.Error("failed to load login image", sl.Err(err))
		response.RenderError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]string{
		"login_image_url": url,
	}))
}
