// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков. Пакет упрощает возврат
// успешных ответов, ошибок и сообщений валидации в едином формате.
package response

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status - статус запроса ("OK" или "Error").
// Поле Error - текст ошибки (опционально, при неуспехе).
// Поле Data - данные ответа (опционально).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse - структура ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK - значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError - значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// ErrorWithData возвращает Response с ошибкой и данными.
// Нужен, когда клиенту важно не только сообщение, но и новое состояние.
func ErrorWithData(msg string, data any) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// FromError подбирает HTTP-статус и текст ответа по ошибке сервиса.
// Детали ошибок хранилища клиенту не отдаются.
func FromError(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusUnprocessableEntity, Error(validationMessage(err))
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, Error("invalid credentials")
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, Error("access denied")
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, Error("not found")
	case errors.Is(err, models.ErrCapacityExhausted), errors.Is(err, models.ErrAlreadyRegistered):
		return http.StatusConflict, Error("registration is not possible")
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, Error("storage is temporarily unavailable, try again")
	default:
		return http.StatusInternalServerError, Error("internal error")
	}
}

// RenderError отвечает клиенту статусом и сообщением, подобранными FromError.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := FromError(err)
	render.Status(r, status)
	render.JSON(w, r, resp)
}

// validationMessage оставляет от цепочки ошибки только последнюю содержательную часть,
// без префиксов операций.
func validationMessage(err error) string {
	parts := strings.Split(err.Error(), ": ")
	if len(parts) < 3 {
		return "invalid request data"
	}
	return parts[len(parts)-2]
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "url":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid url", err.Field()))
		case "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at least %s characters", err.Field(), err.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s characters", err.Field(), err.Param()))
		case "gt":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be greater than %s", err.Field(), err.Param()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}
