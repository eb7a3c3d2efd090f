// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель - единообразно формировать структурированные поля лога.
package sl

import (
	"log/slog"

	"github.com/magabrotheeeer/carwash-booking/internal/lib/week"
)

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
//
// Пример:
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Week возвращает группу "week" с номером недели, годом недели, месяцем и годом.
func Week(k week.Key) slog.Attr {
	return slog.Group("week",
		slog.Int("number", k.Week),
		slog.Int("week_year", k.WeekYear),
		slog.Int("month", k.Month),
		slog.Int("year", k.Year),
	)
}
