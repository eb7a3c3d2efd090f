package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

// GetSettings возвращает строку настроек. Если строки ещё нет, возвращаются значения по умолчанию.
func (s *Storage) GetSettings(ctx context.Context) (models.AppSettings, error) {
	const op = "storage.GetSettings"
	select {
	case <-ctx.Done():
		return models.AppSettings{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT weekly_capacity, manual_open_week, manual_open_year,
			      manual_close_week, manual_close_year, login_image_url, auto_open_enabled
			  FROM settings WHERE id = 1`
	var (
		res                  models.AppSettings
		openWeek, openYear   sql.NullInt64
		closeWeek, closeYear sql.NullInt64
		loginImage           sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, query).Scan(&res.WeeklyCapacity, &openWeek, &openYear,
		&closeWeek, &closeYear, &loginImage, &res.AutoOpenEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.AppSettings{}, fmt.Errorf("%s: %w", op, err)
	}

	res.ManualOpenWeek = intPtr(openWeek)
	res.ManualOpenYear = intPtr(openYear)
	res.ManualCloseWeek = intPtr(closeWeek)
	res.ManualCloseYear = intPtr(closeYear)
	if loginImage.Valid {
		res.LoginImageURL = &loginImage.String
	}
	return res, nil
}

// SaveSettings сохраняет строку настроек целиком.
func (s *Storage) SaveSettings(ctx context.Context, settings models.AppSettings) error {
	const op = "storage.SaveSettings"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var loginImage sql.NullString
	if settings.LoginImageURL != nil {
		loginImage = sql.NullString{String: *settings.LoginImageURL, Valid: true}
	}

	query := `INSERT INTO settings (id, weekly_capacity, manual_open_week, manual_open_year,
			      manual_close_week, manual_close_year, login_image_url, auto_open_enabled)
			  VALUES (1, $1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (id) DO UPDATE
			  SET weekly_capacity = EXCLUDED.weekly_capacity,
			      manual_open_week = EXCLUDED.manual_open_week,
			      manual_open_year = EXCLUDED.manual_open_year,
			      manual_close_week = EXCLUDED.manual_close_week,
			      manual_close_year = EXCLUDED.manual_close_year,
			      login_image_url = EXCLUDED.login_image_url,
			      auto_open_enabled = EXCLUDED.auto_open_enabled`
	_, err := s.DB.ExecContext(ctx, query, settings.WeeklyCapacity,
		nullInt(settings.ManualOpenWeek), nullInt(settings.ManualOpenYear),
		nullInt(settings.ManualCloseWeek), nullInt(settings.ManualCloseYear),
		loginImage, settings.AutoOpenEnabled)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
