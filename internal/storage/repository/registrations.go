package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

const registrationColumns = `id, user_id, car_id, user_name, car_details, date,
			      week_number, week_year, month, year, parking_spot`

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var r models.Registration
	if err := row.Scan(&r.ID, &r.UserID, &r.CarID, &r.UserName, &r.CarDetails, &r.Date,
		&r.WeekNumber, &r.WeekYear, &r.Month, &r.Year, &r.ParkingSpot); err != nil {
		return nil, err
	}
	r.Date = r.Date.UTC()
	return &r, nil
}

func (s *Storage) queryRegistrations(ctx context.Context, op, query string, args ...any) ([]models.Registration, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Registration, 0)
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListRegistrations возвращает все записи, новые первыми.
func (s *Storage) ListRegistrations(ctx context.Context) ([]models.Registration, error) {
	const op = "storage.ListRegistrations"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + registrationColumns + `
			  FROM registrations
			  ORDER BY date DESC, id`
	return s.queryRegistrations(ctx, op, query)
}

// ListRegistrationsByWeek возвращает записи одной недели в порядке создания.
// weekYear - год недели по ISO-8601.
func (s *Storage) ListRegistrationsByWeek(ctx context.Context, weekNumber, weekYear int) ([]models.Registration, error) {
	const op = "storage.ListRegistrationsByWeek"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + registrationColumns + `
			  FROM registrations
			  WHERE week_number = $1 AND week_year = $2
			  ORDER BY date, id`
	return s.queryRegistrations(ctx, op, query, weekNumber, weekYear)
}

// GetRegistration возвращает запись по ID.
func (s *Storage) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	const op = "storage.GetRegistration"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	r, err := scanRegistration(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// CreateRegistrationGuarded вставляет запись только если в её неделе есть свободное место
// и у пользователя нет записи в той же неделе или том же месяце.
//
// Строка настроек блокируется FOR UPDATE до конца транзакции, поэтому
// параллельные вставки проверяют вместимость по очереди.
func (s *Storage) CreateRegistrationGuarded(ctx context.Context, r models.Registration) error {
	const op = "storage.CreateRegistrationGuarded"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO settings (id, weekly_capacity) VALUES (1, $1)
			  ON CONFLICT (id) DO NOTHING`, models.DefaultWeeklyCapacity); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var capacity int
	if err = tx.QueryRowContext(ctx,
		`SELECT weekly_capacity FROM settings WHERE id = 1 FOR UPDATE`).Scan(&capacity); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var taken int
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE week_number = $1 AND week_year = $2`,
		r.WeekNumber, r.WeekYear).Scan(&taken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if capacity-taken <= 0 {
		return fmt.Errorf("%s: %w", op, models.ErrCapacityExhausted)
	}

	var exists bool
	if err = tx.QueryRowContext(ctx, `SELECT EXISTS (
			      SELECT 1 FROM registrations
			      WHERE user_id = $1
			        AND ((week_number = $2 AND week_year = $3) OR (month = $4 AND year = $5))
			  )`, r.UserID, r.WeekNumber, r.WeekYear, r.Month, r.Year).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return fmt.Errorf("%s: %w", op, models.ErrAlreadyRegistered)
	}

	query := `INSERT INTO registrations (id, user_id, car_id, user_name, car_details, date,
			      week_number, week_year, month, year, parking_spot)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = tx.ExecContext(ctx, query,
		r.ID, r.UserID, r.CarID, r.UserName, r.CarDetails, r.Date,
		r.WeekNumber, r.WeekYear, r.Month, r.Year, r.ParkingSpot)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, models.ErrAlreadyRegistered)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteRegistration удаляет запись по ID и возвращает количество удалённых строк.
func (s *Storage) DeleteRegistration(ctx context.Context, id string) (int, error) {
	const op = "storage.DeleteRegistration"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// UpdateParkingSpot меняет только место парковки. Остальные поля записи не трогаются.
func (s *Storage) UpdateParkingSpot(ctx context.Context, id, spot string) (int, error) {
	const op = "storage.UpdateParkingSpot"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE registrations SET parking_spot = $1 WHERE id = $2`, spot, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// OverbookedWeeks возвращает недели, начиная с (fromWeek, fromWeekYear),
// в которых записей больше capacity. Прошедшие недели не рассматриваются.
func (s *Storage) OverbookedWeeks(ctx context.Context, capacity, fromWeek, fromWeekYear int) ([]models.WeekLoad, error) {
	const op = "storage.OverbookedWeeks"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT week_number, week_year, COUNT(*)
			  FROM registrations
			  WHERE (week_year, week_number) >= ($2, $3)
			  GROUP BY week_number, week_year
			  HAVING COUNT(*) > $1
			  ORDER BY week_year, week_number`
	rows, err := s.DB.QueryContext(ctx, query, capacity, fromWeekYear, fromWeek)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.WeekLoad, 0)
	for rows.Next() {
		var w models.WeekLoad
		if err = rows.Scan(&w.WeekNumber, &w.Year, &w.Count); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
