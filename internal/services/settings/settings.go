// Package settings управляет единственной строкой глобальных настроек:
// вместимостью недели, ручным открытием и закрытием окна записи и картинкой входа.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/carwash-booking/internal/cache"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/week"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

// Repository описывает чтение и запись строки настроек.
type Repository interface {
	GetSettings(ctx context.Context) (models.AppSettings, error)
	SaveSettings(ctx context.Context, s models.AppSettings) error
}

// Invalidator удаляет устаревшие снимки из кэша.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Service реализует операции администратора над настройками.
type Service struct {
	repo         Repository
	cache        Invalidator
	log          *slog.Logger
	loc          *time.Location
	storeTimeout time.Duration
	now          func() time.Time
}

// NewSettingsService создает новый экземпляр Service. cache может быть nil.
func NewSettingsService(repo Repository, cache Invalidator, log *slog.Logger,
	loc *time.Location, storeTimeout time.Duration) *Service {
	if loc == nil {
		loc = time.Local
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Service{
		repo:         repo,
		cache:        cache,
		log:          log,
		loc:          loc,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get возвращает текущие настройки.
func (s *Service) Get(ctx context.Context) (models.AppSettings, error) {
	const op = "settings.Get"
	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	res, err := s.repo.GetSettings(tctx)
	if err != nil {
		return models.AppSettings{}, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// LoginImageURL возвращает картинку для страницы входа.
func (s *Service) LoginImageURL(ctx context.Context) (string, error) {
	res, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	if res.LoginImageURL == nil || *res.LoginImageURL == "" {
		return models.DefaultLoginImageURL, nil
	}
	return *res.LoginImageURL, nil
}

// Update применяет частичное изменение настроек.
func (s *Service) Update(ctx context.Context, upd models.SettingsUpdate) (models.AppSettings, error) {
	const op = "settings.Update"
	if upd.WeeklyCapacity != nil && *upd.WeeklyCapacity <= 0 {
		return models.AppSettings{}, fmt.Errorf("%s: weekly capacity must be positive: %w", op, models.ErrValidation)
	}

	return s.mutate(ctx, op, func(cur *models.AppSettings, _ week.Key) {
		if upd.WeeklyCapacity != nil {
			cur.WeeklyCapacity = *upd.WeeklyCapacity
		}
		if upd.LoginImageURL != nil {
			v := *upd.LoginImageURL
			cur.LoginImageURL = &v
		}
		if upd.AutoOpenEnabled != nil {
			cur.AutoOpenEnabled = *upd.AutoOpenEnabled
		}
	})
}

// OpenCurrentWeek открывает запись на текущую неделю и снимает её ручное закрытие.
func (s *Service) OpenCurrentWeek(ctx context.Context) (models.AppSettings, error) {
	return s.mutate(ctx, "settings.OpenCurrentWeek", func(cur *models.AppSettings, k week.Key) {
		cur.ManualOpenWeek, cur.ManualOpenYear = intPtr(k.Week), intPtr(k.WeekYear)
		if matches(cur.ManualCloseWeek, cur.ManualCloseYear, k) {
			cur.ManualCloseWeek, cur.ManualCloseYear = nil, nil
		}
	})
}

// CloseCurrentWeek закрывает запись на текущую неделю. Закрытие важнее открытия,
// но открытие той же недели всё равно снимается, чтобы состояние было однозначным.
func (s *Service) CloseCurrentWeek(ctx context.Context) (models.AppSettings, error) {
	return s.mutate(ctx, "settings.CloseCurrentWeek", func(cur *models.AppSettings, k week.Key) {
		cur.ManualCloseWeek, cur.ManualCloseYear = intPtr(k.Week), intPtr(k.WeekYear)
		if matches(cur.ManualOpenWeek, cur.ManualOpenYear, k) {
			cur.ManualOpenWeek, cur.ManualOpenYear = nil, nil
		}
	})
}

// ClearOverrides снимает ручное открытие и закрытие.
func (s *Service) ClearOverrides(ctx context.Context) (models.AppSettings, error) {
	return s.mutate(ctx, "settings.ClearOverrides", func(cur *models.AppSettings, _ week.Key) {
		cur.ManualOpenWeek, cur.ManualOpenYear = nil, nil
		cur.ManualCloseWeek, cur.ManualCloseYear = nil, nil
	})
}

func (s *Service) mutate(ctx context.Context, op string, apply func(*models.AppSettings, week.Key)) (models.AppSettings, error) {
	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	cur, err := s.repo.GetSettings(tctx)
	if err != nil {
		return models.AppSettings{}, fmt.Errorf("%s: %w", op, err)
	}

	k := week.Of(s.now().In(s.loc))
	apply(&cur, k)

	if err := s.repo.SaveSettings(tctx, cur); err != nil {
		return models.AppSettings{}, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, cache.SettingsKey); err != nil {
			s.log.Warn("failed to invalidate settings cache", sl.Err(err))
		}
	}
	s.log.Info("settings updated", slog.String("op", op), sl.Week(k))
	return cur, nil
}

func matches(w, y *int, k week.Key) bool {
	return w != nil && y != nil && *w == k.Week && *y == k.WeekYear
}

func intPtr(v int) *int { return &v }
