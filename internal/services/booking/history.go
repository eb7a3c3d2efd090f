package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/magabrotheeeer/carwash-booking/internal/lib/week"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

// History возвращает записи, новые первыми. Администратор видит все записи,
// пользователь только свои. query ищет без учёта регистра по имени и автомобилю.
func (s *Service) History(ctx context.Context, actor models.Actor, query string) ([]models.Registration, error) {
	const op = "booking.History"

	_, regs, err := s.loadState(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	result := make([]models.Registration, 0, len(regs))
	for _, r := range regs {
		if !actor.IsAdmin() && r.UserID != actor.UserID {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(r.UserName), q) &&
			!strings.Contains(strings.ToLower(r.CarDetails), q) {
			continue
		}
		result = append(result, r)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

// WeekRoster возвращает записи текущей недели для отчёта администратора.
func (s *Service) WeekRoster(ctx context.Context) (week.Key, []models.Registration, error) {
	const op = "booking.WeekRoster"

	current := week.Of(s.now())
	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	regs, err := s.repo.ListRegistrationsByWeek(tctx, current.Week, current.WeekYear)
	if err != nil {
		return current, nil, fmt.Errorf("%s: %w", op, err)
	}
	return current, regs, nil
}
