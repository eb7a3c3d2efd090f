// Package reconciler находит недели, где записей оказалось больше, чем мест,
// и оповещает об этом администраторов.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/carwash-booking/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/week"
	"github.com/magabrotheeeer/carwash-booking/internal/metrics"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

// Repository описывает чтение настроек и загрузки по неделям.
type Repository interface {
	GetSettings(ctx context.Context) (models.AppSettings, error)
	OverbookedWeeks(ctx context.Context, capacity, fromWeek, fromWeekYear int) ([]models.WeekLoad, error)
}

// Publisher отправляет оповещение в брокер.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Service выполняет проверку перебронирования.
type Service struct {
	repo         Repository
	publisher    Publisher
	metrics      *metrics.Metrics
	log          *slog.Logger
	loc          *time.Location
	storeTimeout time.Duration
	now          func() time.Time

	mu sync.Mutex
	// alerted - сколько записей было в неделе при последнем оповещении.
	alerted map[week.Key]int
}

// NewReconcilerService создает новый экземпляр Service. publisher может быть nil:
// тогда оповещения только пишутся в лог. loc - часовой пояс, в котором считается неделя.
func NewReconcilerService(repo Repository, publisher Publisher, m *metrics.Metrics,
	log *slog.Logger, loc *time.Location, storeTimeout time.Duration) *Service {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:         repo,
		publisher:    publisher,
		metrics:      m,
		log:          log,
		loc:          loc,
		storeTimeout: storeTimeout,
		now:          time.Now,
		alerted:      make(map[week.Key]int),
	}
}

// Detect возвращает оповещения по текущей и будущим неделям, где записей больше
// текущей вместимости. Прошедшие недели уже не исправить, они не проверяются.
func (s *Service) Detect(ctx context.Context) ([]models.OverbookingAlert, error) {
	const op = "reconciler.Detect"
	tctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	settings, err := s.repo.GetSettings(tctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cur := week.Of(s.now().In(s.loc))
	loads, err := s.repo.OverbookedWeeks(tctx, settings.WeeklyCapacity, cur.Week, cur.WeekYear)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	detectedAt := s.now().UTC()
	alerts := make([]models.OverbookingAlert, 0, len(loads))
	for _, l := range loads {
		alerts = append(alerts, models.OverbookingAlert{
			WeekNumber: l.WeekNumber,
			Year:       l.Year,
			Count:      l.Count,
			Capacity:   settings.WeeklyCapacity,
			Excess:     l.Count - settings.WeeklyCapacity,
			DetectedAt: detectedAt,
		})
	}
	return alerts, nil
}

// Run выполняет одну проверку. Об одной и той же неделе оповещение публикуется
// повторно, только если записей в ней стало больше. Ошибка публикации не прерывает
// обход остальных недель, а неделя остаётся кандидатом на следующий запуск.
func (s *Service) Run(ctx context.Context) error {
	const op = "reconciler.Run"
	log := s.log.With(slog.String("op", op))

	alerts, err := s.Detect(ctx)
	if err != nil {
		s.metrics.ReconcileRun("error")
		log.Error("failed to detect overbooked weeks", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.SetOverbookedWeeks(len(alerts))

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[week.Key]bool, len(alerts))
	for _, a := range alerts {
		k := week.Key{Week: a.WeekNumber, WeekYear: a.Year}
		seen[k] = true
		if prev, ok := s.alerted[k]; ok && a.Count <= prev {
			continue
		}

		log.Warn("week is overbooked",
			slog.Int("week_number", a.WeekNumber),
			slog.Int("year", a.Year),
			slog.Int("count", a.Count),
			slog.Int("capacity", a.Capacity),
		)
		if s.publisher != nil {
			if err := s.publisher.Publish(rabbitmq.OverbookingRoutingKey, a); err != nil {
				log.Error("failed to publish overbooking alert", sl.Err(err))
				continue
			}
		}
		s.alerted[k] = a.Count
	}
	for k := range s.alerted {
		if !seen[k] {
			delete(s.alerted, k)
		}
	}

	if len(alerts) == 0 {
		log.Debug("no overbooked weeks")
	}
	s.metrics.ReconcileRun("ok")
	return nil
}
