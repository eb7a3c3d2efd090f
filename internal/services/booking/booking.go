// Package booking содержит сценарии записи на мойку: главную страницу,
// транзакцию записи, отмену, смену места парковки и историю.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/carwash-booking/internal/cache"
	"github.com/magabrotheeeer/carwash-booking/internal/lib/sl"
	"github.com/magabrotheeeer/carwash-booking/internal/metrics"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
	"github.com/magabrotheeeer/carwash-booking/internal/policy"
)

// Repository описывает операции хранилища, нужные сервису записи.
type Repository interface {
	// ListRegistrations возвращает все записи, новые первыми.
	ListRegistrations(ctx context.Context) ([]models.Registration, error)
	// ListRegistrationsByWeek возвращает записи одной недели.
	ListRegistrationsByWeek(ctx context.Context, weekNumber, weekYear int) ([]models.Registration, error)
	// GetRegistration возвращает запись по ID или models.ErrNotFound.
	GetRegistration(ctx context.Context, id string) (*models.Registration, error)
	// CreateRegistrationGuarded атомарно проверяет вместимость недели и вставляет запись.
	CreateRegistrationGuarded(ctx context.Context, r models.Registration) error
	// DeleteRegistration удаляет запись и возвращает количество удалённых строк.
	DeleteRegistration(ctx context.Context, id string) (int, error)
	// UpdateParkingSpot меняет место парковки и возвращает количество изменённых строк.
	UpdateParkingSpot(ctx context.Context, id, spot string) (int, error)
	// GetSettings возвращает глобальные настройки.
	GetSettings(ctx context.Context) (models.AppSettings, error)
}

// UserReader возвращает пользователя по ID.
type UserReader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Cache описывает кэш снимков настроек и записей.
//
// Снимок кладётся в кэш через SetIfGeneration с поколением, прочитанным до
// обращения к хранилищу: если между чтением и заполнением прошёл Invalidate,
// устаревший снимок отбрасывается.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Generation(ctx context.Context, key string) (int64, error)
	SetIfGeneration(ctx context.Context, key string, value any, gen int64, expiration time.Duration) (bool, error)
	Invalidate(ctx context.Context, keys ...string) error
}

// Options - параметры сервиса. Нулевые поля заменяются значениями по умолчанию.
type Options struct {
	// Location - часовой пояс, в котором считаются неделя и окно записи.
	Location *time.Location
	// StoreTimeout - дедлайн на каждое обращение к хранилищу.
	StoreTimeout time.Duration
	// CacheTTL - время жизни снимков в кэше.
	CacheTTL time.Duration
	Now      func() time.Time
	NewID    func() string
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Service реализует сценарии записи поверх хранилища и кэша.
type Service struct {
	repo    Repository
	users   UserReader
	cache   Cache
	metrics *metrics.Metrics
	log     *slog.Logger
	opts    Options
}

// NewBookingService создает новый экземпляр Service. cache и m могут быть nil.
func NewBookingService(repo Repository, users UserReader, cache Cache, m *metrics.Metrics,
	log *slog.Logger, opts Options) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		cache:   cache,
		metrics: m,
		log:     log,
		opts:    opts.withDefaults(),
	}
}

// Dashboard - то, что показывается пользователю на главной странице.
type Dashboard struct {
	WeekNumber             int                  `json:"week_number"`
	WeekYear               int                  `json:"week_year"`
	Month                  int                  `json:"month"`
	Year                   int                  `json:"year"`
	Open                   bool                 `json:"window_open"`
	State                  policy.State         `json:"state"`
	HasRegisteredThisWeek  bool                 `json:"has_registered_this_week"`
	HasRegisteredThisMonth bool                 `json:"has_registered_this_month"`
	WeeklyCapacity         int                  `json:"weekly_capacity"`
	WeeklyTaken            int                  `json:"weekly_taken"`
	WeeklyRemaining        int                  `json:"weekly_remaining"`
	Registration           *models.Registration `json:"registration,omitempty"`
}

func newDashboard(d policy.Decision) *Dashboard {
	return &Dashboard{
		WeekNumber:             d.Week.Week,
		WeekYear:               d.Week.WeekYear,
		Month:                  d.Week.Month,
		Year:                   d.Week.Year,
		Open:                   d.Open,
		State:                  d.State,
		HasRegisteredThisWeek:  d.HasRegisteredThisWeek,
		HasRegisteredThisMonth: d.HasRegisteredThisMonth,
		WeeklyCapacity:         d.WeeklyCapacity,
		WeeklyTaken:            d.WeeklyTaken,
		WeeklyRemaining:        d.WeeklyRemaining,
		Registration:           d.Current,
	}
}

// Outcome - результат попытки записи. Accepted=false не ошибка:
// State показывает, почему запись не прошла.
type Outcome struct {
	Accepted     bool                 `json:"accepted"`
	State        policy.State         `json:"state"`
	Registration *models.Registration `json:"registration,omitempty"`
	Dashboard    *Dashboard           `json:"dashboard,omitempty"`
}

func (s *Service) now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}

// loadState читает настройки и записи. При fresh=false сначала смотрит в кэш.
func (s *Service) loadState(ctx context.Context, fresh bool) (models.AppSettings, []models.Registration, error) {
	const op = "booking.loadState"

	var settings models.AppSettings
	var regs []models.Registration

	if !fresh && s.cache != nil {
		okSettings := s.cacheGet(ctx, cache.SettingsKey, &settings)
		okRegs := s.cacheGet(ctx, cache.RegistrationsKey, &regs)
		if okSettings && okRegs {
			return settings, regs, nil
		}
	}

	settingsGen, settingsGenOK := s.cacheGeneration(ctx, cache.SettingsKey)
	regsGen, regsGenOK := s.cacheGeneration(ctx, cache.RegistrationsKey)

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	settings, err := s.repo.GetSettings(tctx)
	if err != nil {
		return models.AppSettings{}, nil, fmt.Errorf("%s: %w", op, err)
	}
	regs, err = s.repo.ListRegistrations(tctx)
	if err != nil {
		return models.AppSettings{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	if settingsGenOK {
		s.cacheSet(ctx, cache.SettingsKey, settings, settingsGen)
	}
	if regsGenOK {
		s.cacheSet(ctx, cache.RegistrationsKey, regs, regsGen)
	}
	return settings, regs, nil
}

func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	found, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.log.Warn("failed to read cache", slog.String("key", key), sl.Err(err))
		return false
	}
	return found
}

func (s *Service) cacheGeneration(ctx context.Context, key string) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	gen, err := s.cache.Generation(ctx, key)
	if err != nil {
		s.log.Warn("failed to read cache generation", slog.String("key", key), sl.Err(err))
		return 0, false
	}
	return gen, true
}

func (s *Service) cacheSet(ctx context.Context, key string, value any, gen int64) {
	stored, err := s.cache.SetIfGeneration(ctx, key, value, gen, s.opts.CacheTTL)
	if err != nil {
		s.log.Warn("failed to write cache", slog.String("key", key), sl.Err(err))
		return
	}
	if !stored {
		s.log.Debug("cache invalidated during read, snapshot dropped", slog.String("key", key))
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cache.RegistrationsKey); err != nil {
		s.log.Warn("failed to invalidate cache", sl.Err(err))
	}
}

// Dashboard возвращает состояние главной страницы для actor.
func (s *Service) Dashboard(ctx context.Context, actor models.Actor) (*Dashboard, error) {
	settings, regs, err := s.loadState(ctx, false)
	if err != nil {
		return nil, err
	}
	return newDashboard(policy.Evaluate(regs, actor.UserID, settings, s.now())), nil
}

// Submit - транзакция записи. Перед записью заново читает настройки и записи
// из хранилища в обход кэша и пересчитывает квоты, затем вставляет запись
// условной операцией, которая сама проверяет вместимость недели.
func (s *Service) Submit(ctx context.Context, actor models.Actor, req models.RegistrationRequest) (*Outcome, error) {
	const op = "booking.Submit"
	log := s.log.With(slog.String("op", op), slog.String("user_id", actor.UserID))

	if req.CarID == "" {
		return nil, fmt.Errorf("%s: car is required: %w", op, models.ErrValidation)
	}

	uctx, cancel := s.withTimeout(ctx)
	user, err := s.users.GetUser(uctx, actor.UserID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	car, ok := user.FindCar(req.CarID)
	if !ok {
		return nil, fmt.Errorf("%s: car %s does not belong to user: %w", op, req.CarID, models.ErrValidation)
	}

	settings, regs, err := s.loadState(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := s.now()
	decision := policy.Evaluate(regs, actor.UserID, settings, now)
	if !decision.Eligible() {
		log.Info("registration rejected", slog.String("state", string(decision.State)), sl.Week(decision.Week))
		s.metrics.RegistrationRejected(string(decision.State))
		return &Outcome{State: decision.State, Dashboard: newDashboard(decision)}, nil
	}

	reg := models.Registration{
		ID:          s.opts.NewID(),
		UserID:      user.ID,
		CarID:       car.ID,
		UserName:    user.FullName(),
		CarDetails:  car.Details(),
		Date:        now.UTC(),
		WeekNumber:  decision.Week.Week,
		WeekYear:    decision.Week.WeekYear,
		Month:       decision.Week.Month,
		Year:        decision.Week.Year,
		ParkingSpot: req.ParkingSpot,
	}

	wctx, cancel := s.withTimeout(ctx)
	err = s.repo.CreateRegistrationGuarded(wctx, reg)
	cancel()
	switch {
	case errors.Is(err, models.ErrCapacityExhausted), errors.Is(err, models.ErrAlreadyRegistered):
		s.invalidate(ctx)
		outcome := s.raceLoss(ctx, actor, err)
		log.Info("registration lost the race", slog.String("state", string(outcome.State)), sl.Err(err))
		s.metrics.RegistrationRejected(string(outcome.State))
		return outcome, nil
	case err != nil:
		log.Error("failed to persist registration", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx)
	s.metrics.RegistrationCreated()
	log.Info("registration created", slog.String("registration_id", reg.ID), sl.Week(decision.Week))

	return &Outcome{Accepted: true, State: policy.StateAlreadyScheduled, Registration: &reg}, nil
}

// raceLoss строит ответ после отказа условной вставки. Состояние берётся
// из нового чтения, а если оно не удалось - из причины отказа.
func (s *Service) raceLoss(ctx context.Context, actor models.Actor, cause error) *Outcome {
	settings, regs, err := s.loadState(ctx, true)
	if err == nil {
		decision := policy.Evaluate(regs, actor.UserID, settings, s.now())
		if !decision.Eligible() {
			return &Outcome{State: decision.State, Dashboard: newDashboard(decision)}
		}
	} else {
		s.log.Warn("failed to refresh state after race loss", sl.Err(err))
	}

	if errors.Is(cause, models.ErrCapacityExhausted) {
		return &Outcome{State: policy.StateWeeklyFull}
	}
	return &Outcome{State: policy.StateAlreadyScheduled}
}

// authorize загружает запись и проверяет, что actor её владелец или администратор.
func (s *Service) authorize(ctx context.Context, actor models.Actor, id string) (*models.Registration, error) {
	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	reg, err := s.repo.GetRegistration(tctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && reg.UserID != actor.UserID {
		return nil, models.ErrForbidden
	}
	return reg, nil
}

// Cancel удаляет запись. Удалять может владелец или администратор.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, id string) error {
	const op = "booking.Cancel"

	reg, err := s.authorize(ctx, actor, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.repo.DeleteRegistration(tctx, reg.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	s.invalidate(ctx)
	s.metrics.RegistrationCancelled()
	s.log.Info("registration cancelled",
		slog.String("registration_id", reg.ID),
		slog.String("by", actor.UserID),
	)
	return nil
}

// UpdateParkingSpot меняет место парковки. Неделя, владелец и ID записи не меняются.
func (s *Service) UpdateParkingSpot(ctx context.Context, actor models.Actor, id, spot string) (*models.Registration, error) {
	const op = "booking.UpdateParkingSpot"

	reg, err := s.authorize(ctx, actor, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.repo.UpdateParkingSpot(tctx, reg.ID, spot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	s.invalidate(ctx)
	reg.ParkingSpot = spot
	return reg, nil
}
