package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/carwash-booking/internal/cache"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
	"github.com/magabrotheeeer/carwash-booking/internal/policy"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) ListRegistrations(ctx context.Context) ([]models.Registration, error) {
	args := m.Called(ctx)
	if fn, ok := args.Get(0).(func(context.Context) []models.Registration); ok {
		return fn(ctx), args.Error(1)
	}
	return args.Get(0).([]models.Registration), args.Error(1)
}

func (m *RepoMock) ListRegistrationsByWeek(ctx context.Context, weekNumber, year int) ([]models.Registration, error) {
	args := m.Called(ctx, weekNumber, year)
	return args.Get(0).([]models.Registration), args.Error(1)
}

func (m *RepoMock) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	args := m.Called(ctx, id)
	if r, ok := args.Get(0).(*models.Registration); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) CreateRegistrationGuarded(ctx context.Context, r models.Registration) error {
	return m.Called(ctx, r).Error(0)
}

func (m *RepoMock) DeleteRegistration(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) UpdateParkingSpot(ctx context.Context, id, spot string) (int, error) {
	args := m.Called(ctx, id, spot)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) GetSettings(ctx context.Context) (models.AppSettings, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.AppSettings), args.Error(1)
}

type UsersMock struct{ mock.Mock }

func (m *UsersMock) GetUser(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Generation(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *CacheMock) SetIfGeneration(ctx context.Context, key string, value any, gen int64, expiration time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, gen, expiration)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Invalidate(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func NewNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var lisbon = mustLocation("Europe/Lisbon")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Четверг 20 марта 2025, 10:00 по Лиссабону: неделя 12, месяц 3.
var fixedNow = time.Date(2025, 3, 20, 10, 0, 0, 0, lisbon)

const (
	curWeek  = 12
	curMonth = 3
	curYear  = 2025
)

func intPtr(v int) *int { return &v }

func openSettings(capacity int) models.AppSettings {
	return models.AppSettings{
		WeeklyCapacity: capacity,
		ManualOpenWeek: intPtr(curWeek),
		ManualOpenYear: intPtr(curYear),
	}
}

func testUser() *models.User {
	return &models.User{
		ID:        "user-1",
		FirstName: "Ivan",
		LastName:  "Petrov",
		Email:     "ivan@example.com",
		Role:      models.RoleUser,
		Cars:      []models.Car{{ID: "car-1", Brand: "Kia", Model: "Rio", LicensePlate: "AB123"}},
	}
}

func reg(id, userID string, week, month, year int) models.Registration {
	return models.Registration{
		ID: id, UserID: userID, CarID: "car-x", UserName: "Someone " + userID,
		CarDetails: "Lada Niva (X1)", WeekNumber: week, WeekYear: year, Month: month, Year: year,
		Date: time.Date(year, time.Month(month), 1, 9, 0, 0, 0, time.UTC),
	}
}

func newTestService(repo *RepoMock, users *UsersMock, c Cache) *Service {
	return NewBookingService(repo, users, c, nil, NewNoopLogger(), Options{
		Location:     lisbon,
		StoreTimeout: time.Second,
		Now:          func() time.Time { return fixedNow },
		NewID:        func() string { return "new-reg" },
	})
}

var user1 = models.Actor{UserID: "user-1", Role: models.RoleUser}

func TestService_Dashboard(t *testing.T) {
	tests := []struct {
		name          string
		settings      models.AppSettings
		regs          []models.Registration
		wantState     policy.State
		wantRemaining int
	}{
		{
			name:          "eligible with open window",
			settings:      openSettings(10),
			regs:          []models.Registration{},
			wantState:     policy.StateEligible,
			wantRemaining: 10,
		},
		{
			name:          "closed window",
			settings:      models.AppSettings{WeeklyCapacity: 10},
			regs:          []models.Registration{},
			wantState:     policy.StateWindowClosed,
			wantRemaining: 10,
		},
		{
			name:     "monthly capped even with free slots",
			settings: openSettings(10),
			regs: []models.Registration{
				reg("r1", "user-1", 10, curMonth, curYear),
			},
			wantState:     policy.StateMonthlyCapped,
			wantRemaining: 10,
		},
		{
			name:     "already scheduled beats full",
			settings: openSettings(1),
			regs: []models.Registration{
				reg("r1", "user-1", curWeek, curMonth, curYear),
			},
			wantState:     policy.StateAlreadyScheduled,
			wantRemaining: 0,
		},
		{
			name:     "slots full",
			settings: openSettings(2),
			regs: []models.Registration{
				reg("r1", "user-2", curWeek, curMonth, curYear),
				reg("r2", "user-3", curWeek, curMonth, curYear),
				reg("r3", "user-4", curWeek, curMonth, curYear-1),
			},
			wantState:     policy.StateWeeklyFull,
			wantRemaining: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			repo.On("GetSettings", mock.Anything).Return(tt.settings, nil).Once()
			repo.On("ListRegistrations", mock.Anything).Return(tt.regs, nil).Once()
			svc := newTestService(repo, new(UsersMock), nil)

			got, err := svc.Dashboard(context.Background(), user1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, got.State)
			assert.Equal(t, tt.wantRemaining, got.WeeklyRemaining)
			assert.Equal(t, curWeek, got.WeekNumber)
			assert.Equal(t, curMonth, got.Month)
			assert.Equal(t, curYear, got.Year)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Dashboard_UsesCache(t *testing.T) {
	repo := new(RepoMock)
	c := new(CacheMock)
	c.On("Get", mock.Anything, cache.SettingsKey, mock.Anything).
		Run(func(args mock.Arguments) {
			*args.Get(2).(*models.AppSettings) = openSettings(5)
		}).Return(true, nil).Once()
	c.On("Get", mock.Anything, cache.RegistrationsKey, mock.Anything).
		Run(func(args mock.Arguments) {
			*args.Get(2).(*[]models.Registration) = []models.Registration{
				reg("r1", "user-2", curWeek, curMonth, curYear),
			}
		}).Return(true, nil).Once()
	svc := newTestService(repo, new(UsersMock), c)

	got, err := svc.Dashboard(context.Background(), user1)
	require.NoError(t, err)
	assert.Equal(t, 4, got.WeeklyRemaining)
	assert.Equal(t, policy.StateEligible, got.State)
	repo.AssertNotCalled(t, "GetSettings", mock.Anything)
	c.AssertExpectations(t)
}

func TestService_Dashboard_CacheMissFillsCache(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetSettings", mock.Anything).Return(openSettings(5), nil).Once()
	repo.On("ListRegistrations", mock.Anything).Return([]models.Registration{}, nil).Once()

	c := new(CacheMock)
	c.On("Get", mock.Anything, cache.SettingsKey, mock.Anything).Return(false, nil).Once()
	c.On("Get", mock.Anything, cache.RegistrationsKey, mock.Anything).Return(false, errors.New("redis down")).Once()
	c.On("Generation", mock.Anything, cache.SettingsKey).Return(int64(2), nil).Once()
	c.On("Generation", mock.Anything, cache.RegistrationsKey).Return(int64(7), nil).Once()
	c.On("SetIfGeneration", mock.Anything, cache.SettingsKey, openSettings(5), int64(2), time.Minute).Return(true, nil).Once()
	c.On("SetIfGeneration", mock.Anything, cache.RegistrationsKey, []models.Registration{}, int64(7), time.Minute).Return(true, nil).Once()
	svc := newTestService(repo, new(UsersMock), c)

	_, err := svc.Dashboard(context.Background(), user1)
	require.NoError(t, err)
	repo.AssertExpectations(t)
	c.AssertExpectations(t)
}

// Запись сбросила кэш, пока дашборд читал хранилище: снимок не кладётся, ответ всё равно отдаётся.
func TestService_Dashboard_StaleSnapshotNotCached(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetSettings", mock.Anything).Return(openSettings(5), nil).Once()
	repo.On("ListRegistrations", mock.Anything).Return([]models.Registration{}, nil).Once()

	c := new(CacheMock)
	c.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Twice()
	c.On("Generation", mock.Anything, cache.SettingsKey).Return(int64(0), nil).Once()
	c.On("Generation", mock.Anything, cache.RegistrationsKey).Return(int64(4), nil).Once()
	c.On("SetIfGeneration", mock.Anything, cache.SettingsKey, mock.Anything, int64(0), time.Minute).Return(true, nil).Once()
	c.On("SetIfGeneration", mock.Anything, cache.RegistrationsKey, mock.Anything, int64(4), time.Minute).Return(false, nil).Once()
	svc := newTestService(repo, new(UsersMock), c)

	got, err := svc.Dashboard(context.Background(), user1)
	require.NoError(t, err)
	assert.Equal(t, 5, got.WeeklyRemaining)
	c.AssertExpectations(t)
}

func TestService_Dashboard_GenerationErrorSkipsFill(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetSettings", mock.Anything).Return(openSettings(5), nil).Once()
	repo.On("ListRegistrations", mock.Anything).Return([]models.Registration{}, nil).Once()

	c := new(CacheMock)
	c.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Twice()
	c.On("Generation", mock.Anything, mock.Anything).Return(int64(0), errors.New("redis down")).Twice()
	svc := newTestService(repo, new(UsersMock), c)

	_, err := svc.Dashboard(context.Background(), user1)
	require.NoError(t, err)
	c.AssertNotCalled(t, "SetIfGeneration", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Dashboard_StoreError(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetSettings", mock.Anything).Return(models.AppSettings{}, errors.New("connection refused")).Once()
	svc := newTestService(repo, new(UsersMock), nil)

	got, err := svc.Dashboard(context.Background(), user1)
	require.Error(t, err)
	assert.Nil(t, got)
}

func TestService_Submit_Accepted(t *testing.T) {
	repo := new(RepoMock)
	users := new(UsersMock)
	c := new(CacheMock)

	users.On("GetUser", mock.Anything, "user-1").Return(testUser(), nil).Once()
	repo.On("GetSettings", mock.Anything).Return(openSettings(1), nil).Once()
	repo.On("ListRegistrations", mock.Anything).Return([]models.Registration{}, nil).Once()
	c.On("Generation", mock.Anything, mock.Anything).Return(int64(0), nil)
	c.On("SetIfGeneration", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	c.On("Invalidate", mock.Anything, []string{cache.RegistrationsKey}).Return(nil).Once()

	want := models.Registration{
		ID:          "new-reg",
		UserID:      "user-1",
		CarID:       "car-1",
		UserName:    "Ivan Petrov",
		CarDetails:  "Kia Rio (AB123)",
		Date:        fixedNow.UTC(),
		WeekNumber:  curWeek,
		WeekYear:    curYear,
		Month:       curMonth,
		Year:        curYear,
		ParkingSpot: "Garage B",
	}
	repo.On("CreateRegistrationGuarded", mock.Anything, want).Return(nil).Once()

	svc := newTestService(repo, users, c)
	out, err := svc.Submit(context.Background(), user1, models.RegistrationRequest{CarID: "car-1", ParkingSpot: "Garage B"})
	require.NoError(t, err)
	assert.True(t, out.Accepted)
	assert.Equal(t, policy.StateAlreadyScheduled, out.State)
	assert.Equal(t, &want, out.Registration)

	repo.AssertExpectations(t)
	users.AssertExpectations(t)
	c.AssertExpectations(t)
	c.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

// Пользователь видел свободное место, но свежее чтение показывает, что неделя заполнена.
func TestService_Submit_FreshReadDetectsFullWeek(t *testing.T) {
	repo := new(RepoMock)
	users := new(UsersMock)

	users.On("GetUser", mock.Anything, "user-1").Return(testUser(), nil).Once()
	repo.On("GetSettings", mock.Anything).Return(openSettings(1), nil).Once()
	repo.On("ListRegistrations", mock.Anything).Return([]models.Registration{
		reg("r1", "user-2", curWeek, curMonth, curYear),
	}, nil).Once()

	svc := newTestService(repo, users, nil)
	out, err := svc.Submit(context.Background(), user1, models.RegistrationRequest{CarID: "car-1"})
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, policy.StateWeeklyFull, out.State)
	require.NotNil(t, out.Dashboard)
	assert.Equal(t, 0, out.Dashboard.WeeklyRemaining)
	repo.AssertNotCalled(t, "CreateRegistrationGuarded", mock.Anything, mock.Anything)
}

func TestService_Submit_Ineligible(t *testing.T) {
	tests := []struct {
		name      string
		settings  models.AppSettings
		regs      []models.Registration
		wantState policy.State
	}{
		{
			name:      "window closed",
			settings:  models.AppSettings{WeeklyCapacity: 10},
			regs:      []models.Registration{},
			wantState: policy.StateWindowClosed,
		},
		{
			name:      "manual close beats open",
			settings:  models.AppSettings{WeeklyCapacity: 10, ManualOpenWeek: intPtr(curWeek), ManualOpenYear: intPtr(curYear), ManualCloseWeek: intPtr(curWeek), ManualCloseYear: intPtr(curYear)},
			regs:      []models.Registration{},
			wantState: policy.StateWindowClosed,
		},
		{
			name:      "monthly capped",
			settings:  openSettings(10),
			regs:      []models.Registration{reg("r1", "user-1", 11, curMonth, curYear)},
			wantState: policy.StateMonthlyCapped,
		},
		{
			name:      "already scheduled",
			settings:  openSettings(10),
			regs:      []models.Registration{reg("r1", "user-1", curWeek, curMonth, curYear)},
			wantState: policy.StateAlreadyScheduled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			users := new(UsersMock)
			users.On("GetUser", mock.Anything, "user-1").Return(testUser(), nil).Once()
			repo.On("GetSettings", mock.Anything).Return(tt.settings, nil).Once()
			repo.On("ListRegistrations", mock.Anything).Return(tt.regs, nil).Once()

			svc := newTestService(repo, users, nil)
			out, err := svc.Submit(context.Background(), user1, models.RegistrationRequest{CarID: "car-1"})
			require.NoError(t, err)
			assert.False(t, out.Accepted)
			assert.Equal(t, tt.wantState, out.State)
			repo.AssertNotCalled(t, "CreateRegistrationGuarded", mock.Anything, mock.Anything)
		})
	}
}

func TestService_Submit_RaceLoss(t *testing.T) {
	tests := []struct {
		name      string
		insertErr error
		reread    []models.Registration
		rereadErr error
		wantState policy.State
	}{
		{
			name:      "capacity taken between check and insert",
			insertErr: models.ErrCapacityExhausted,
			reread:    []models.Registration{reg("r9", "user-9", curWeek, curMonth, curYear)},
			wantState: policy.StateWeeklyFull,
		},
		{
			name:      "duplicate from a second tab",
			insertErr: models.ErrAlreadyRegistered,
			reread:    []models.Registration{reg("r9", "user-1", curWeek, curMonth, curYear)},
			wantState: policy.StateAlreadyScheduled,
		},
		{
			name:      "re-read fails falls back to cause",
			insertErr: models.ErrCapacityExhausted,
			rereadErr: errors.New("timeout"),
			wantState: policy.StateWeeklyFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			users := new(UsersMock)
			users.On("GetUser", mock.Anything, "user-1").Return(testUser(), nil).Once()
			repo.On("GetSettings", mock.Anything).Return(openSettings(1), nil).Twice()
			repo.On("ListRegistrations", mock.Anything).Return([]models.Registration{}, nil).Once()
			if tt.rereadErr != nil {
				repo.On("ListRegistrations", mock.Anything).Return([]models.Registration(nil), tt.rereadErr).Once()
			} else {
				repo.On("ListRegistrations", mock.Anything).Return(tt.reread, nil).Once()
			}
			repo.On("CreateRegistrationGuarded", mock.Anything, mock.Anything).
				Return(errors.Join(errors.New("storage.CreateRegistrationGuarded"), tt.insertErr)).Once()

			svc := newTestService(repo, users, nil)
			out, err := svc.Submit(context.Background(), user1, models.RegistrationRequest{CarID: "car-1"})
			require.NoError(t, err)
			assert.False(t, out.Accepted)
			assert.Equal(t, tt.wantState, out.State)
			assert.Nil(t, out.Registration)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Submit_Errors(t *testing.T) {
	storeErr := errors.New("connection reset")

	tests := []struct {
		name    string
		req     models.RegistrationRequest
		setup   func(repo *RepoMock, users *UsersMock)
		wantErr error
	}{
		{
			name:    "no car selected",
			req:     models.RegistrationRequest{},
			setup:   func(*RepoMock, *UsersMock) {},
			wantErr: models.ErrValidation,
		},
		{
			name: "car of another user",
			req:  models.RegistrationRequest{CarID: "car-999"},
			setup: func(_ *RepoMock, users *UsersMock) {
				users.On("GetUser", mock.Anything, "user-1").Return(testUser(), nil).Once()
			},
			wantErr: models.ErrValidation,
		},
		{
			name: "unknown user",
			req:  models.RegistrationRequest{CarID: "car-1"},
			setup: func(_ *RepoMock, users *UsersMock) {
				users.On("GetUser", mock.Anything, "user-1").Return(nil, models.ErrNotFound).Once()
			},
			wantErr: models.ErrNotFound,
		},
		{
			name: "insert fails",
			req:  models.RegistrationRequest{CarID: "car-1"},
			setup: func(repo *RepoMock, users *UsersMock) {
				users.On("GetUser", mock.Anything, "user-1").Return(testUser(), nil).Once()
				repo.On("GetSettings", mock.Anything).Return(openSettings(3), nil).Once()
				repo.On("ListRegistrations", mock.Anything).Return([]models.Registration{}, nil).Once()
				repo.On("CreateRegistrationGuarded", mock.Anything, mock.Anything).Return(storeErr).Once()
			},
			wantErr: storeErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			users := new(UsersMock)
			tt.setup(repo, users)

			svc := newTestService(repo, users, nil)
			out, err := svc.Submit(context.Background(), user1, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, out)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Submit_StoreTimeout(t *testing.T) {
	repo := new(RepoMock)
	users := new(UsersMock)
	users.On("GetUser", mock.Anything, "user-1").Return(testUser(), nil).Once()
	repo.On("GetSettings", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(models.AppSettings{}, context.DeadlineExceeded).Once()

	svc := NewBookingService(repo, users, nil, nil, NewNoopLogger(), Options{
		Location:     lisbon,
		StoreTimeout: 20 * time.Millisecond,
		Now:          func() time.Time { return fixedNow },
	})

	start := time.Now()
	out, err := svc.Submit(context.Background(), user1, models.RegistrationRequest{CarID: "car-1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, out)
	assert.Less(t, time.Since(start), 2*time.Second)
}

// Вместимость 1, неделя открыта вручную: первый пользователь записывается,
// второй получает отказ «мест нет».
func TestService_Submit_SecondUserRejected(t *testing.T) {
	repo := new(RepoMock)
	users := new(UsersMock)

	second := &models.User{
		ID: "user-2", FirstName: "Olga", LastName: "Sousa",
		Cars: []models.Car{{ID: "car-2", Brand: "VW", Model: "Golf", LicensePlate: "CD456"}},
	}
	users.On("GetUser", mock.Anything, "user-1").Return(testUser(), nil).Once()
	users.On("GetUser", mock.Anything, "user-2").Return(second, nil).Once()

	var stored []models.Registration
	repo.On("GetSettings", mock.Anything).Return(openSettings(1), nil)
	repo.On("ListRegistrations", mock.Anything).Return(func(context.Context) []models.Registration {
		return append([]models.Registration{}, stored...)
	}, nil)
	repo.On("CreateRegistrationGuarded", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			stored = append(stored, args.Get(1).(models.Registration))
		}).Return(nil).Once()

	svc := newTestService(repo, users, nil)

	out, err := svc.Submit(context.Background(), user1, models.RegistrationRequest{CarID: "car-1"})
	require.NoError(t, err)
	require.True(t, out.Accepted)

	out, err = svc.Submit(context.Background(), models.Actor{UserID: "user-2", Role: models.RoleUser},
		models.RegistrationRequest{CarID: "car-2"})
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, policy.StateWeeklyFull, out.State)
	assert.Len(t, stored, 1)
}
