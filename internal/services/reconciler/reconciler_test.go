package reconciler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/carwash-booking/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/carwash-booking/internal/metrics"
	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetSettings(ctx context.Context) (models.AppSettings, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.AppSettings), args.Error(1)
}

func (m *RepoMock) OverbookedWeeks(ctx context.Context, capacity, fromWeek, fromWeekYear int) ([]models.WeekLoad, error) {
	args := m.Called(ctx, capacity, fromWeek, fromWeekYear)
	if loads, ok := args.Get(0).([]models.WeekLoad); ok {
		return loads, args.Error(1)
	}
	return nil, args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(routingKey string, message any) error {
	return m.Called(routingKey, message).Error(0)
}

func NewNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// Четверг 20 марта 2025, неделя 12.
var fixedNow = time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC)

const (
	curWeek     = 12
	curWeekYear = 2025
)

func newService(repo Repository, pub Publisher, m *metrics.Metrics) *Service {
	svc := NewReconcilerService(repo, pub, m, NewNoopLogger(), time.UTC, time.Second)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestService_Detect(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetSettings", mock.Anything).Return(models.AppSettings{WeeklyCapacity: 3}, nil).Once()
	repo.On("OverbookedWeeks", mock.Anything, 3, curWeek, curWeekYear).Return([]models.WeekLoad{
		{WeekNumber: 12, Year: 2025, Count: 5},
	}, nil).Once()

	alerts, err := newService(repo, nil, nil).Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.OverbookingAlert{{
		WeekNumber: 12, Year: 2025, Count: 5, Capacity: 3, Excess: 2, DetectedAt: fixedNow,
	}}, alerts)
	repo.AssertExpectations(t)
}

func TestService_Run_PublishesEveryAlert(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetSettings", mock.Anything).Return(models.AppSettings{WeeklyCapacity: 2}, nil).Once()
	repo.On("OverbookedWeeks", mock.Anything, 2, curWeek, curWeekYear).Return([]models.WeekLoad{
		{WeekNumber: 12, Year: 2025, Count: 3},
		{WeekNumber: 13, Year: 2025, Count: 4},
	}, nil).Once()

	pub := new(PublisherMock)
	pub.On("Publish", rabbitmq.OverbookingRoutingKey, mock.MatchedBy(func(a models.OverbookingAlert) bool {
		return a.WeekNumber == 12
	})).Return(errors.New("channel closed")).Once()
	pub.On("Publish", rabbitmq.OverbookingRoutingKey, mock.MatchedBy(func(a models.OverbookingAlert) bool {
		return a.WeekNumber == 13 && a.Excess == 2
	})).Return(nil).Once()

	reg := prometheus.NewRegistry()
	err := newService(repo, pub, metrics.New(reg)).Run(context.Background())
	require.NoError(t, err)

	pub.AssertExpectations(t)
	assert.Equal(t, float64(2), gaugeValue(t, reg, "carwash_overbooked_weeks"))
}

func TestService_Run_NoAlerts(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetSettings", mock.Anything).Return(models.AppSettings{WeeklyCapacity: 10}, nil).Once()
	repo.On("OverbookedWeeks", mock.Anything, 10, curWeek, curWeekYear).Return([]models.WeekLoad{}, nil).Once()
	pub := new(PublisherMock)

	reg := prometheus.NewRegistry()
	require.NoError(t, newService(repo, pub, metrics.New(reg)).Run(context.Background()))

	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	assert.Equal(t, float64(0), gaugeValue(t, reg, "carwash_overbooked_weeks"))
}

func TestService_Run_StoreError(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetSettings", mock.Anything).Return(models.AppSettings{}, errors.New("db down")).Once()

	err := newService(repo, nil, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestService_Run_WithoutPublisher(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetSettings", mock.Anything).Return(models.AppSettings{WeeklyCapacity: 1}, nil).Once()
	repo.On("OverbookedWeeks", mock.Anything, 1, curWeek, curWeekYear).
		Return([]models.WeekLoad{{WeekNumber: 12, Year: 2025, Count: 2}}, nil).Once()

	assert.NoError(t, newService(repo, nil, nil).Run(context.Background()))
}

func TestService_Detect_StartsFromCurrentISOWeek(t *testing.T) {
	// 30 декабря 2024 - неделя 1 года 2025: недели 2024 года уже прошли.
	repo := new(RepoMock)
	repo.On("GetSettings", mock.Anything).Return(models.AppSettings{WeeklyCapacity: 5}, nil).Once()
	repo.On("OverbookedWeeks", mock.Anything, 5, 1, 2025).Return([]models.WeekLoad{}, nil).Once()

	svc := newService(repo, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC) }

	alerts, err := svc.Detect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
	repo.AssertExpectations(t)
}

func TestService_Run_PublishesOnlyNewOrGrowingWeeks(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetSettings", mock.Anything).Return(models.AppSettings{WeeklyCapacity: 2}, nil)
	runs := [][]models.WeekLoad{
		{{WeekNumber: 12, Year: 2025, Count: 3}},
		{{WeekNumber: 12, Year: 2025, Count: 3}},
		{{WeekNumber: 12, Year: 2025, Count: 4}},
		{},
		{{WeekNumber: 12, Year: 2025, Count: 3}},
	}
	for _, loads := range runs {
		repo.On("OverbookedWeeks", mock.Anything, 2, curWeek, curWeekYear).Return(loads, nil).Once()
	}

	var published []int
	pub := new(PublisherMock)
	pub.On("Publish", rabbitmq.OverbookingRoutingKey, mock.Anything).
		Run(func(args mock.Arguments) {
			published = append(published, args.Get(1).(models.OverbookingAlert).Count)
		}).
		Return(nil)

	svc := newService(repo, pub, nil)
	for range runs {
		require.NoError(t, svc.Run(context.Background()))
	}

	assert.Equal(t, []int{3, 4, 3}, published)
}

func TestService_Run_RetriesFailedPublish(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetSettings", mock.Anything).Return(models.AppSettings{WeeklyCapacity: 2}, nil)
	repo.On("OverbookedWeeks", mock.Anything, 2, curWeek, curWeekYear).
		Return([]models.WeekLoad{{WeekNumber: 12, Year: 2025, Count: 3}}, nil).Times(3)

	pub := new(PublisherMock)
	pub.On("Publish", rabbitmq.OverbookingRoutingKey, mock.Anything).Return(errors.New("channel closed")).Once()
	pub.On("Publish", rabbitmq.OverbookingRoutingKey, mock.Anything).Return(nil).Once()

	svc := newService(repo, pub, nil)
	for range 3 {
		require.NoError(t, svc.Run(context.Background()))
	}

	pub.AssertNumberOfCalls(t, "Publish", 2)
}
