package settingsupdate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/carwash-booking/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Update(ctx context.Context, upd models.SettingsUpdate) (models.AppSettings, error) {
	args := m.Called(ctx, upd)
	return args.Get(0).(models.AppSettings), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestUpdateHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(m *ServiceMock)
		wantStatus int
		wantError  string
	}{
		{
			name: "capacity changed",
			body: `{"weekly_capacity":12}`,
			setupMock: func(m *ServiceMock) {
				m.On("Update", mock.Anything, mock.MatchedBy(func(u models.SettingsUpdate) bool {
					return u.WeeklyCapacity != nil && *u.WeeklyCapacity == 12 && u.LoginImageURL == nil
				})).Return(models.AppSettings{WeeklyCapacity: 12}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "zero capacity",
			body:       `{"weekly_capacity":0}`,
			setupMock:  func(*ServiceMock) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "field WeeklyCapacity must be greater than 0",
		},
		{
			name:       "bad image url",
			body:       `{"login_image_url":"not a url"}`,
			setupMock:  func(*ServiceMock) {},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "field LoginImageURL must be a valid url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPut, "/admin/settings", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				var got map[string]any
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
				assert.Equal(t, tt.wantError, got["error"])
			}
			svc.AssertExpectations(t)
		})
	}
}
