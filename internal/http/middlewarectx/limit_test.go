package middlewarectx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newNoopLoggerLimit() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestRateLimitMiddleware(t *testing.T) {
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("success")); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	})

	newRequest := func(addr string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr
		return req
	}

	t.Run("allows requests within rate limit", func(t *testing.T) {
		h := RateLimitMiddleware(newNoopLoggerLimit(), NewRateLimiter(10, 10))(testHandler)

		for range 10 {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, newRequest("10.0.0.1:5000"))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "success", w.Body.String())
		}
	})

	t.Run("blocks requests exceeding rate limit", func(t *testing.T) {
		h := RateLimitMiddleware(newNoopLoggerLimit(), NewRateLimiter(1, 1))(testHandler)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, newRequest("10.0.0.1:5000"))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		h.ServeHTTP(w, newRequest("10.0.0.1:5001"))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "too many requests")
	})

	t.Run("clients are limited separately", func(t *testing.T) {
		h := RateLimitMiddleware(newNoopLoggerLimit(), NewRateLimiter(1, 1))(testHandler)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, newRequest("10.0.0.1:5000"))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		h.ServeHTTP(w, newRequest("10.0.0.2:5000"))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRateLimiter_RefillsAndForgetsIdleClients(t *testing.T) {
	now := time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))

	now = now.Add(time.Hour)
	l.Allow("b")
	l.mu.Lock()
	_, kept := l.limiters["a"]
	l.mu.Unlock()
	assert.False(t, kept)
}
