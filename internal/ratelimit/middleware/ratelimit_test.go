package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"usergate/internal/ratelimit/models"
	"usergate/pkg/requestcontext"
)

type stubLimiter struct {
	result  *models.RateLimitResult
	lastKey string
}

func (s *stubLimiter) TryAcquire(_ context.Context, _ models.KeyPrefix, identifier string) *models.RateLimitResult {
	s.lastKey = identifier
	return s.result
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_Allowed(t *testing.T) {
	limiter := &stubLimiter{result: &models.RateLimitResult{
		Allowed:   true,
		Limit:     100,
		Remaining: 99,
		ResetAt:   time.Now().Add(time.Minute),
	}}
	m := New(limiter, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/users/abc", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	w := httptest.NewRecorder()

	m.RateLimit(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "203.0.113.7", limiter.lastKey)
	assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_Denied(t *testing.T) {
	limiter := &stubLimiter{result: &models.RateLimitResult{
		Allowed:    false,
		Limit:      100,
		Remaining:  0,
		ResetAt:    time.Now().Add(30 * time.Second),
		RetryAfter: 30,
	}}
	m := New(limiter, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/users", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	w := httptest.NewRecorder()

	m.RateLimit(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
}

func TestRateLimit_Degraded(t *testing.T) {
	limiter := &stubLimiter{result: &models.RateLimitResult{
		Allowed:   true,
		Limit:     100,
		Remaining: 0,
		ResetAt:   time.Now().Add(time.Minute),
		Degraded:  true,
	}}
	m := New(limiter, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/users/abc", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	w := httptest.NewRecorder()

	m.RateLimit(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "degraded", w.Header().Get("X-RateLimit-Status"))
}

func TestRateLimit_Disabled(t *testing.T) {
	limiter := &stubLimiter{result: &models.RateLimitResult{Allowed: false}}
	m := New(limiter, discardLogger(), WithDisabled(true))

	req := httptest.NewRequest(http.MethodGet, "/users/abc", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	w := httptest.NewRecorder()

	m.RateLimit(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, limiter.lastKey)
}

func TestRateLimit_ClientIPReachesDownstream(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.ClientIP(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("enabled", func(t *testing.T) {
		limiter := &stubLimiter{result: &models.RateLimitResult{
			Allowed: true,
			Limit:   100,
			ResetAt: time.Now().Add(time.Minute),
		}}
		m := New(limiter, discardLogger())

		req := httptest.NewRequest(http.MethodGet, "/users/abc", nil)
		req.RemoteAddr = "203.0.113.9:51234"
		m.RateLimit(next).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "203.0.113.9", seen)
	})

	t.Run("disabled still tags the context", func(t *testing.T) {
		m := New(&stubLimiter{}, discardLogger(), WithDisabled(true))

		req := httptest.NewRequest(http.MethodGet, "/users/abc", nil)
		req.RemoteAddr = "203.0.113.9:51234"
		m.RateLimit(next).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "203.0.113.9", seen)
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr only", "203.0.113.7:51234", "", "203.0.113.7"},
		{"single forwarded", "10.0.0.1:80", "198.51.100.9", "198.51.100.9"},
		{"forwarded chain uses leftmost", "10.0.0.1:80", "198.51.100.9, 10.0.0.2", "198.51.100.9"},
		{"unparseable remote addr passthrough", "bad-addr", "", "bad-addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
