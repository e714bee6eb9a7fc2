package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/favorites/internal/auth"
	"github.com/Togather-Foundation/favorites/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitPublicPerClient(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 2, AuthenticatedPerMinute: 100}, "test")
	handler := limiter.Middleware(okHandler())

	serve := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/favorites/lists/public", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, serve("10.0.0.1:1234"))
	require.Equal(t, http.StatusOK, serve("10.0.0.1:1235"))
	require.Equal(t, http.StatusTooManyRequests, serve("10.0.0.1:1236"))
	require.Equal(t, http.StatusOK, serve("10.0.0.2:1234"), "other clients have their own bucket")
}

func TestRateLimitAuthenticatedPerUser(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 1, AuthenticatedPerMinute: 3}, "test")
	handler := limiter.Middleware(okHandler())

	serve := func(userID int64) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/favorites/lists", nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: userID}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, serve(7).Code)
	}
	rec := serve(7)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	require.Equal(t, http.StatusOK, serve(8).Code)
}

func TestRateLimitSkipsProbesAndDisabledTiers(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 0}, "test")
	handler := limiter.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/favorites/lists/public", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	limiter = NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 1}, "test")
	handler = limiter.Middleware(okHandler())
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitCleanupEvictsIdle(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 10}, "test")
	now := time.Now()
	limiter.now = func() time.Time { return now }

	limiter.limiter(TierPublic, "a")
	limiter.limiter(TierPublic, "b")
	require.Equal(t, 2, limiter.size())

	now = now.Add(limiterTTL + time.Second)
	limiter.limiter(TierPublic, "b")
	limiter.cleanup()
	require.Equal(t, 1, limiter.size())
}

func TestRateLimitRunStopsOnCancel(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{}, "test")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		limiter.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
