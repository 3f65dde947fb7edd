package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mom-support-backend/pkg/auth"
	"mom-support-backend/pkg/config"
	"mom-support-backend/pkg/utils"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoIdentity writes the caller's user id, or "none".
var echoIdentity = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		_, _ = w.Write([]byte("none"))
		return
	}
	_, _ = w.Write([]byte(id.UserID))
})

func TestRequireAuth(t *testing.T) {
	jwt := utils.NewJWTService("test-secret")
	a := NewAuthenticator(jwt, quietLogger())
	h := a.RequireAuth(echoIdentity)

	access, _, _, err := jwt.GenerateTokenPair(auth.Identity{UserID: "user-1", Email: "mom@example.com"})
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/streaks", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", rec.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/streaks", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/streaks", nil)
		req.Header.Set("Authorization", "Basic "+access)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		_, refresh, _, err := jwt.GenerateTokenPair(auth.Identity{UserID: "user-1"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/streaks", nil)
		req.Header.Set("Authorization", "Bearer "+refresh)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid token")
	})
}

func TestOptionalAuth(t *testing.T) {
	jwt := utils.NewJWTService("test-secret")
	h := NewAuthenticator(jwt, quietLogger()).OptionalAuth(echoIdentity)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))
	assert.Equal(t, "none", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "none", rec.Body.String())
}

func TestRequireRegistered(t *testing.T) {
	h := RequireRegistered(echoIdentity)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/activate", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "anon-1", Anonymous: true}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/activate", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "user-1"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNormalize(t *testing.T) {
	var gotPath, gotHost, gotScheme string
	h := Normalize()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotHost, gotScheme = r.URL.Path, r.Host, r.URL.Scheme
	}))

	req := httptest.NewRequest(http.MethodGet, "/api//v1///streaks", nil)
	req.Header.Set("X-Forwarded-Proto", "https, http")
	req.Header.Set("X-Forwarded-Host", "api.momsupport.app, internal")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "/api/v1/streaks", gotPath)
	assert.Equal(t, "api.momsupport.app", gotHost)
	assert.Equal(t, "https", gotScheme)
}

func TestRecovery(t *testing.T) {
	boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	prod := &config.Config{Environment: "production"}
	rec := httptest.NewRecorder()
	Recovery(prod, quietLogger())(boom).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")

	dev := &config.Config{Environment: "development"}
	rec = httptest.NewRecorder()
	Recovery(dev, quietLogger())(boom).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}

func TestContentTypeJSON(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := ContentTypeJSON(ok)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/moods", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/moods", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// 空请求体放行
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/cancel", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type stubLimiter struct {
	counts map[string]int
	err    error
}

func (s *stubLimiter) Consume(_ context.Context, subject string, _ time.Duration) (int, int, error) {
	if s.err != nil {
		return 0, 0, s.err
	}
	s.counts[subject]++
	return s.counts[subject], 42, nil
}

func TestRateLimit(t *testing.T) {
	limiter := &stubLimiter{counts: map[string]int{}}
	h := RateLimit(limiter, 2, quietLogger())(echoIdentity)

	call := func(remote string, id *auth.Identity) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/streaks", nil)
		req.RemoteAddr = remote
		if id != nil {
			req = req.WithContext(auth.WithIdentity(req.Context(), *id))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:5678", nil).Code)
	limited := call("10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "42", limited.Header().Get("Retry-After"))

	// 不同来源独立计数
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1234", nil).Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1234", &auth.Identity{UserID: "user-1"}).Code)
	assert.Equal(t, 1, limiter.counts["user:user-1"])
	assert.Equal(t, 3, limiter.counts["ip:10.0.0.1"])
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := RateLimit(&stubLimiter{err: errors.New("connection refused")}, 1, quietLogger())(echoIdentity)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	h := RateLimit(nil, 10, quietLogger())(echoIdentity)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	limiter, err := NewRedisRateLimiterFromURL("")
	require.NoError(t, err)
	assert.Nil(t, limiter)

	_, err = NewRedisRateLimiterFromURL("not-a-url://")
	assert.Error(t, err)
}

func TestRequestLoggerCapturesIdentity(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	jwt := utils.NewJWTService("test-secret")
	access, _, _, err := jwt.GenerateTokenPair(auth.Identity{UserID: "anon-9", Anonymous: true})
	require.NoError(t, err)

	h := RequestLogger(logger)(NewAuthenticator(jwt, quietLogger()).RequireAuth(echoIdentity))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/streaks", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, "status=200")
	assert.Contains(t, out, "user_id=anon-9")
	assert.Contains(t, out, "anonymous=true")
}
