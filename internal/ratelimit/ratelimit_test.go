package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"authapi/internal/cache"
	apperrors "authapi/internal/errors"
)

func newTestServer(t *testing.T, counter Counter, tier Tier, keyFn KeyFunc, exceeded *[]string) *echo.Echo {
	t.Helper()
	l := New(counter, zap.NewNop(), OnExceeded(func(name string) { *exceeded = append(*exceeded, name) }))

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		appErr := apperrors.Normalize(err)
		_ = c.JSON(appErr.StatusCode, appErr.ToErrorResponse())
	}
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	}, l.Middleware(tier, keyFn))
	return e
}

func do(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestLimiter_BlocksAfterLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := cache.New(mr.Addr(), "", 0)
	defer client.Close()

	var exceeded []string
	e := newTestServer(t, client, Tier{Name: "auth", Limit: 2, Window: time.Minute, Message: "Too many attempts"}, nil, &exceeded)

	for i := 0; i < 2; i++ {
		rec := do(e, "10.0.0.1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("RateLimit-Limit"))
	}

	rec := do(e, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))
	assert.Contains(t, rec.Body.String(), "Too many attempts")
	assert.Equal(t, []string{"auth"}, exceeded)

	// Other clients are counted separately.
	assert.Equal(t, http.StatusOK, do(e, "10.0.0.2").Code)
}

func TestLimiter_WindowResets(t *testing.T) {
	mr := miniredis.RunT(t)
	client := cache.New(mr.Addr(), "", 0)
	defer client.Close()

	var exceeded []string
	e := newTestServer(t, client, Tier{Name: "sensitive", Limit: 1, Window: time.Minute}, nil, &exceeded)

	require.Equal(t, http.StatusOK, do(e, "10.0.0.1").Code)
	require.Equal(t, http.StatusTooManyRequests, do(e, "10.0.0.1").Code)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, do(e, "10.0.0.1").Code)
}

func TestLimiter_CustomKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := cache.New(mr.Addr(), "", 0)
	defer client.Close()

	var exceeded []string
	byUser := func(c echo.Context) string { return "uid:" + c.Request().Header.Get("X-User") }
	e := newTestServer(t, client, Tier{Name: "user", Limit: 1, Window: time.Minute}, byUser, &exceeded)

	req := func(user string) int {
		r := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, r)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, req("u1"))
	assert.Equal(t, http.StatusOK, req("u2"))
	assert.Equal(t, http.StatusTooManyRequests, req("u1"))
	assert.True(t, mr.Exists("rl:user:uid:u1"))
}

type brokenCounter struct{}

func (brokenCounter) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.Join(cache.ErrUnavailable, errors.New("dial tcp: refused"))
}

func TestLimiter_FailsOpen(t *testing.T) {
	var exceeded []string
	e := newTestServer(t, brokenCounter{}, Tier{Name: "api", Limit: 0, Window: time.Minute}, nil, &exceeded)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(e, "10.0.0.1").Code)
	}
	assert.Empty(t, exceeded)
}
