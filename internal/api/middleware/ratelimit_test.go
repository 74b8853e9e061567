package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

type countingLimiter struct {
	hits map[string]int
	err  error
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.hits[key]++
	return l.hits[key] <= limit, nil
}

func callLimited(t *testing.T, mw echo.MiddlewareFunc) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	return mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
}

func TestRateLimit_BlocksAfterLimit(t *testing.T) {
	limiter := &countingLimiter{hits: map[string]int{}}
	mw := RateLimit(limiter, "login", 2, time.Minute, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if err := callLimited(t, mw); err != nil {
			t.Fatalf("request %d rejected: %v", i, err)
		}
	}
	err := callLimited(t, mw)
	var ce *domain.ClientError
	if !errors.As(err, &ce) || ce.Status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 client error, got %v", err)
	}
	if limiter.hits["login:10.0.0.1"] != 3 {
		t.Fatalf("unexpected keys: %v", limiter.hits)
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter := &countingLimiter{err: errors.New("redis: connection refused")}
	mw := RateLimit(limiter, "login", 1, time.Minute, zerolog.Nop())

	for i := 0; i < 3; i++ {
		if err := callLimited(t, mw); err != nil {
			t.Fatalf("limiter error should not reject: %v", err)
		}
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	mw := RateLimit(nil, "login", 1, time.Minute, zerolog.Nop())
	for i := 0; i < 3; i++ {
		if err := callLimited(t, mw); err != nil {
			t.Fatalf("disabled limiter rejected: %v", err)
		}
	}
}
