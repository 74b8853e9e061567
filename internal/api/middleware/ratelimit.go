package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/geodonis/geodonis-web/internal/core/domain"
	"github.com/geodonis/geodonis-web/pkg/metrics"
)

// Limiter counts hits for key within a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit rejects callers that exceed limit requests per window, keyed by
// route name and client IP. A nil limiter or a non-positive limit disables
// it, and limiter errors let the request through.
func RateLimit(limiter Limiter, route string, limit int, window time.Duration, log zerolog.Logger) echo.MiddlewareFunc {
	if limiter == nil || limit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			ok, err := limiter.Allow(c.Request().Context(), route+":"+ip, limit, window)
			if err != nil {
				log.Warn().Err(err).Str("route", route).Msg("rate limiter unavailable")
				return next(c)
			}
			if !ok {
				metrics.RateLimitedTotal.WithLabelValues(route).Inc()
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				return &domain.ClientError{Msg: "Too many requests, try again later.", Status: http.StatusTooManyRequests}
			}
			return next(c)
		}
	}
}
