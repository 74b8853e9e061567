package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/geodonis/geodonis-web/internal/core/auth"
	"github.com/geodonis/geodonis-web/internal/core/domain"
	"github.com/geodonis/geodonis-web/internal/core/ports"
	"github.com/geodonis/geodonis-web/pkg/metrics"
)

// Session resolves the caller from the access cookie or the bearer header and
// stores the result in the request context. It never rejects a request;
// RequireUser and RequireAdmin act on what it recorded.
func Session(authService ports.AuthService, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := resolve(c, authService, log)
			metrics.SessionOutcomesTotal.WithLabelValues(string(auth.OutcomeFrom(ctx))).Inc()
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

func resolve(c echo.Context, authService ports.AuthService, log zerolog.Logger) context.Context {
	ctx := c.Request().Context()
	raw, transport := accessToken(c.Request())
	if raw == "" {
		return auth.WithOutcome(ctx, auth.OutcomeMissing)
	}

	user, claims, err := authService.Authenticate(ctx, raw)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrTokenExpired):
		return auth.WithOutcome(ctx, auth.OutcomeExpired)
	case errors.Is(err, domain.ErrTokenInvalid):
		return auth.WithOutcome(ctx, auth.OutcomeInvalid)
	default:
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("session lookup failed")
		return auth.WithOutcome(ctx, auth.OutcomeInvalid)
	}

	if transport == auth.TransportCookie && isStateChanging(c.Request().Method) && !csrfMatches(c, claims.CSRF) {
		log.Warn().Int64("user_id", user.ID).Str("path", c.Request().URL.Path).Msg("csrf check failed")
		return auth.WithOutcome(ctx, auth.OutcomeInvalid)
	}

	return auth.WithIdentity(ctx, &auth.Identity{User: user, Claims: claims, Transport: transport})
}

func accessToken(r *http.Request) (string, auth.Transport) {
	if ck, err := r.Cookie(auth.AccessCookie); err == nil && ck.Value != "" {
		return ck.Value, auth.TransportCookie
	}
	parts := strings.SplitN(r.Header.Get(echo.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && strings.TrimSpace(parts[1]) != "" {
		return strings.TrimSpace(parts[1]), auth.TransportHeader
	}
	return "", ""
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func csrfMatches(c echo.Context, expected string) bool {
	got := c.Request().Header.Get(auth.CSRFHeader)
	if got == "" {
		got = c.FormValue(auth.CSRFFormField)
	}
	if got == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
