package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/geodonis/geodonis-web/internal/api/middleware"
	"github.com/geodonis/geodonis-web/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status codes.
//   - Logs unexpected errors without leaking details to the client.
//   - Renders {"success": false, "message": "..."} on API paths and the
//     error page everywhere else.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		if middleware.IsAPIPath(c.Request().URL.Path) || c.Echo().Renderer == nil {
			_ = c.JSON(code, errorResponse{Success: false, Message: msg})
			return
		}
		if rerr := c.Render(code, "error.html", map[string]any{
			"title":   http.StatusText(code),
			"status":  code,
			"message": msg,
		}); rerr != nil {
			log.Error().Err(rerr).Msg("error page render failed")
			_ = c.String(code, msg)
		}
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	var ce *domain.ClientError
	if errors.As(err, &ce) {
		if ce.Status == 0 {
			return http.StatusBadRequest, ce.Msg
		}
		return ce.Status, ce.Msg
	}

	var conflict *domain.FieldConflictError
	if errors.As(err, &conflict) {
		return http.StatusBadRequest, conflict.Error()
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, domain.MsgInvalidCredentials
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, domain.MsgMissingToken
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, domain.MsgExpiredToken
	case errors.Is(err, domain.ErrTokenInvalid):
		return http.StatusUnprocessableEntity, domain.MsgInvalidToken
	case errors.Is(err, domain.ErrCSRFMismatch):
		return http.StatusUnauthorized, domain.MsgCSRFMismatch
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, domain.MsgAdminRequired
	case errors.Is(err, domain.ErrResetTokenInvalid):
		return http.StatusBadRequest, domain.MsgResetTokenInvalid
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusBadRequest, "User not found."
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusBadRequest, "User already exists."
	case errors.Is(err, domain.ErrFileNotFound):
		return http.StatusNotFound, "File not found"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
