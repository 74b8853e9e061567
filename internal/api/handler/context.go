package handler

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/geodonis/geodonis-web/internal/core/auth"
)

// currentIdentity returns the caller resolved by the session middleware. It is
// only nil on routes that are not behind RequireUser.
func currentIdentity(c echo.Context) *auth.Identity {
	return auth.FromContext(c.Request().Context())
}

// baseURL is the external origin used in generated links. An explicit
// override wins over the request's scheme and host.
func baseURL(c echo.Context, override string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	return c.Scheme() + "://" + c.Request().Host
}
