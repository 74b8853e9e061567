package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/geodonis/geodonis-web/internal/core/auth"
	"github.com/geodonis/geodonis-web/internal/core/domain"
)

const (
	LoginPath        = "/login"
	RefreshRetryPath = "/api/auth/refresh/retry"
)

// IsAPIPath reports whether path belongs to the JSON namespace. Everything
// else is treated as a browser page.
func IsAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/file/")
}

// RequireUser lets requests with a resolved identity through. Others get a
// JSON error on API paths and a redirect on browser paths.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if auth.FromContext(ctx) != nil {
				return next(c)
			}
			return Reject(c, auth.OutcomeFrom(ctx))
		}
	}
}

// RequireAdmin checks the is_super_user claim of the token sent with this
// request.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			id := auth.FromContext(ctx)
			if id == nil {
				if !IsAPIPath(c.Request().URL.Path) {
					return Reject(c, auth.OutcomeFrom(ctx))
				}
				return &domain.ClientError{Msg: "Authentication required", Status: http.StatusUnauthorized}
			}
			if !id.IsAdmin() {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}

// Reject answers an unauthenticated request according to its namespace.
func Reject(c echo.Context, outcome auth.Outcome) error {
	if IsAPIPath(c.Request().URL.Path) {
		switch outcome {
		case auth.OutcomeExpired:
			return domain.ErrTokenExpired
		case auth.OutcomeInvalid:
			return domain.ErrTokenInvalid
		default:
			return domain.ErrUnauthorized
		}
	}

	target := LoginPath
	if outcome == auth.OutcomeExpired {
		target = RefreshRetryPath
	}
	return RedirectWithNext(c, target, requestURI(c.Request()))
}

// RedirectWithNext redirects to target?next=<next>, using 302 for GET/HEAD
// and 303 for everything else.
func RedirectWithNext(c echo.Context, target, next string) error {
	return c.Redirect(RedirectStatus(c.Request().Method), target+"?next="+url.QueryEscape(next))
}

// RedirectStatus picks the redirect code for method.
func RedirectStatus(method string) int {
	if method == http.MethodGet || method == http.MethodHead {
		return http.StatusFound
	}
	return http.StatusSeeOther
}

// SafeNext returns next when it is a local absolute path and "/" otherwise.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}

func requestURI(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}
