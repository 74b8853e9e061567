package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/geodonis/geodonis-web/internal/core/auth"
	"github.com/geodonis/geodonis-web/internal/core/domain"
)

// CookieConfig controls the attributes of the JWT cookies.
type CookieConfig struct {
	Secure bool
}

// setAccess writes session cookies without Expires so the browser keeps
// sending an expired access token and the session boundary can classify it
// as expired rather than missing.
func (cc CookieConfig) setAccess(c echo.Context, tok *domain.IssuedToken) {
	cc.set(c, auth.AccessCookie, tok.Raw, auth.RootCookiePath, true, time.Time{})
	cc.set(c, auth.AccessCSRFCookie, tok.CSRF, auth.RootCookiePath, false, time.Time{})
}

func (cc CookieConfig) setRefresh(c echo.Context, tok *domain.IssuedToken) {
	cc.set(c, auth.RefreshCookie, tok.Raw, auth.RefreshCookiePath, true, tok.ExpiresAt)
	cc.set(c, auth.RefreshCSRFCookie, tok.CSRF, auth.RefreshCookiePath, false, tok.ExpiresAt)
}

// unsetAll expires every JWT cookie.
func (cc CookieConfig) unsetAll(c echo.Context) {
	for _, ck := range []struct {
		name     string
		path     string
		httpOnly bool
	}{
		{auth.AccessCookie, auth.RootCookiePath, true},
		{auth.AccessCSRFCookie, auth.RootCookiePath, false},
		{auth.RefreshCookie, auth.RefreshCookiePath, true},
		{auth.RefreshCSRFCookie, auth.RefreshCookiePath, false},
	} {
		c.SetCookie(&http.Cookie{
			Name:     ck.name,
			Value:    "",
			Path:     ck.path,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: ck.httpOnly,
			Secure:   cc.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// set leaves Expires unset for a zero expires, making a session cookie.
func (cc CookieConfig) set(c echo.Context, name, value, path string, httpOnly bool, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: httpOnly,
		Secure:   cc.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
