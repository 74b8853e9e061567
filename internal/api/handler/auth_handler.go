package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/geodonis/geodonis-web/internal/api/middleware"
	"github.com/geodonis/geodonis-web/internal/core/auth"
	"github.com/geodonis/geodonis-web/internal/core/domain"
	"github.com/geodonis/geodonis-web/internal/core/ports"
)

// keepAliveWindow is how close to expiry a cookie token must be before
// keep-alive swaps it for a new one.
const keepAliveWindow = 5 * time.Minute

type AuthHandler struct {
	authService ports.AuthService
	cookies     CookieConfig
	now         func() time.Time
	log         zerolog.Logger
}

func NewAuthHandler(authService ports.AuthService, cookies CookieConfig, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, cookies: cookies, now: time.Now, log: log}
}

type loginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type loginResponse struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user"`
}

type refreshResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token"`
}

type keepAliveResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Refreshed bool   `json:"refreshed"`
}

type sessionValidResponse struct {
	Success      bool `json:"success"`
	LoginIsValid bool `json:"login_is_valid"`
}

// Login authenticates a user and returns an access/refresh token pair.
// The tokens are also set as cookies for browser clients.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  messageResponse
// @Failure      401   {object}  messageResponse
// @Failure      429   {object}  messageResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewClientError("Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return domain.NewClientError("%s", err.Error())
	}

	res, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.cookies.setAccess(c, res.Access)
	h.cookies.setRefresh(c, res.Refresh)
	return c.JSON(http.StatusOK, loginResponse{
		Success:      true,
		Message:      "Login successful",
		AccessToken:  res.Access.Raw,
		RefreshToken: res.Refresh.Raw,
		User:         res.User,
	})
}

// Logout clears the JWT cookies. Tokens stay valid until they expire.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	h.cookies.unsetAll(c)
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Logout successful"})
}

// Refresh exchanges a refresh token for a new non-fresh access token.
// The refresh token is read from its cookie, which then requires the
// X-CSRF-TOKEN header, or from a bearer header.
//
// @Summary      Refresh access token
// @Tags         auth
// @Produce      json
// @Param        Authorization  header    string  false  "Bearer refresh token"
// @Param        X-CSRF-TOKEN   header    string  false  "CSRF value when using the refresh cookie"
// @Success      200            {object}  refreshResponse
// @Failure      401            {object}  messageResponse
// @Failure      422            {object}  messageResponse
// @Router       /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw, fromCookie := refreshToken(c)
	if raw == "" {
		return domain.ErrUnauthorized
	}
	if fromCookie && !refreshCSRFMatches(c) {
		return domain.ErrCSRFMismatch
	}

	res, err := h.authService.Refresh(c.Request().Context(), raw)
	if err != nil {
		return err
	}
	if fromCookie {
		h.cookies.setAccess(c, res.Access)
	}
	return c.JSON(http.StatusOK, refreshResponse{Success: true, AccessToken: res.Access.Raw})
}

// RefreshRetry is where browsers with an expired access cookie are sent. It
// mints a new access cookie from the refresh cookie and returns the browser
// to next, or sends it to the login page when the refresh token is unusable.
//
// @Summary      Refresh and retry
// @Tags         auth
// @Param        next  query  string  false  "Local path to return to"
// @Success      302
// @Router       /api/auth/refresh/retry [get]
func (h *AuthHandler) RefreshRetry(c echo.Context) error {
	next := middleware.SafeNext(c.QueryParam("next"))

	ck, err := c.Cookie(auth.RefreshCookie)
	if err != nil || ck.Value == "" {
		return middleware.RedirectWithNext(c, middleware.LoginPath, next)
	}
	res, err := h.authService.Refresh(c.Request().Context(), ck.Value)
	if err != nil {
		if !errors.Is(err, domain.ErrTokenExpired) && !errors.Is(err, domain.ErrTokenInvalid) {
			h.log.Error().Err(err).Msg("refresh and retry failed")
		}
		return middleware.RedirectWithNext(c, middleware.LoginPath, next)
	}

	h.cookies.setAccess(c, res.Access)
	return c.Redirect(middleware.RedirectStatus(c.Request().Method), next)
}

// KeepAlive confirms the session and, for cookie sessions close to expiry,
// replaces the access cookie with a new non-fresh one.
//
// @Summary      Keep session alive
// @Tags         auth
// @Produce      json
// @Success      200  {object}  keepAliveResponse
// @Failure      401  {object}  messageResponse
// @Router       /api/auth/keep-alive [get]
func (h *AuthHandler) KeepAlive(c echo.Context) error {
	id := currentIdentity(c)
	if id == nil {
		return domain.ErrUnauthorized
	}

	refreshed := false
	if id.Transport == auth.TransportCookie && id.Claims.ExpiresAt.Sub(h.now()) < keepAliveWindow {
		res, err := h.authService.Reissue(c.Request().Context(), id.User.ID)
		if err != nil {
			return err
		}
		h.cookies.setAccess(c, res.Access)
		refreshed = true
	}
	return c.JSON(http.StatusOK, keepAliveResponse{Success: true, Message: "Session is active", Refreshed: refreshed})
}

// SessionValid reports whether the request carries a usable access token.
//
// @Summary      Session check
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionValidResponse
// @Router       /api/auth/session-valid [get]
func (h *AuthHandler) SessionValid(c echo.Context) error {
	return c.JSON(http.StatusOK, sessionValidResponse{Success: true, LoginIsValid: currentIdentity(c) != nil})
}

func refreshToken(c echo.Context) (raw string, fromCookie bool) {
	if ck, err := c.Cookie(auth.RefreshCookie); err == nil && ck.Value != "" {
		return ck.Value, true
	}
	parts := strings.SplitN(c.Request().Header.Get(echo.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1]), false
	}
	return "", false
}

// refreshCSRFMatches compares the header against the refresh CSRF cookie.
func refreshCSRFMatches(c echo.Context) bool {
	header := c.Request().Header.Get(auth.CSRFHeader)
	ck, err := c.Cookie(auth.RefreshCSRFCookie)
	if header == "" || err != nil || ck.Value == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(ck.Value)) == 1
}
