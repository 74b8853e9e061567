package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/geodonis/geodonis-web/internal/api/middleware"
	"github.com/geodonis/geodonis-web/internal/core/domain"
	"github.com/geodonis/geodonis-web/internal/core/ports"
)

// PageHandler serves the server-rendered browser pages.
type PageHandler struct {
	authService   ports.AuthService
	userService   ports.UserService
	cookies       CookieConfig
	publicBaseURL string
	log           zerolog.Logger
}

func NewPageHandler(
	authService ports.AuthService,
	userService ports.UserService,
	cookies CookieConfig,
	publicBaseURL string,
	log zerolog.Logger,
) *PageHandler {
	return &PageHandler{
		authService:   authService,
		userService:   userService,
		cookies:       cookies,
		publicBaseURL: publicBaseURL,
		log:           log,
	}
}

type createUserForm struct {
	Email    string `form:"email" validate:"required,email"`
	Username string `form:"username" validate:"required"`
}

type initiateResetForm struct {
	Email string `form:"email" validate:"required,email"`
}

type resetPasswordForm struct {
	Password  string `form:"password" json:"password" validate:"required,min=8"`
	Password2 string `form:"password2" json:"password2" validate:"required,eqfield=Password"`
}

type editAccountForm struct {
	Email     string `form:"email" json:"email" validate:"omitempty,email"`
	Password  string `form:"password" json:"password" validate:"omitempty,min=8"`
	Password2 string `form:"password2" json:"password2" validate:"eqfield=Password"`
}

func (h *PageHandler) Index(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", map[string]any{"title": "Geodonis"})
}

// LoginCheck is a protected copy of the index page.
func (h *PageHandler) LoginCheck(c echo.Context) error {
	id := currentIdentity(c)
	h.log.Debug().Int64("user_id", id.User.ID).Str("username", id.User.Username).Msg("login check")
	return h.Index(c)
}

func (h *PageHandler) LoginForm(c echo.Context) error {
	if currentIdentity(c) != nil {
		return c.Redirect(http.StatusFound, "/")
	}
	return c.Render(http.StatusOK, "login.html", map[string]any{
		"title": "Sign In",
		"next":  c.QueryParam("next"),
	})
}

func (h *PageHandler) Login(c echo.Context) error {
	if currentIdentity(c) != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	next := c.QueryParam("next")
	if next == "" {
		next = c.FormValue("next")
	}

	var form loginRequest
	if err := c.Bind(&form); err != nil {
		return domain.NewClientError("Invalid form submission")
	}
	if err := c.Validate(&form); err != nil {
		return c.Render(http.StatusOK, "login.html", map[string]any{
			"title": "Sign In",
			"next":  next,
			"email": form.Email,
			"error": err.Error(),
		})
	}

	res, err := h.authService.Login(c.Request().Context(), form.Email, form.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		addFlash(c, "danger", domain.MsgInvalidCredentials)
		if next != "" {
			return middleware.RedirectWithNext(c, middleware.LoginPath, next)
		}
		return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
	}
	if err != nil {
		return err
	}

	h.cookies.setAccess(c, res.Access)
	h.cookies.setRefresh(c, res.Refresh)
	return c.Redirect(http.StatusSeeOther, middleware.SafeNext(next))
}

func (h *PageHandler) Logout(c echo.Context) error {
	h.cookies.unsetAll(c)
	return c.Redirect(middleware.RedirectStatus(c.Request().Method), "/")
}

func (h *PageHandler) CreateUserForm(c echo.Context) error {
	return c.Render(http.StatusOK, "create_user.html", map[string]any{"title": "Create User"})
}

func (h *PageHandler) CreateUser(c echo.Context) error {
	var form createUserForm
	if err := c.Bind(&form); err != nil {
		return domain.NewClientError("Invalid form submission")
	}
	data := map[string]any{"title": "Create User", "email": form.Email, "username": form.Username}
	if err := c.Validate(&form); err != nil {
		h.log.Warn().Err(err).Msg("create user form rejected")
		data["error"] = err.Error()
		return c.Render(http.StatusOK, "create_user.html", data)
	}

	user, link, err := h.userService.CreateUser(c.Request().Context(), baseURL(c, h.publicBaseURL), form.Email, form.Username)
	var conflict *domain.FieldConflictError
	switch {
	case errors.As(err, &conflict):
		data["error"] = conflict.Error()
		return c.Render(http.StatusOK, "create_user.html", data)
	case errors.Is(err, domain.ErrResetLinkFailed):
		addFlash(c, "warning", domain.MsgResetLinkFailed)
		return c.Render(http.StatusInternalServerError, "create_user.html", data)
	case err != nil:
		return err
	}

	addFlash(c, "success", "New user created successfully. Please send the following link to the user to set their password:")
	return c.Render(http.StatusOK, "create_user_verification.html", map[string]any{
		"title":      "User Created",
		"user":       user,
		"reset_link": link.URL,
	})
}

func (h *PageHandler) InitiateResetForm(c echo.Context) error {
	return c.Render(http.StatusOK, "initiate_reset_password.html", map[string]any{"title": "Initiate Password Reset"})
}

// InitiateReset answers the same way whether or not the address is known.
func (h *PageHandler) InitiateReset(c echo.Context) error {
	var form initiateResetForm
	if err := c.Bind(&form); err != nil {
		return domain.NewClientError("Invalid form submission")
	}
	if err := c.Validate(&form); err != nil {
		return c.Render(http.StatusOK, "initiate_reset_password.html", map[string]any{
			"title": "Initiate Password Reset",
			"email": form.Email,
			"error": err.Error(),
		})
	}

	link, err := h.userService.InitiateReset(c.Request().Context(), baseURL(c, h.publicBaseURL), form.Email)
	if err != nil {
		h.log.Error().Err(err).Msg("initiate reset failed")
		addFlash(c, "danger", "An error occurred while generating the password reset link.")
		return c.Render(http.StatusInternalServerError, "initiate_reset_password.html", map[string]any{
			"title": "Initiate Password Reset",
			"email": form.Email,
		})
	}

	data := map[string]any{"title": "Password Reset Link"}
	if link != nil {
		data["reset_link"] = link.URL
	}
	addFlash(c, "info", "If an account exists for that email, a password reset link was generated.")
	return c.Render(http.StatusOK, "reset_password_link.html", data)
}

func (h *PageHandler) ResetPasswordForm(c echo.Context) error {
	token := c.Param("token")
	if _, err := h.userService.CheckResetToken(c.Request().Context(), token); err != nil {
		return h.resetFailed(c, err)
	}
	return c.Render(http.StatusOK, "reset_password.html", map[string]any{"title": "Reset Password", "token": token})
}

func (h *PageHandler) ResetPassword(c echo.Context) error {
	token := c.Param("token")
	ctx := c.Request().Context()
	if _, err := h.userService.CheckResetToken(ctx, token); err != nil {
		return h.resetFailed(c, err)
	}

	var form resetPasswordForm
	if err := c.Bind(&form); err != nil {
		return domain.NewClientError("Invalid form submission")
	}
	if err := c.Validate(&form); err != nil {
		return c.Render(http.StatusOK, "reset_password.html", map[string]any{
			"title": "Reset Password",
			"token": token,
			"error": err.Error(),
		})
	}

	err := h.userService.CompleteReset(ctx, token, form.Password)
	var ce *domain.ClientError
	switch {
	case err == nil:
	case errors.As(err, &ce):
		return c.Render(http.StatusOK, "reset_password.html", map[string]any{
			"title": "Reset Password",
			"token": token,
			"error": ce.Msg,
		})
	case errors.Is(err, domain.ErrResetTokenInvalid), errors.Is(err, domain.ErrUserNotFound):
		return h.resetFailed(c, err)
	default:
		h.log.Error().Err(err).Msg("password reset failed")
		addFlash(c, "danger", "An error occurred while resetting your password.")
		return c.Render(http.StatusInternalServerError, "reset_password.html", map[string]any{
			"title": "Reset Password",
			"token": token,
		})
	}

	addFlash(c, "success", "Your password has been reset.")
	return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

func (h *PageHandler) resetFailed(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrResetTokenInvalid):
		addFlash(c, "danger", domain.MsgResetTokenInvalid)
	case errors.Is(err, domain.ErrUserNotFound):
		addFlash(c, "danger", "User not found.")
	default:
		return err
	}
	return c.Redirect(middleware.RedirectStatus(c.Request().Method), middleware.LoginPath)
}

func (h *PageHandler) EditAccountForm(c echo.Context) error {
	return c.Render(http.StatusOK, "edit_account.html", map[string]any{
		"title": "Edit Account",
		"email": currentIdentity(c).User.Email,
	})
}

func (h *PageHandler) EditAccount(c echo.Context) error {
	id := currentIdentity(c)

	var form editAccountForm
	if err := c.Bind(&form); err != nil {
		return domain.NewClientError("Invalid form submission")
	}
	data := map[string]any{"title": "Edit Account", "email": form.Email}
	if err := c.Validate(&form); err != nil {
		data["error"] = err.Error()
		return c.Render(http.StatusOK, "edit_account.html", data)
	}

	_, err := h.userService.EditAccount(c.Request().Context(), ports.EditAccountInput{
		UserID:   id.User.ID,
		Email:    form.Email,
		Password: form.Password,
	})
	var (
		conflict *domain.FieldConflictError
		ce       *domain.ClientError
	)
	switch {
	case errors.As(err, &conflict):
		data["error"] = "Please use a different email address."
		return c.Render(http.StatusOK, "edit_account.html", data)
	case errors.As(err, &ce):
		data["error"] = ce.Msg
		return c.Render(http.StatusOK, "edit_account.html", data)
	case err != nil:
		h.log.Error().Err(err).Int64("user_id", id.User.ID).Msg("account update failed")
		addFlash(c, "danger", "An error occurred while updating your account.")
		return c.Render(http.StatusInternalServerError, "edit_account.html", data)
	}

	addFlash(c, "success", "Your account has been updated.")
	return c.Redirect(http.StatusSeeOther, "/edit_account")
}

func (h *PageHandler) UploadTest(c echo.Context) error {
	return c.Render(http.StatusOK, "upload_test.html", map[string]any{"title": "Upload Test"})
}
