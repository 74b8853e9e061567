package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/geodonis/geodonis-web/internal/core/domain"
	"github.com/geodonis/geodonis-web/internal/core/ports"
)

// UserHandler exposes user management over JSON.
type UserHandler struct {
	userService   ports.UserService
	publicBaseURL string
	log           zerolog.Logger
}

func NewUserHandler(userService ports.UserService, publicBaseURL string, log zerolog.Logger) *UserHandler {
	return &UserHandler{userService: userService, publicBaseURL: publicBaseURL, log: log}
}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required"`
}

type initiateResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type createUserResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	User      *domain.User      `json:"user"`
	ResetLink *domain.ResetLink `json:"reset_link,omitempty"`
}

type resetLinkResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	ResetLink *domain.ResetLink `json:"reset_link,omitempty"`
}

type accountResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
}

type pruneResponse struct {
	Success bool  `json:"success"`
	Deleted int64 `json:"deleted"`
}

// Create provisions a user and returns a one-time password setup link.
//
// @Summary      Create user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createUserRequest  true  "New account"
// @Success      201   {object}  createUserResponse
// @Failure      400   {object}  messageResponse
// @Failure      401   {object}  messageResponse
// @Failure      403   {object}  messageResponse
// @Failure      500   {object}  createUserResponse
// @Router       /api/users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewClientError("Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return domain.NewClientError("%s", err.Error())
	}

	user, link, err := h.userService.CreateUser(c.Request().Context(), baseURL(c, h.publicBaseURL), req.Email, req.Username)
	if errors.Is(err, domain.ErrResetLinkFailed) && user != nil {
		return c.JSON(http.StatusInternalServerError, createUserResponse{
			Success: false,
			Message: domain.MsgResetLinkFailed,
			User:    user,
		})
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, createUserResponse{
		Success:   true,
		Message:   "New user created successfully.",
		User:      user,
		ResetLink: link,
	})
}

// InitiateReset issues a reset link. The response has the same shape
// whether or not the email belongs to an account.
//
// @Summary      Initiate password reset
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      initiateResetRequest  true  "Account email"
// @Success      200   {object}  resetLinkResponse
// @Failure      400   {object}  messageResponse
// @Failure      403   {object}  messageResponse
// @Router       /api/users/reset [post]
func (h *UserHandler) InitiateReset(c echo.Context) error {
	var req initiateResetRequest
	if err := c.Bind(&req); err != nil {
		return domain.NewClientError("Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return domain.NewClientError("%s", err.Error())
	}

	link, err := h.userService.InitiateReset(c.Request().Context(), baseURL(c, h.publicBaseURL), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resetLinkResponse{
		Success:   true,
		Message:   "If the account exists a reset link was generated.",
		ResetLink: link,
	})
}

// CompleteReset sets a new password using a reset token.
//
// @Summary      Complete password reset
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        token  path      string             true  "Reset token"
// @Param        body   body      resetPasswordForm  true  "New password"
// @Success      200    {object}  messageResponse
// @Failure      400    {object}  messageResponse
// @Router       /api/users/reset/{token} [post]
func (h *UserHandler) CompleteReset(c echo.Context) error {
	var req resetPasswordForm
	if err := c.Bind(&req); err != nil {
		return domain.NewClientError("Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return domain.NewClientError("%s", err.Error())
	}

	if err := h.userService.CompleteReset(c.Request().Context(), c.Param("token"), req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Your password has been reset."})
}

// EditAccount changes the caller's email and/or password.
//
// @Summary      Edit own account
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      editAccountForm  true  "Changes"
// @Success      200   {object}  accountResponse
// @Failure      400   {object}  messageResponse
// @Failure      401   {object}  messageResponse
// @Router       /api/account [patch]
func (h *UserHandler) EditAccount(c echo.Context) error {
	id := currentIdentity(c)
	if id == nil {
		return domain.ErrUnauthorized
	}

	var req editAccountForm
	if err := c.Bind(&req); err != nil {
		return domain.NewClientError("Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return domain.NewClientError("%s", err.Error())
	}

	user, err := h.userService.EditAccount(c.Request().Context(), ports.EditAccountInput{
		UserID:   id.User.ID,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, accountResponse{Success: true, Message: "Your account has been updated.", User: user})
}

// PruneResetTokens deletes expired and used reset tokens.
//
// @Summary      Prune reset tokens
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  pruneResponse
// @Failure      403  {object}  messageResponse
// @Router       /api/admin/reset-tokens/prune [post]
func (h *UserHandler) PruneResetTokens(c echo.Context) error {
	n, err := h.userService.PruneResetTokens(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pruneResponse{Success: true, Deleted: n})
}
