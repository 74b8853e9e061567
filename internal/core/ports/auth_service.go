package ports

import (
	"context"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	User    *domain.User
	Access  *domain.IssuedToken
	Refresh *domain.IssuedToken
}

// RefreshResult is returned when a refresh token is exchanged.
type RefreshResult struct {
	User   *domain.User
	Access *domain.IssuedToken
}

// AuthService covers login, token refresh and per-request identity resolution.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
	// Reissue mints a non-fresh access token for an already authenticated user.
	Reissue(ctx context.Context, userID int64) (*RefreshResult, error)
	// Authenticate validates an access token and loads its live, active user.
	Authenticate(ctx context.Context, accessToken string) (*domain.User, *domain.TokenClaims, error)
}
