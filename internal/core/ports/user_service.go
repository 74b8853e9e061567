package ports

import (
	"context"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

// EditAccountInput carries optional changes; empty fields are left untouched.
type EditAccountInput struct {
	UserID   int64
	Email    string
	Password string
}

// UserService covers admin provisioning, password reset and self-service edits.
// baseURL is the external origin used to build reset links, e.g. "https://app.example.com".
type UserService interface {
	CreateUser(ctx context.Context, baseURL, email, username string) (*domain.User, *domain.ResetLink, error)
	// CreateSuperUser provisions an administrator the same way.
	CreateSuperUser(ctx context.Context, baseURL, email, username string) (*domain.User, *domain.ResetLink, error)
	// InitiateReset returns a nil link and nil error when the email is unknown.
	InitiateReset(ctx context.Context, baseURL, email string) (*domain.ResetLink, error)
	CheckResetToken(ctx context.Context, token string) (*domain.PasswordResetToken, error)
	CompleteReset(ctx context.Context, token, password string) error
	EditAccount(ctx context.Context, in EditAccountInput) (*domain.User, error)
	PruneResetTokens(ctx context.Context) (int64, error)
}
