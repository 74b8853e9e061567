package ports

import (
	"context"
	"time"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

// ResetTokenRepository defines persistence operations for password reset tokens.
type ResetTokenRepository interface {
	// FindByToken matches unused tokens only and returns
	// domain.ErrResetTokenInvalid otherwise. Expiry is checked by the caller.
	FindByToken(ctx context.Context, token string) (*domain.PasswordResetToken, error)
	Create(ctx context.Context, token *domain.PasswordResetToken) (*domain.PasswordResetToken, error)
	// Consume sets the user's password hash and marks the token used in a
	// single transaction. It returns domain.ErrResetTokenInvalid when the
	// token was consumed concurrently; nothing is written in that case.
	Consume(ctx context.Context, tokenID, userID int64, passwordHash string) error
	// DeleteExpiredOrUsed removes tokens expired before now or already used.
	DeleteExpiredOrUsed(ctx context.Context, now time.Time) (int64, error)
}
