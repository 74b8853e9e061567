package ports

import (
	"context"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

// UserRepository defines persistence operations for accounts.
// Lookups return domain.ErrUserNotFound when nothing matches; writes that
// collide on email or username return domain.ErrUserExists.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	// Create assigns the next integer ID and returns the stored user.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}
