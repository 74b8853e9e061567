package ports

import "github.com/geodonis/geodonis-web/internal/core/domain"

// TokenIssuer mints and verifies signed access and refresh tokens.
type TokenIssuer interface {
	IssueAccess(user *domain.User, fresh bool) (*domain.IssuedToken, error)
	IssueRefresh(user *domain.User) (*domain.IssuedToken, error)
	// Validate returns domain.ErrTokenExpired or domain.ErrTokenInvalid on failure.
	Validate(raw string, expected domain.TokenType) (*domain.TokenClaims, error)
}
