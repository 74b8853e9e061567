package domain

import "time"

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// TokenClaims is the verified content of an access or refresh token.
type TokenClaims struct {
	ID          string
	UserID      int64
	Type        TokenType
	Fresh       bool
	IsSuperUser bool
	CSRF        string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// IssuedToken is a signed token plus the values a transport needs to carry it.
type IssuedToken struct {
	Raw       string
	CSRF      string
	ExpiresAt time.Time
}
