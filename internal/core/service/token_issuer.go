package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// tokenClaims is the JWT body. Refresh tokens leave Fresh and IsSuperUser unset.
type tokenClaims struct {
	Type        domain.TokenType `json:"type"`
	Fresh       bool             `json:"fresh,omitempty"`
	IsSuperUser bool             `json:"is_super_user,omitempty"`
	CSRF        string           `json:"csrf"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 access and refresh tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer returns a TokenIssuer. Non-positive TTLs fall back to the defaults.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source used for issuing and validating.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

// IssueAccess mints an access token whose admin claim is copied from user.
func (t *TokenIssuer) IssueAccess(user *domain.User, fresh bool) (*domain.IssuedToken, error) {
	return t.issue(user, domain.TokenAccess, fresh, t.accessTTL)
}

// IssueRefresh mints a refresh token. It carries no authorization claims.
func (t *TokenIssuer) IssueRefresh(user *domain.User) (*domain.IssuedToken, error) {
	return t.issue(user, domain.TokenRefresh, false, t.refreshTTL)
}

func (t *TokenIssuer) issue(user *domain.User, typ domain.TokenType, fresh bool, ttl time.Duration) (*domain.IssuedToken, error) {
	csrf, err := randomToken(16)
	if err != nil {
		return nil, fmt.Errorf("issue %s token: %w", typ, err)
	}

	now := t.now().UTC()
	exp := now.Add(ttl)
	claims := tokenClaims{
		Type: typ,
		CSRF: csrf,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if typ == domain.TokenAccess {
		claims.Fresh = fresh
		claims.IsSuperUser = user.IsSuperUser
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("issue %s token: %w", typ, err)
	}
	return &domain.IssuedToken{Raw: signed, CSRF: csrf, ExpiresAt: exp}, nil
}

// Validate verifies signature, type and expiry. A token of the wrong type is
// invalid even when it has also expired.
func (t *TokenIssuer) Validate(raw string, expected domain.TokenType) (*domain.TokenClaims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired) && claims.Type == expected:
		return nil, domain.ErrTokenExpired
	default:
		return nil, domain.ErrTokenInvalid
	}

	if claims.Type != expected {
		return nil, domain.ErrTokenInvalid
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, domain.ErrTokenInvalid
	}

	out := &domain.TokenClaims{
		ID:          claims.ID,
		UserID:      userID,
		Type:        claims.Type,
		Fresh:       claims.Fresh,
		IsSuperUser: claims.IsSuperUser,
		CSRF:        claims.CSRF,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// randomToken returns n random bytes encoded as unpadded base64url.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
