package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/geodonis/geodonis-web/internal/core/domain"
	"github.com/geodonis/geodonis-web/internal/core/ports"
	"github.com/geodonis/geodonis-web/pkg/metrics"
)

// AuthService implements login, refresh and access-token authentication.
type AuthService struct {
	users     ports.UserRepository
	tokens    ports.TokenIssuer
	dummyHash []byte
	log       zerolog.Logger
}

// NewAuthService builds an AuthService. It hashes a throwaway password once so
// that logins for unknown accounts still pay the bcrypt cost.
func NewAuthService(users ports.UserRepository, tokens ports.TokenIssuer, log zerolog.Logger) (*AuthService, error) {
	seed, err := randomToken(24)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(seed), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	return &AuthService{users: users, tokens: tokens, dummyHash: dummy, log: log}, nil
}

// Login checks the credentials and issues a fresh access token and a refresh
// token. Every failure cause returns domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("login: %w", err)
	}

	hash := s.dummyHash
	eligible := user != nil && user.IsActive() && user.HasUsablePassword()
	if eligible {
		hash = []byte(user.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || !eligible {
		metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		s.log.Info().Str("email", email).Msg("login rejected")
		return nil, domain.ErrInvalidCredentials
	}

	access, err := s.tokens.IssueAccess(user, true)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.log.Info().Int64("user_id", user.ID).Msg("login succeeded")
	return &ports.LoginResult{User: user, Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a refresh token for a non-fresh access token. The admin
// claim is taken from the live user record, never from the old token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*ports.RefreshResult, error) {
	claims, err := s.tokens.Validate(refreshToken, domain.TokenRefresh)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues(refreshOutcome(err)).Inc()
		return nil, err
	}

	res, err := s.Reissue(ctx, claims.UserID)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues(refreshOutcome(err)).Inc()
		return nil, err
	}
	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	return res, nil
}

// Reissue loads the user and mints a non-fresh access token for it.
func (s *AuthService) Reissue(ctx context.Context, userID int64) (*ports.RefreshResult, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	access, err := s.tokens.IssueAccess(user, false)
	if err != nil {
		return nil, fmt.Errorf("reissue: %w", err)
	}
	return &ports.RefreshResult{User: user, Access: access}, nil
}

// Authenticate validates an access token and resolves its subject to a live user.
// A subject that no longer maps to an active user is reported as an invalid token.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.User, *domain.TokenClaims, error) {
	claims, err := s.tokens.Validate(accessToken, domain.TokenAccess)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

func (s *AuthService) activeUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	if !user.IsActive() {
		return nil, domain.ErrTokenInvalid
	}
	return user, nil
}

func refreshOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenInvalid):
		return "invalid"
	default:
		return "error"
	}
}
