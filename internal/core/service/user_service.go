package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/geodonis/geodonis-web/internal/core/domain"
	"github.com/geodonis/geodonis-web/internal/core/ports"
	"github.com/geodonis/geodonis-web/pkg/metrics"
)

const (
	DefaultResetTTL = 24 * time.Hour

	// ResetPathPrefix is the browser route that completes a reset.
	ResetPathPrefix = "/reset_password/"
)

type userService struct {
	users    ports.UserRepository
	resets   ports.ResetTokenRepository
	events   ports.EventPublisher
	resetTTL time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewUserService returns a UserService implementation. events may be nil.
func NewUserService(
	users ports.UserRepository,
	resets ports.ResetTokenRepository,
	events ports.EventPublisher,
	resetTTL time.Duration,
	log zerolog.Logger,
) ports.UserService {
	if resetTTL <= 0 {
		resetTTL = DefaultResetTTL
	}
	return &userService{
		users:    users,
		resets:   resets,
		events:   events,
		resetTTL: resetTTL,
		now:      time.Now,
		log:      log,
	}
}

// CreateUser provisions an account with an unusable password and returns a
// one-time setup link. When the link cannot be generated the user is kept and
// returned together with domain.ErrResetLinkFailed.
func (s *userService) CreateUser(ctx context.Context, baseURL, email, username string) (*domain.User, *domain.ResetLink, error) {
	return s.createUser(ctx, baseURL, email, username, false)
}

// CreateSuperUser is CreateUser for an administrator account.
func (s *userService) CreateSuperUser(ctx context.Context, baseURL, email, username string) (*domain.User, *domain.ResetLink, error) {
	return s.createUser(ctx, baseURL, email, username, true)
}

func (s *userService) createUser(ctx context.Context, baseURL, email, username string, superUser bool) (*domain.User, *domain.ResetLink, error) {
	email = domain.NormalizeEmail(email)
	username = strings.TrimSpace(username)

	// 1. Uniqueness, email first so the reported field is stable.
	if err := s.ensureFree(ctx, email, username); err != nil {
		return nil, nil, err
	}

	// 2. Insert. A concurrent insert still surfaces as a field conflict.
	now := s.now().UTC()
	created, err := s.users.Create(ctx, &domain.User{
		Email:        email,
		Username:     username,
		PasswordHash: domain.UnusablePasswordHash,
		Status:       domain.StatusActive,
		IsSuperUser:  superUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			if conflict := s.ensureFree(ctx, email, username); conflict != nil {
				return nil, nil, conflict
			}
			return nil, nil, &domain.FieldConflictError{Field: "email"}
		}
		return nil, nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info().Int64("user_id", created.ID).Str("email", email).Str("username", username).Bool("super_user", superUser).Msg("user created")
	s.publish(ctx, domain.EventUserCreated, created)

	// 3. Setup link. Failure here does not undo step 2.
	link, err := s.issueLink(ctx, baseURL, created)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", created.ID).Msg("reset link generation failed after user creation")
		return created, nil, fmt.Errorf("%w: %v", domain.ErrResetLinkFailed, err)
	}
	return created, link, nil
}

// InitiateReset issues a new link for the account owning email. Unknown
// addresses yield (nil, nil) so callers can answer identically. Outstanding
// links for the same user stay valid.
func (s *userService) InitiateReset(ctx context.Context, baseURL, email string) (*domain.ResetLink, error) {
	email = domain.NormalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.log.Warn().Str("email", email).Msg("password reset requested for unknown email")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("initiate reset: %w", err)
	}

	link, err := s.issueLink(ctx, baseURL, user)
	if err != nil {
		return nil, fmt.Errorf("initiate reset: %w", err)
	}
	s.log.Info().Int64("user_id", user.ID).Msg("password reset link generated")
	s.publish(ctx, domain.EventPasswordResetRequested, user)
	return link, nil
}

// CheckResetToken returns the token when it can still be consumed.
func (s *userService) CheckResetToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	if token == "" {
		return nil, domain.ErrResetTokenInvalid
	}
	rt, err := s.resets.FindByToken(ctx, token)
	if errors.Is(err, domain.ErrResetTokenInvalid) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("check reset token: %w", err)
	}
	if !rt.IsValid(s.now()) {
		return nil, domain.ErrResetTokenInvalid
	}
	return rt, nil
}

// CompleteReset sets the password and consumes the token atomically.
func (s *userService) CompleteReset(ctx context.Context, token, password string) error {
	rt, err := s.CheckResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrResetTokenInvalid) {
			metrics.PasswordResetsTotal.WithLabelValues("rejected").Inc()
			s.log.Warn().Str("token_prefix", tokenPrefix(token)).Msg("invalid or expired password reset attempt")
		}
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log.Error().Int64("token_id", rt.ID).Int64("user_id", rt.UserID).Msg("user not found for valid reset token")
		}
		return fmt.Errorf("complete reset: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("complete reset: %w", err)
	}
	if err := s.resets.Consume(ctx, rt.ID, user.ID, string(hash)); err != nil {
		if errors.Is(err, domain.ErrResetTokenInvalid) {
			metrics.PasswordResetsTotal.WithLabelValues("rejected").Inc()
			return err
		}
		return fmt.Errorf("complete reset: %w", err)
	}

	metrics.PasswordResetsTotal.WithLabelValues("completed").Inc()
	s.log.Info().Int64("user_id", user.ID).Msg("password reset completed")
	s.publish(ctx, domain.EventPasswordResetCompleted, user)
	return nil
}

// EditAccount applies an email and/or password change to the caller's own
// account. The current password is not asked for.
func (s *userService) EditAccount(ctx context.Context, in ports.EditAccountInput) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("edit account: %w", err)
	}

	changed := false
	if email := domain.NormalizeEmail(in.Email); email != "" && email != user.Email {
		other, err := s.users.FindByEmail(ctx, email)
		switch {
		case err == nil && other.ID != user.ID:
			return nil, &domain.FieldConflictError{Field: "email"}
		case err != nil && !errors.Is(err, domain.ErrUserNotFound):
			return nil, fmt.Errorf("edit account: %w", err)
		}
		user.Email = email
		changed = true
	}
	if in.Password != "" {
		if err := validatePassword(in.Password); err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("edit account: %w", err)
		}
		user.PasswordHash = string(hash)
		changed = true
	}
	if !changed {
		return user, nil
	}

	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, &domain.FieldConflictError{Field: "email"}
		}
		return nil, fmt.Errorf("edit account: %w", err)
	}
	s.log.Info().Int64("user_id", user.ID).Msg("account updated")
	s.publish(ctx, domain.EventAccountUpdated, user)
	return user, nil
}

// PruneResetTokens deletes every expired or used reset token.
func (s *userService) PruneResetTokens(ctx context.Context) (int64, error) {
	n, err := s.resets.DeleteExpiredOrUsed(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("prune reset tokens: %w", err)
	}
	s.log.Info().Int64("deleted", n).Msg("reset tokens pruned")
	return n, nil
}

func (s *userService) ensureFree(ctx context.Context, email, username string) error {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return &domain.FieldConflictError{Field: "email"}
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("check email: %w", err)
	}
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return &domain.FieldConflictError{Field: "username"}
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("check username: %w", err)
	}
	return nil
}

func (s *userService) issueLink(ctx context.Context, baseURL string, user *domain.User) (*domain.ResetLink, error) {
	raw, err := randomToken(32)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	rt, err := s.resets.Create(ctx, &domain.PasswordResetToken{
		UserID:    user.ID,
		Token:     raw,
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	metrics.PasswordResetsTotal.WithLabelValues("issued").Inc()
	return &domain.ResetLink{
		URL:       strings.TrimRight(baseURL, "/") + ResetPathPrefix + url.PathEscape(rt.Token),
		Token:     rt.Token,
		ExpiresAt: rt.ExpiresAt,
	}, nil
}

func (s *userService) publish(ctx context.Context, typ domain.AccountEventType, user *domain.User) {
	if s.events == nil {
		return
	}
	evt := domain.AccountEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn().Err(err).Str("event", string(typ)).Int64("user_id", user.ID).Msg("account event not published")
	}
}

func validatePassword(password string) error {
	if len(password) < domain.MinPasswordLength {
		return domain.NewClientError("Password must be at least %d characters long.", domain.MinPasswordLength)
	}
	return nil
}

func tokenPrefix(token string) string {
	if len(token) > 6 {
		return token[:6]
	}
	return token
}
