package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("missing authorization token")
	ErrForbidden          = errors.New("admin access required")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrCSRFMismatch       = errors.New("csrf token mismatch")

	ErrUserExists        = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrResetTokenInvalid = errors.New("reset token invalid or expired")
	ErrResetLinkFailed   = errors.New("reset link generation failed")

	ErrFileNotFound = errors.New("file not found")
)

// User-facing messages. Enumeration-sensitive flows must use these verbatim.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgResetTokenInvalid  = "The password reset link is invalid or has expired."
	MsgResetLinkFailed    = "User created but there was an error generating the password reset link."
	MsgMissingToken       = "Missing authorization token"
	MsgInvalidToken       = "Invalid authorization token"
	MsgExpiredToken       = "Token has expired"
	MsgCSRFMismatch       = "Missing or invalid CSRF token"
	MsgAdminRequired      = "Admin access required"
)

// FieldConflictError reports which unique field collided.
type FieldConflictError struct {
	Field string
}

func (e *FieldConflictError) Error() string {
	return fmt.Sprintf("There is already an account with that %s.", e.Field)
}

func (e *FieldConflictError) Unwrap() error { return ErrUserExists }

// ClientError is a request problem whose message is safe to show the caller.
// A zero Status means 400.
type ClientError struct {
	Msg    string
	Status int
}

func (e *ClientError) Error() string { return e.Msg }

// NewClientError returns a 400 ClientError.
func NewClientError(format string, args ...any) *ClientError {
	return &ClientError{Msg: fmt.Sprintf(format, args...)}
}
