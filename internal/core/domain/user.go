package domain

import (
	"strings"
	"time"
)

// UserStatus is the account lifecycle state.
type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusSuspended UserStatus = "suspended"
	StatusDeleted   UserStatus = "deleted"
)

// UnusablePasswordHash is stored for accounts that have not set a password yet.
// It is not a bcrypt hash, so no password can ever match it.
const UnusablePasswordHash = "!unusable"

// MinPasswordLength applies to every password set through reset or account edit.
const MinPasswordLength = 8

// User models an account holder.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Status       UserStatus `json:"status"`
	IsSuperUser  bool       `json:"is_super_user"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == StatusActive
}

// HasUsablePassword reports whether PasswordHash can match a password.
func (u *User) HasUsablePassword() bool {
	return strings.HasPrefix(u.PasswordHash, "$2")
}

// NormalizeEmail lowercases and trims an address before lookups and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
