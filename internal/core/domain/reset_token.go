package domain

import "time"

// PasswordResetToken is a one-time credential linked to a user.
type PasswordResetToken struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// IsExpired reports whether now is past the token's expiry.
func (t *PasswordResetToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsUsed reports whether the token has been consumed.
func (t *PasswordResetToken) IsUsed() bool {
	return t.Used
}

// IsValid reports whether the token can still be consumed at now.
func (t *PasswordResetToken) IsValid(now time.Time) bool {
	return !t.IsUsed() && !t.IsExpired(now)
}

// ResetLink is what an admin hands to a user to (re)set a password.
type ResetLink struct {
	URL       string    `json:"url"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
