package domain

import "time"

// AccountEventType names a change in an account's lifecycle.
type AccountEventType string

const (
	EventUserCreated            AccountEventType = "user.created"
	EventPasswordResetRequested AccountEventType = "password_reset.requested"
	EventPasswordResetCompleted AccountEventType = "password_reset.completed"
	EventAccountUpdated         AccountEventType = "account.updated"
)

// AccountEvent is published after an account mutation commits.
// It never carries secrets such as reset tokens or hashes.
type AccountEvent struct {
	ID         string           `json:"id"`
	Type       AccountEventType `json:"type"`
	UserID     int64            `json:"user_id"`
	Email      string           `json:"email,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
