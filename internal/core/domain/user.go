package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus represents the current status of a user account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is a marketplace participant. The same account can act as
// requester on its own exchanges and as helper on other people's.
type User struct {
	ID                 uuid.UUID  `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	PasswordHash       string     `json:"-"`
	Balance            int64      `json:"balance"` // In smallest currency unit, never negative
	Status             UserStatus `json:"status"`
	Location           *Point     `json:"location,omitempty"`
	CompletedExchanges int64      `json:"completed_exchanges"`
	WebhookURL         *string    `json:"webhook_url,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsActive returns true if the account may create and accept exchanges.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// CanCover returns true if the balance covers an electronic payment of
// the given amount. The authoritative check happens in the ledger update
// itself; this exists for the cheap early rejections.
func (u *User) CanCover(amount int64) bool {
	return u.Balance >= amount
}
