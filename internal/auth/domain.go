package auth

import "time"

// Identity represents a login account. Authorization state lives on the
// profile, not here.
type Identity struct {
	ID           int64
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
