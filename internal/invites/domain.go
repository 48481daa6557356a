package invites

import "time"

// DefaultTTL bounds how long an invite token stays redeemable.
const DefaultTTL = 7 * 24 * time.Hour

// Invite is a single-use, org-scoped onboarding token.
type Invite struct {
	ID         int64
	Token      string
	OrgID      int64
	RoleID     int64
	Email      string
	IssuedBy   int64
	ExpiresAt  time.Time
	AcceptedBy int64
	AcceptedAt *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the invite can no longer be redeemed.
func (i Invite) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Accepted reports whether the invite has already been redeemed.
func (i Invite) Accepted() bool {
	return i.AcceptedBy != 0
}
