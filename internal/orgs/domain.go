package orgs

import "time"

// Status is the organization lifecycle state.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
)

// ValidStatus reports whether the value is a known status. Unknown values are
// rejected at the boundary, never defaulted.
func ValidStatus(v string) bool {
	switch Status(v) {
	case StatusActive, StatusInactive, StatusPending, StatusUnderReview:
		return true
	}
	return false
}

// Organization is a tenant.
type Organization struct {
	ID              int64
	Name            string
	Status          Status
	Type            string
	PartnershipType string
	// Features is the set of enabled module keys.
	Features  []string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActingEligible reports whether members may act as this organization.
func (o Organization) ActingEligible() bool {
	return o.IsActive && o.Status == StatusActive
}
