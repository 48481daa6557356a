package profiles

import "time"

// AffiliationType classifies how a person relates to the platform.
type AffiliationType string

const (
	AffiliationClient            AffiliationType = "client"
	AffiliationCommunityMember   AffiliationType = "community_member"
	AffiliationAgencyPartner     AffiliationType = "agency_partner"
	AffiliationGovernmentPartner AffiliationType = "government_partner"
	AffiliationStaffInternal     AffiliationType = "staff_internal"
)

// ValidAffiliationType reports whether the value is known. Unknown values are
// rejected at the boundary rather than silently defaulted.
func ValidAffiliationType(v string) bool {
	switch AffiliationType(v) {
	case AffiliationClient, AffiliationCommunityMember, AffiliationAgencyPartner,
		AffiliationGovernmentPartner, AffiliationStaffInternal:
		return true
	}
	return false
}

// AffiliationStatus is the lifecycle state of a profile's platform
// relationship.
type AffiliationStatus string

const (
	StatusPending  AffiliationStatus = "pending"
	StatusApproved AffiliationStatus = "approved"
	StatusRevoked  AffiliationStatus = "revoked"
)

// ValidAffiliationStatus reports whether the value is known.
func ValidAffiliationStatus(v string) bool {
	switch AffiliationStatus(v) {
	case StatusPending, StatusApproved, StatusRevoked:
		return true
	}
	return false
}

// GovernmentRoleType is the optional subtype for government partners.
type GovernmentRoleType string

const (
	GovRoleCaseworker GovernmentRoleType = "caseworker"
	GovRoleProbation  GovernmentRoleType = "probation"
	GovRoleHealth     GovernmentRoleType = "health_dept"
	GovRoleHousing    GovernmentRoleType = "housing_authority"
)

// ValidGovernmentRoleType reports whether the value is known; empty is valid
// (the subtype is optional).
func ValidGovernmentRoleType(v string) bool {
	if v == "" {
		return true
	}
	switch GovernmentRoleType(v) {
	case GovRoleCaseworker, GovRoleProbation, GovRoleHealth, GovRoleHousing:
		return true
	}
	return false
}

// Profile is the portal-facing person record. Created on first login; never
// hard-deleted — revocation is a status transition.
type Profile struct {
	ID              int64
	IdentityID      int64
	DisplayName     string
	Affiliation     AffiliationType
	Status          AffiliationStatus
	HomeOrgID       int64
	GovernmentRole  GovernmentRoleType
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StatusChangedAt time.Time
}

// canTransition encodes the affiliation state machine. There is no way back
// from revoked except a fresh registration.
func canTransition(from, to AffiliationStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRevoked
	case StatusApproved:
		return to == StatusRevoked
	}
	return false
}
