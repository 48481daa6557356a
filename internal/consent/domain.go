// Package consent holds client consent grants and the visibility evaluator
// that decides cross-tenant access to client records.
package consent

import "time"

// Scope declares how widely a client shares their records.
type Scope string

const (
	ScopeAllOrgs      Scope = "all_orgs"
	ScopeSelectedOrgs Scope = "selected_orgs"
	ScopeNone         Scope = "none"
)

// ValidScope reports whether the value is a known consent scope.
func ValidScope(v string) bool {
	switch Scope(v) {
	case ScopeAllOrgs, ScopeSelectedOrgs, ScopeNone:
		return true
	}
	return false
}

// Visibility is a record's declared sharing eligibility.
type Visibility string

const (
	VisibilityInternal Visibility = "internal_to_org"
	VisibilityShared   Visibility = "shared_via_consent"
)

// ValidVisibility reports whether the value is a known visibility scope.
func ValidVisibility(v string) bool {
	switch Visibility(v) {
	case VisibilityInternal, VisibilityShared:
		return true
	}
	return false
}

// Sensitivity classifies a record's disclosure risk independent of consent.
type Sensitivity string

const (
	SensitivityStandard   Sensitivity = "standard"
	SensitivitySensitive  Sensitivity = "sensitive"
	SensitivityHigh       Sensitivity = "high"
	SensitivityRestricted Sensitivity = "restricted"
)

// ValidSensitivity reports whether the value is a known sensitivity level.
func ValidSensitivity(v string) bool {
	switch Sensitivity(v) {
	case SensitivityStandard, SensitivitySensitive, SensitivityHigh, SensitivityRestricted:
		return true
	}
	return false
}

// Grant is one consent declaration. A client has at most one active grant;
// new grants supersede older ones, preserving history.
type Grant struct {
	ID             int64
	SubjectProfile int64
	Scope          Scope
	AllowedOrgIDs  []int64
	Method         string
	StaffAttested  bool
	ClientAttested bool
	Notes          string
	PolicyVersion  string
	CreatedBy      int64
	CreatedAt      time.Time
	SupersededAt   *time.Time
}

// Allows reports whether the grant shares with orgID.
func (g *Grant) Allows(orgID int64) bool {
	if g == nil {
		// No grant on file fails closed.
		return false
	}
	switch g.Scope {
	case ScopeAllOrgs:
		return true
	case ScopeSelectedOrgs:
		for _, id := range g.AllowedOrgIDs {
			if id == orgID {
				return true
			}
		}
	}
	return false
}
