package consent

import (
	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/shared"
)

// Resource is the visibility-relevant slice of a client record.
type Resource struct {
	OwningOrgID int64
	Visibility  Visibility
	Sensitivity Sensitivity
}

// CanRead decides whether the acting context may read the resource given the
// subject's current grant (nil when none is on file). Consent shares records
// with organizations, so cross-tenant evaluation requires a selected acting
// organization; same-tenant access is always allowed.
func CanRead(actor *access.Context, res Resource, grant *Grant) error {
	if actor == nil {
		return shared.ErrAuthenticationMissing
	}
	if actor.ElevatedAdmin() {
		return nil
	}
	if actor.ActingOrgID() == 0 {
		return shared.ErrOrganizationNotSelected
	}
	if actor.ActingOrgID() == res.OwningOrgID {
		return nil
	}
	if res.Visibility != VisibilityShared {
		return shared.ErrConsentDenied
	}
	if !grant.Allows(actor.ActingOrgID()) {
		return shared.ErrConsentDenied
	}
	// Sensitivity gates apply on top of the consent outcome.
	switch res.Sensitivity {
	case SensitivityRestricted:
		if !actor.Has(shared.PermRecordsHandleRestricted) {
			return shared.ErrPermissionDenied
		}
	case SensitivityHigh:
		if !actor.StaffRole() {
			return shared.ErrPermissionDenied
		}
	}
	return nil
}

// CanWrite decides whether the acting context may mutate the resource.
// Consent never implies cross-tenant write access: edits require ownership by
// the acting organization plus the record-edit permission. Elevated admins
// may edit regardless of tenant.
func CanWrite(actor *access.Context, res Resource, grant *Grant) error {
	if err := CanRead(actor, res, grant); err != nil {
		return err
	}
	if actor.ElevatedAdmin() {
		return nil
	}
	if actor.ActingOrgID() != res.OwningOrgID {
		return shared.ErrPermissionDenied
	}
	if !actor.Has(shared.PermRecordsEdit) {
		return shared.ErrPermissionDenied
	}
	return nil
}
