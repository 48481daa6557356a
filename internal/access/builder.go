package access

import (
	"context"
	"errors"

	"github.com/havenlink/havenlink/internal/membership"
	"github.com/havenlink/havenlink/internal/shared"
)

// MembershipSource resolves roles for an identity.
type MembershipSource interface {
	Resolve(ctx context.Context, identityID int64) (membership.Resolution, error)
}

// PermissionSource expands role names into permission names. Implementations
// may cache with a TTL; role-to-permission bindings change rarely.
type PermissionSource interface {
	PermissionsForRoles(ctx context.Context, roleNames []string) ([]string, error)
}

// ProfileStatus is the slice of Profile state the builder needs.
type ProfileStatus struct {
	ProfileID int64
	Approved  bool
}

// ProfileSource looks up approval state for an identity. A missing profile is
// reported as found=false, not an error.
type ProfileSource interface {
	StatusForIdentity(ctx context.Context, identityID int64) (ProfileStatus, bool, error)
}

// Builder assembles AccessContexts. One Builder is shared process-wide; the
// contexts it produces are per-request.
type Builder struct {
	memberships MembershipSource
	perms       PermissionSource
	profiles    ProfileSource
}

// NewBuilder constructs a Builder.
func NewBuilder(memberships MembershipSource, perms PermissionSource, profiles ProfileSource) *Builder {
	return &Builder{memberships: memberships, perms: perms, profiles: profiles}
}

// Build resolves the caller's effective permissions. requestedOrgID is the
// caller's explicit acting-organization selection (0 for none); it must match
// an active-organization membership or the build fails with
// ErrOrganizationMismatch. Callers that need org scope additionally invoke
// Context.RequireOrg.
func (b *Builder) Build(ctx context.Context, identityID, requestedOrgID int64) (*Context, error) {
	if identityID == 0 {
		return nil, shared.ErrAuthenticationMissing
	}

	res, err := b.memberships.Resolve(ctx, identityID)
	if err != nil {
		return nil, err
	}

	ac := &Context{identityID: identityID, profileID: res.ProfileID, perms: map[string]struct{}{}}

	status, found, err := b.profiles.StatusForIdentity(ctx, identityID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, shared.Infra("access: profile status", err)
	}
	if !found {
		// No profile yet: self-service only.
		return ac, nil
	}
	ac.profileID = status.ProfileID
	if !status.Approved {
		return ac, nil
	}
	ac.approved = true

	globalPerms, err := b.perms.PermissionsForRoles(ctx, res.GlobalRoles)
	if err != nil {
		return nil, shared.Infra("access: global permissions", err)
	}
	for _, p := range globalPerms {
		if p == shared.PermPlatformAdmin {
			ac.elevatedAdmin = true
		}
		ac.perms[p] = struct{}{}
	}
	ac.perms[shared.PermSelfView] = struct{}{}

	if requestedOrgID != 0 {
		org, ok := res.Org(requestedOrgID)
		if !ok {
			return nil, shared.ErrOrganizationMismatch
		}
		// A deactivated organization loses acting eligibility even when a
		// stale membership row exists.
		if !org.OrgActive {
			return nil, shared.ErrOrganizationMismatch
		}
		orgPerms, err := b.perms.PermissionsForRoles(ctx, org.Roles)
		if err != nil {
			return nil, shared.Infra("access: org permissions", err)
		}
		for _, p := range orgPerms {
			ac.perms[p] = struct{}{}
		}
		ac.actingOrgID = requestedOrgID
		ac.staffRole = shared.IsStaffKind(org.Roles)
	}

	return ac, nil
}
