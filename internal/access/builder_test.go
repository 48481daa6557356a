package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/havenlink/havenlink/internal/membership"
	"github.com/havenlink/havenlink/internal/shared"
)

type stubMemberships struct {
	res membership.Resolution
	err error
}

func (s *stubMemberships) Resolve(ctx context.Context, identityID int64) (membership.Resolution, error) {
	return s.res, s.err
}

type stubPerms struct {
	byRole map[string][]string
}

func (s *stubPerms) PermissionsForRoles(ctx context.Context, roleNames []string) ([]string, error) {
	var out []string
	for _, name := range roleNames {
		out = append(out, s.byRole[name]...)
	}
	return out, nil
}

type stubProfiles struct {
	status ProfileStatus
	found  bool
}

func (s *stubProfiles) StatusForIdentity(ctx context.Context, identityID int64) (ProfileStatus, bool, error) {
	return s.status, s.found, nil
}

func newTestBuilder(res membership.Resolution, perms map[string][]string, status ProfileStatus, found bool) *Builder {
	return NewBuilder(&stubMemberships{res: res}, &stubPerms{byRole: perms}, &stubProfiles{status: status, found: found})
}

func TestBuildRequiresIdentity(t *testing.T) {
	b := newTestBuilder(membership.Resolution{}, nil, ProfileStatus{}, false)
	_, err := b.Build(context.Background(), 0, 0)
	require.ErrorIs(t, err, shared.ErrAuthenticationMissing)
}

func TestBuildNoProfileYieldsSelfServiceOnly(t *testing.T) {
	b := newTestBuilder(membership.Resolution{IdentityID: 1}, nil, ProfileStatus{}, false)
	ac, err := b.Build(context.Background(), 1, 0)
	require.NoError(t, err)
	require.False(t, ac.Approved())
	require.True(t, ac.Has(shared.PermSelfView))
	require.False(t, ac.Has(shared.PermRecordsView))
}

func TestBuildUnapprovedProfileHasNoRolePermissions(t *testing.T) {
	res := membership.Resolution{IdentityID: 1, ProfileID: 2, GlobalRoles: []string{"platform_moderator"}}
	perms := map[string][]string{"platform_moderator": {shared.PermProfilesView}}
	b := newTestBuilder(res, perms, ProfileStatus{ProfileID: 2, Approved: false}, true)

	ac, err := b.Build(context.Background(), 1, 0)
	require.NoError(t, err)
	require.False(t, ac.Approved())
	require.False(t, ac.Has(shared.PermProfilesView))
	require.Equal(t, []string{shared.PermSelfView}, ac.Effective())
}

func TestBuildGlobalRolesExpand(t *testing.T) {
	res := membership.Resolution{IdentityID: 1, ProfileID: 2, GlobalRoles: []string{"platform_moderator"}}
	perms := map[string][]string{"platform_moderator": {shared.PermProfilesView, shared.PermProfilesApprove}}
	b := newTestBuilder(res, perms, ProfileStatus{ProfileID: 2, Approved: true}, true)

	ac, err := b.Build(context.Background(), 1, 0)
	require.NoError(t, err)
	require.True(t, ac.Approved())
	require.True(t, ac.Has(shared.PermProfilesApprove))
	require.False(t, ac.ElevatedAdmin())
	require.Zero(t, ac.ActingOrgID())
}

func TestBuildElevatedAdminFlag(t *testing.T) {
	res := membership.Resolution{IdentityID: 1, ProfileID: 2, GlobalRoles: []string{"elevated_admin"}}
	perms := map[string][]string{"elevated_admin": {shared.PermPlatformAdmin}}
	b := newTestBuilder(res, perms, ProfileStatus{ProfileID: 2, Approved: true}, true)

	ac, err := b.Build(context.Background(), 1, 0)
	require.NoError(t, err)
	require.True(t, ac.ElevatedAdmin())
	// Elevated admins hold every permission without enumeration.
	require.True(t, ac.Has(shared.PermRecordsHandleRestricted))
}

func TestBuildOrgSelection(t *testing.T) {
	res := membership.Resolution{
		IdentityID: 1,
		ProfileID:  2,
		Orgs: []membership.OrgMembership{
			{OrgID: 5, OrgActive: true, Roles: []string{"staff"}},
			{OrgID: 6, OrgActive: false, Roles: []string{"org_admin"}},
		},
	}
	perms := map[string][]string{
		"staff":     {shared.PermRecordsView, shared.PermRecordsEdit},
		"org_admin": {shared.PermOrgsManage},
	}
	b := newTestBuilder(res, perms, ProfileStatus{ProfileID: 2, Approved: true}, true)

	ac, err := b.Build(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Equal(t, int64(5), ac.ActingOrgID())
	require.True(t, ac.StaffRole())
	require.True(t, ac.Has(shared.PermRecordsEdit))
	require.False(t, ac.Has(shared.PermOrgsManage))

	// Not a member of org 9.
	_, err = b.Build(context.Background(), 1, 9)
	require.ErrorIs(t, err, shared.ErrOrganizationMismatch)

	// Stale membership in a deactivated organization.
	_, err = b.Build(context.Background(), 1, 6)
	require.ErrorIs(t, err, shared.ErrOrganizationMismatch)
}

func TestBuildVolunteerIsNotStaff(t *testing.T) {
	res := membership.Resolution{
		IdentityID: 1,
		ProfileID:  2,
		Orgs:       []membership.OrgMembership{{OrgID: 5, OrgActive: true, Roles: []string{"volunteer"}}},
	}
	perms := map[string][]string{"volunteer": {shared.PermRecordsView}}
	b := newTestBuilder(res, perms, ProfileStatus{ProfileID: 2, Approved: true}, true)

	ac, err := b.Build(context.Background(), 1, 5)
	require.NoError(t, err)
	require.False(t, ac.StaffRole())
}

func TestContextRequireOrg(t *testing.T) {
	noOrg := NewContext(ContextParams{IdentityID: 1, ProfileID: 2, Approved: true})
	require.ErrorIs(t, noOrg.RequireOrg(), shared.ErrOrganizationNotSelected)

	withOrg := NewContext(ContextParams{IdentityID: 1, ProfileID: 2, Approved: true, ActingOrgID: 4})
	require.NoError(t, withOrg.RequireOrg())
}

func TestContextUnapprovedNeverElevated(t *testing.T) {
	ac := NewContext(ContextParams{IdentityID: 1, ProfileID: 2, ElevatedAdmin: true})
	require.False(t, ac.ElevatedAdmin())
	require.False(t, ac.Has(shared.PermPlatformAdmin))
}
