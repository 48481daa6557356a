package consent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/shared"
)

func approvedActor(orgID int64, staff bool, perms ...string) *access.Context {
	return access.NewContext(access.ContextParams{
		IdentityID:  10,
		ProfileID:   20,
		Approved:    true,
		ActingOrgID: orgID,
		StaffRole:   staff,
		Permissions: perms,
	})
}

func TestCanReadOwningOrg(t *testing.T) {
	actor := approvedActor(5, true, shared.PermRecordsView)
	res := Resource{OwningOrgID: 5, Visibility: VisibilityInternal, Sensitivity: SensitivityStandard}

	require.NoError(t, CanRead(actor, res, nil))
}

func TestCanReadInternalRecordNeverCrossesTenants(t *testing.T) {
	actor := approvedActor(6, true, shared.PermRecordsView)
	res := Resource{OwningOrgID: 5, Visibility: VisibilityInternal, Sensitivity: SensitivityStandard}
	grant := &Grant{Scope: ScopeAllOrgs}

	// Even a full consent grant cannot open an internal record.
	require.ErrorIs(t, CanRead(actor, res, grant), shared.ErrConsentDenied)
}

func TestCanReadSharedRequiresGrant(t *testing.T) {
	actor := approvedActor(6, true, shared.PermRecordsView)
	res := Resource{OwningOrgID: 5, Visibility: VisibilityShared, Sensitivity: SensitivityStandard}

	require.ErrorIs(t, CanRead(actor, res, nil), shared.ErrConsentDenied)

	require.NoError(t, CanRead(actor, res, &Grant{Scope: ScopeAllOrgs}))
	require.NoError(t, CanRead(actor, res, &Grant{Scope: ScopeSelectedOrgs, AllowedOrgIDs: []int64{6}}))
	require.ErrorIs(t,
		CanRead(actor, res, &Grant{Scope: ScopeSelectedOrgs, AllowedOrgIDs: []int64{7}}),
		shared.ErrConsentDenied)
	require.ErrorIs(t,
		CanRead(actor, res, &Grant{Scope: ScopeNone}),
		shared.ErrConsentDenied)
}

func TestCanReadCrossTenantRequiresActingOrg(t *testing.T) {
	res := Resource{OwningOrgID: 5, Visibility: VisibilityShared, Sensitivity: SensitivityStandard}
	grant := &Grant{Scope: ScopeAllOrgs}

	// Consent shares with organizations. An actor acting for none is not a
	// grantee, even under an all-orgs grant.
	orgless := approvedActor(0, false, shared.PermRecordsView)
	require.ErrorIs(t, CanRead(orgless, res, grant), shared.ErrOrganizationNotSelected)
	require.ErrorIs(t, CanWrite(orgless, res, grant), shared.ErrOrganizationNotSelected)
}

func TestCanReadRestrictedNeedsHandlerPermission(t *testing.T) {
	res := Resource{OwningOrgID: 5, Visibility: VisibilityShared, Sensitivity: SensitivityRestricted}
	grant := &Grant{Scope: ScopeAllOrgs}

	withPerm := approvedActor(6, true, shared.PermRecordsView, shared.PermRecordsHandleRestricted)
	require.NoError(t, CanRead(withPerm, res, grant))

	withoutPerm := approvedActor(6, true, shared.PermRecordsView)
	require.ErrorIs(t, CanRead(withoutPerm, res, grant), shared.ErrPermissionDenied)
}

func TestCanReadHighSensitivityNeedsStaffRole(t *testing.T) {
	res := Resource{OwningOrgID: 5, Visibility: VisibilityShared, Sensitivity: SensitivityHigh}
	grant := &Grant{Scope: ScopeAllOrgs}

	staff := approvedActor(6, true, shared.PermRecordsView)
	require.NoError(t, CanRead(staff, res, grant))

	volunteer := approvedActor(6, false, shared.PermRecordsView)
	require.ErrorIs(t, CanRead(volunteer, res, grant), shared.ErrPermissionDenied)
}

func TestCanReadElevatedAdminBypassesConsent(t *testing.T) {
	admin := access.NewContext(access.ContextParams{
		IdentityID:    1,
		ProfileID:     2,
		Approved:      true,
		ElevatedAdmin: true,
	})
	res := Resource{OwningOrgID: 5, Visibility: VisibilityInternal, Sensitivity: SensitivityRestricted}

	require.NoError(t, CanRead(admin, res, nil))
}

func TestCanWriteConsentNeverGrantsWrite(t *testing.T) {
	res := Resource{OwningOrgID: 5, Visibility: VisibilityShared, Sensitivity: SensitivityStandard}
	grant := &Grant{Scope: ScopeAllOrgs}

	outsider := approvedActor(6, true, shared.PermRecordsView, shared.PermRecordsEdit)
	require.ErrorIs(t, CanWrite(outsider, res, grant), shared.ErrPermissionDenied)

	owner := approvedActor(5, true, shared.PermRecordsView, shared.PermRecordsEdit)
	require.NoError(t, CanWrite(owner, res, grant))
}

func TestCanWriteNeedsEditPermission(t *testing.T) {
	res := Resource{OwningOrgID: 5, Visibility: VisibilityInternal, Sensitivity: SensitivityStandard}

	reader := approvedActor(5, true, shared.PermRecordsView)
	require.ErrorIs(t, CanWrite(reader, res, nil), shared.ErrPermissionDenied)
}

func TestGrantAllowsFailsClosed(t *testing.T) {
	var grant *Grant
	require.False(t, grant.Allows(5))

	require.False(t, (&Grant{Scope: ScopeNone}).Allows(5))
	require.True(t, (&Grant{Scope: ScopeAllOrgs}).Allows(5))
	require.False(t, (&Grant{Scope: ScopeSelectedOrgs}).Allows(5))
	require.True(t, (&Grant{Scope: ScopeSelectedOrgs, AllowedOrgIDs: []int64{4, 5}}).Allows(5))
}
