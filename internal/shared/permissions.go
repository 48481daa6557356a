package shared

// Reserved platform permission. A global role carrying it marks the holder as
// an elevated admin with the full permission set.
const PermPlatformAdmin = "platform.admin"

// PermSelfView is the fixed self-service allowance granted to every
// authenticated profile, approved or not.
const PermSelfView = "self.view"

// Profile and affiliation permissions.
const (
	PermProfilesView    = "profiles.view"
	PermProfilesApprove = "profiles.approve"
	PermProfilesRevoke  = "profiles.revoke"
)

// Organization administration permissions.
const (
	PermOrgsView   = "orgs.view"
	PermOrgsManage = "orgs.manage"
)

// Role/permission catalog permissions.
const (
	PermRolesView       = "roles.view"
	PermRolesEdit       = "roles.edit"
	PermPermissionsView = "permissions.view"
	PermTemplatesApply  = "templates.apply"
)

// Client record permissions.
const (
	PermRecordsView             = "records.view"
	PermRecordsEdit             = "records.edit"
	PermRecordsHandleRestricted = "records.handle_restricted"
)

// Consent permissions.
const (
	PermConsentView   = "consent.view"
	PermConsentManage = "consent.manage"
)

// Invite permissions.
const PermInvitesIssue = "invites.issue"

// Audit permissions.
const PermAuditView = "audit.view"

// CoreScopes lists all permissions granted by elevated-admin membership.
func CoreScopes() []string {
	return []string{
		PermSelfView,
		PermProfilesView,
		PermProfilesApprove,
		PermProfilesRevoke,
		PermOrgsView,
		PermOrgsManage,
		PermRolesView,
		PermRolesEdit,
		PermPermissionsView,
		PermTemplatesApply,
		PermRecordsView,
		PermRecordsEdit,
		PermRecordsHandleRestricted,
		PermConsentView,
		PermConsentManage,
		PermInvitesIssue,
		PermAuditView,
	}
}
