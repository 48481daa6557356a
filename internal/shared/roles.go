package shared

// Well-known role names seeded with the schema. Organizations may define more,
// but the engine keys staff/volunteer distinctions off the role kind below.
const (
	RoleElevatedAdmin     = "elevated_admin"
	RolePlatformModerator = "platform_moderator"
	RoleOrgAdmin          = "org_admin"
	RoleOrgRep            = "org_rep"
	RoleStaff             = "staff"
	RoleVolunteer         = "volunteer"
)

var staffKindRoles = map[string]struct{}{
	RoleOrgAdmin: {},
	RoleOrgRep:   {},
	RoleStaff:    {},
}

// IsStaffKind reports whether any of the given organization-scoped role names
// is a staff-kind role. Volunteer-kind roles do not clear high-sensitivity
// cross-tenant disclosure.
func IsStaffKind(roleNames []string) bool {
	for _, name := range roleNames {
		if _, ok := staffKindRoles[name]; ok {
			return true
		}
	}
	return false
}
