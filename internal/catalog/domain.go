// Package catalog holds the role/permission reference data: permissions,
// global and organization-kind roles, their joins, and the reusable role
// templates elevated admins stamp onto organizations.
package catalog

import "time"

// RoleKind distinguishes platform-wide roles from organization-scoped ones.
type RoleKind string

const (
	// RoleKindGlobal marks platform-wide roles such as the elevated admin.
	RoleKindGlobal RoleKind = "global"
	// RoleKindOrganization marks roles held within a single organization.
	RoleKindOrganization RoleKind = "organization"
)

// ValidRoleKind reports whether the value is a known role kind.
func ValidRoleKind(v string) bool {
	switch RoleKind(v) {
	case RoleKindGlobal, RoleKindOrganization:
		return true
	}
	return false
}

// Role is a named permission bundle.
type Role struct {
	ID          int64
	Name        string
	Kind        RoleKind
	Description string
	// System roles ship with the schema and are protected from deletion.
	System    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Permission is the smallest grantable capability. Once referenced by audit
// history a permission may be deactivated but never deleted.
type Permission struct {
	ID       int64
	Name     string
	Domain   string
	Category string
	Active   bool
}

// RoleTemplate is a reusable, named permission bundle applied to an
// organization's roles in bulk.
type RoleTemplate struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
