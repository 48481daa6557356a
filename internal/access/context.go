// Package access builds and exposes the per-request AccessContext, the single
// authorization input every other component consults. Nothing downstream may
// re-derive permissions from raw roles.
package access

import (
	"sort"

	"github.com/havenlink/havenlink/internal/shared"
)

// Context is the immutable, per-request resolved permission bundle. It is
// rebuilt from the backing store on every request and never cached across
// requests.
type Context struct {
	identityID    int64
	profileID     int64
	approved      bool
	elevatedAdmin bool
	actingOrgID   int64
	staffRole     bool
	perms         map[string]struct{}
}

// ContextParams carries the resolved inputs for NewContext. The Builder is
// the canonical producer; tests construct params directly.
type ContextParams struct {
	IdentityID    int64
	ProfileID     int64
	Approved      bool
	ElevatedAdmin bool
	ActingOrgID   int64
	StaffRole     bool
	Permissions   []string
}

// NewContext freezes params into an immutable Context.
func NewContext(p ContextParams) *Context {
	perms := make(map[string]struct{}, len(p.Permissions))
	for _, name := range p.Permissions {
		perms[name] = struct{}{}
	}
	return &Context{
		identityID:    p.IdentityID,
		profileID:     p.ProfileID,
		approved:      p.Approved,
		elevatedAdmin: p.ElevatedAdmin && p.Approved,
		actingOrgID:   p.ActingOrgID,
		staffRole:     p.StaffRole,
		perms:         perms,
	}
}

// IdentityID returns the authenticated identity id.
func (c *Context) IdentityID() int64 { return c.identityID }

// ProfileID returns the profile id, or 0 when the identity has no profile.
func (c *Context) ProfileID() int64 { return c.profileID }

// Approved reports whether the caller's profile is approved.
func (c *Context) Approved() bool { return c.approved }

// ElevatedAdmin reports whether a global role carries the reserved platform
// admin permission. Always false for unapproved profiles.
func (c *Context) ElevatedAdmin() bool { return c.elevatedAdmin }

// ActingOrgID returns the explicitly selected acting organization, or 0 when
// no organization scope applies to this request.
func (c *Context) ActingOrgID() int64 { return c.actingOrgID }

// StaffRole reports whether the caller holds a staff-kind (not volunteer-kind)
// role in the acting organization.
func (c *Context) StaffRole() bool { return c.staffRole }

// Has reports whether the effective permission set includes perm. Unapproved
// profiles hold only the fixed self-service allowance; elevated admins hold
// everything.
func (c *Context) Has(perm string) bool {
	if !c.approved {
		return perm == shared.PermSelfView
	}
	if c.elevatedAdmin {
		return true
	}
	_, ok := c.perms[perm]
	return ok
}

// RequireOrg fails unless an acting organization has been selected.
func (c *Context) RequireOrg() error {
	if c.actingOrgID == 0 {
		return shared.ErrOrganizationNotSelected
	}
	return nil
}

// Effective returns the sorted effective permission names, mainly for
// presentation.
func (c *Context) Effective() []string {
	if !c.approved {
		return []string{shared.PermSelfView}
	}
	if c.elevatedAdmin {
		return shared.CoreScopes()
	}
	out := make([]string, 0, len(c.perms))
	for p := range c.perms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
