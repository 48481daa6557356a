package membership

// OrgMembership lists the organization-scoped roles a profile holds in one
// organization.
type OrgMembership struct {
	OrgID     int64
	OrgActive bool
	Roles     []string
}

// Resolution is the full role picture for one identity: global roles plus
// per-organization role sets. An identity without a profile resolves to an
// empty Resolution, which is a valid, non-error result.
type Resolution struct {
	IdentityID  int64
	ProfileID   int64
	GlobalRoles []string
	Orgs        []OrgMembership
}

// Org returns the membership entry for orgID, if any.
func (r Resolution) Org(orgID int64) (OrgMembership, bool) {
	for _, m := range r.Orgs {
		if m.OrgID == orgID {
			return m, true
		}
	}
	return OrgMembership{}, false
}
