package membership

import (
	"context"
	"errors"

	"github.com/havenlink/havenlink/internal/shared"
)

// Resolver loads the role picture for an identity. It is a pure read and
// never mutates state.
type Resolver struct {
	repo Repository
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the global and organization-scoped roles held by the
// identity. An identity with no profile yields an empty Resolution; only a
// missing identity row is an error.
func (r *Resolver) Resolve(ctx context.Context, identityID int64) (Resolution, error) {
	exists, err := r.repo.IdentityExists(ctx, identityID)
	if err != nil {
		return Resolution{}, shared.Infra("membership: identity lookup", err)
	}
	if !exists {
		return Resolution{}, shared.ErrNotFound
	}

	res := Resolution{IdentityID: identityID}

	profileID, err := r.repo.ProfileIDForIdentity(ctx, identityID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// First login races profile creation; zero roles is the answer.
			return res, nil
		}
		return Resolution{}, shared.Infra("membership: profile lookup", err)
	}
	res.ProfileID = profileID

	if res.GlobalRoles, err = r.repo.GlobalRoles(ctx, profileID); err != nil {
		return Resolution{}, shared.Infra("membership: global roles", err)
	}
	if res.Orgs, err = r.repo.OrgMemberships(ctx, profileID); err != nil {
		return Resolution{}, shared.Infra("membership: org memberships", err)
	}
	return res, nil
}
