package membership

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/havenlink/havenlink/internal/shared"
)

type stubRepo struct {
	identityExists bool
	profileID      int64
	globalRoles    []string
	orgs           []OrgMembership
}

func (s *stubRepo) IdentityExists(ctx context.Context, identityID int64) (bool, error) {
	return s.identityExists, nil
}

func (s *stubRepo) ProfileIDForIdentity(ctx context.Context, identityID int64) (int64, error) {
	if s.profileID == 0 {
		return 0, shared.ErrNotFound
	}
	return s.profileID, nil
}

func (s *stubRepo) GlobalRoles(ctx context.Context, profileID int64) ([]string, error) {
	return s.globalRoles, nil
}

func (s *stubRepo) OrgMemberships(ctx context.Context, profileID int64) ([]OrgMembership, error) {
	return s.orgs, nil
}

func TestResolveUnknownIdentity(t *testing.T) {
	r := NewResolver(&stubRepo{identityExists: false})
	_, err := r.Resolve(context.Background(), 42)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResolveIdentityWithoutProfile(t *testing.T) {
	r := NewResolver(&stubRepo{identityExists: true})
	res, err := r.Resolve(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(42), res.IdentityID)
	require.Zero(t, res.ProfileID)
	require.Empty(t, res.GlobalRoles)
	require.Empty(t, res.Orgs)
}

func TestResolveFullPicture(t *testing.T) {
	repo := &stubRepo{
		identityExists: true,
		profileID:      7,
		globalRoles:    []string{"platform_moderator"},
		orgs: []OrgMembership{
			{OrgID: 3, OrgActive: true, Roles: []string{"staff", "org_admin"}},
			{OrgID: 9, OrgActive: false, Roles: []string{"volunteer"}},
		},
	}
	r := NewResolver(repo)
	res, err := r.Resolve(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(7), res.ProfileID)
	require.Equal(t, []string{"platform_moderator"}, res.GlobalRoles)

	org, ok := res.Org(3)
	require.True(t, ok)
	require.True(t, org.OrgActive)
	require.ElementsMatch(t, []string{"staff", "org_admin"}, org.Roles)

	_, ok = res.Org(5)
	require.False(t, ok)
}
