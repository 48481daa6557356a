package membership

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/havenlink/havenlink/internal/shared"
)

// Repository defines the reads the resolver performs.
type Repository interface {
	IdentityExists(ctx context.Context, identityID int64) (bool, error)
	ProfileIDForIdentity(ctx context.Context, identityID int64) (int64, error)
	GlobalRoles(ctx context.Context, profileID int64) ([]string, error)
	OrgMemberships(ctx context.Context, profileID int64) ([]OrgMembership, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// IdentityExists reports whether the identity row exists.
func (r *PGRepository) IdentityExists(ctx context.Context, identityID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT true FROM identities WHERE id = $1`, identityID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return exists, nil
}

// ProfileIDForIdentity returns the profile id owned by the identity, or
// shared.ErrNotFound when the identity has no profile yet.
func (r *PGRepository) ProfileIDForIdentity(ctx context.Context, identityID int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM profiles WHERE identity_id = $1`, identityID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

// GlobalRoles returns the names of global roles held by the profile.
func (r *PGRepository) GlobalRoles(ctx context.Context, profileID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.name
FROM profile_global_roles pgr
JOIN roles r ON r.id = pgr.role_id
WHERE pgr.profile_id = $1 AND r.kind = 'global'
ORDER BY r.name`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// OrgMemberships returns, per organization, the org-scoped role names the
// profile holds there, along with the org's active flag.
func (r *PGRepository) OrgMemberships(ctx context.Context, profileID int64) ([]OrgMembership, error) {
	rows, err := r.pool.Query(ctx, `SELECT m.org_id, o.is_active AND o.status = 'active', r.name
FROM memberships m
JOIN organizations o ON o.id = m.org_id
JOIN roles r ON r.id = m.role_id
WHERE m.profile_id = $1 AND r.kind = 'organization'
ORDER BY m.org_id, r.name`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrgMembership
	for rows.Next() {
		var orgID int64
		var active bool
		var role string
		if err := rows.Scan(&orgID, &active, &role); err != nil {
			return nil, err
		}
		if n := len(out); n > 0 && out[n-1].OrgID == orgID {
			out[n-1].Roles = append(out[n-1].Roles, role)
			continue
		}
		out = append(out, OrgMembership{OrgID: orgID, OrgActive: active, Roles: []string{role}})
	}
	return out, rows.Err()
}
