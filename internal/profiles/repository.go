package profiles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/havenlink/havenlink/internal/shared"
)

// Repository defines profile persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (Profile, error)
	GetByIdentity(ctx context.Context, identityID int64) (Profile, error)
	ListByStatus(ctx context.Context, status AffiliationStatus) ([]Profile, error)
	Create(ctx context.Context, p Profile) (Profile, error)
	UpdateStatus(ctx context.Context, id int64, status AffiliationStatus) (Profile, error)
	UpdateDisplayName(ctx context.Context, id int64, name string) (Profile, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const profileColumns = `id, identity_id, display_name, affiliation_type, affiliation_status,
COALESCE(home_org_id, 0), COALESCE(government_role, ''), created_at, updated_at, status_changed_at`

// Get fetches one profile.
func (r *PGRepository) Get(ctx context.Context, id int64) (Profile, error) {
	return r.one(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
}

// GetByIdentity fetches the profile owned by an identity.
func (r *PGRepository) GetByIdentity(ctx context.Context, identityID int64) (Profile, error) {
	return r.one(ctx, `SELECT `+profileColumns+` FROM profiles WHERE identity_id = $1`, identityID)
}

// ListByStatus returns profiles in the given affiliation status, oldest first
// so the moderation queue surfaces the longest-waiting registrations.
func (r *PGRepository) ListByStatus(ctx context.Context, status AffiliationStatus) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE affiliation_status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a new pending profile.
func (r *PGRepository) Create(ctx context.Context, p Profile) (Profile, error) {
	var homeOrg any
	if p.HomeOrgID != 0 {
		homeOrg = p.HomeOrgID
	}
	var govRole any
	if p.GovernmentRole != "" {
		govRole = string(p.GovernmentRole)
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO profiles (identity_id, display_name, affiliation_type, affiliation_status, home_org_id, government_role)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+profileColumns, p.IdentityID, p.DisplayName, string(p.Affiliation), string(p.Status), homeOrg, govRole)
	created, err := scanProfile(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Profile{}, shared.ErrConflict
		}
		return Profile{}, err
	}
	return created, nil
}

// UpdateStatus moves the profile to a new affiliation status.
func (r *PGRepository) UpdateStatus(ctx context.Context, id int64, status AffiliationStatus) (Profile, error) {
	row := r.pool.QueryRow(ctx, `UPDATE profiles
SET affiliation_status = $2, status_changed_at = NOW(), updated_at = NOW()
WHERE id = $1
RETURNING `+profileColumns, id, string(status))
	return r.mapOne(row)
}

// UpdateDisplayName rewrites the display name.
func (r *PGRepository) UpdateDisplayName(ctx context.Context, id int64, name string) (Profile, error) {
	row := r.pool.QueryRow(ctx, `UPDATE profiles SET display_name = $2, updated_at = NOW()
WHERE id = $1
RETURNING `+profileColumns, id, name)
	return r.mapOne(row)
}

func (r *PGRepository) one(ctx context.Context, query string, args ...any) (Profile, error) {
	return r.mapOne(r.pool.QueryRow(ctx, query, args...))
}

func (r *PGRepository) mapOne(row pgx.Row) (Profile, error) {
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, shared.ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	var affiliation, status, govRole string
	if err := row.Scan(&p.ID, &p.IdentityID, &p.DisplayName, &affiliation, &status,
		&p.HomeOrgID, &govRole, &p.CreatedAt, &p.UpdatedAt, &p.StatusChangedAt); err != nil {
		return Profile{}, err
	}
	p.Affiliation = AffiliationType(affiliation)
	p.Status = AffiliationStatus(status)
	p.GovernmentRole = GovernmentRoleType(govRole)
	return p, nil
}
