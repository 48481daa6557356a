package orgs

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/havenlink/havenlink/internal/shared"
)

// Repository defines organization persistence.
type Repository interface {
	List(ctx context.Context) ([]Organization, error)
	Get(ctx context.Context, id int64) (Organization, error)
	Create(ctx context.Context, org Organization) (Organization, error)
	Update(ctx context.Context, org Organization) (Organization, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const orgColumns = `id, name, status, org_type, partnership_type, features, is_active, created_at, updated_at`

// List returns all organizations ordered by name.
func (r *PGRepository) List(ctx context.Context) ([]Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orgColumns+` FROM organizations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Organization
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

// Get fetches one organization.
func (r *PGRepository) Get(ctx context.Context, id int64) (Organization, error) {
	org, err := scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, shared.ErrNotFound
		}
		return Organization{}, err
	}
	return org, nil
}

// Create inserts a new organization.
func (r *PGRepository) Create(ctx context.Context, org Organization) (Organization, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO organizations (name, status, org_type, partnership_type, features, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+orgColumns, org.Name, string(org.Status), org.Type, org.PartnershipType, org.Features, org.IsActive)
	created, err := scanOrg(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Organization{}, shared.ErrConflict
		}
		return Organization{}, err
	}
	return created, nil
}

// Update rewrites the mutable organization fields.
func (r *PGRepository) Update(ctx context.Context, org Organization) (Organization, error) {
	row := r.pool.QueryRow(ctx, `UPDATE organizations
SET name = $2, status = $3, org_type = $4, partnership_type = $5, features = $6, is_active = $7, updated_at = NOW()
WHERE id = $1
RETURNING `+orgColumns, org.ID, org.Name, string(org.Status), org.Type, org.PartnershipType, org.Features, org.IsActive)
	updated, err := scanOrg(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, shared.ErrNotFound
		}
		return Organization{}, err
	}
	return updated, nil
}

func scanOrg(row pgx.Row) (Organization, error) {
	var org Organization
	var status string
	if err := row.Scan(&org.ID, &org.Name, &status, &org.Type, &org.PartnershipType, &org.Features, &org.IsActive, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return Organization{}, err
	}
	org.Status = Status(status)
	return org, nil
}
