package consent

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines consent grant persistence.
type Repository interface {
	Active(ctx context.Context, subjectProfileID int64) (*Grant, error)
	History(ctx context.Context, subjectProfileID int64) ([]Grant, error)
	// Supersede closes the active grant (if any) and inserts the new one in a
	// single transaction.
	Supersede(ctx context.Context, g Grant) (Grant, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const grantColumns = `id, subject_profile_id, scope, allowed_org_ids, method, staff_attested,
client_attested, notes, policy_version, created_by, created_at, superseded_at`

// Active returns the subject's current grant, or nil when none is on file.
// Absence is a valid state; the evaluator fails closed on it.
func (r *PGRepository) Active(ctx context.Context, subjectProfileID int64) (*Grant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+grantColumns+`
FROM consent_grants WHERE subject_profile_id = $1 AND superseded_at IS NULL`, subjectProfileID)
	g, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

// History returns all grants for the subject, newest first.
func (r *PGRepository) History(ctx context.Context, subjectProfileID int64) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+grantColumns+`
FROM consent_grants WHERE subject_profile_id = $1 ORDER BY created_at DESC, id DESC`, subjectProfileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Supersede closes the active grant and inserts the new one atomically, so a
// subject never has two active grants even under concurrent captures.
func (r *PGRepository) Supersede(ctx context.Context, g Grant) (Grant, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return Grant{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `UPDATE consent_grants SET superseded_at = NOW()
WHERE subject_profile_id = $1 AND superseded_at IS NULL`, g.SubjectProfile); err != nil {
		return Grant{}, err
	}
	row := tx.QueryRow(ctx, `INSERT INTO consent_grants
(subject_profile_id, scope, allowed_org_ids, method, staff_attested, client_attested, notes, policy_version, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+grantColumns,
		g.SubjectProfile, string(g.Scope), g.AllowedOrgIDs, g.Method, g.StaffAttested,
		g.ClientAttested, g.Notes, g.PolicyVersion, g.CreatedBy)
	created, err := scanGrant(row)
	if err != nil {
		return Grant{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Grant{}, err
	}
	return created, nil
}

func scanGrant(row pgx.Row) (Grant, error) {
	var g Grant
	var scope string
	if err := row.Scan(&g.ID, &g.SubjectProfile, &scope, &g.AllowedOrgIDs, &g.Method,
		&g.StaffAttested, &g.ClientAttested, &g.Notes, &g.PolicyVersion,
		&g.CreatedBy, &g.CreatedAt, &g.SupersededAt); err != nil {
		return Grant{}, err
	}
	g.Scope = Scope(scope)
	return g, nil
}
