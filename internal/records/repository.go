package records

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/havenlink/havenlink/internal/consent"
	"github.com/havenlink/havenlink/internal/shared"
)

// Repository defines client record persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (Record, error)
	ListBySubject(ctx context.Context, subjectProfileID int64) ([]Record, error)
	Create(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, rec Record) (Record, error)
	// MarkSuperseded points the old record at its replacement.
	MarkSuperseded(ctx context.Context, id, supersededBy int64) error
	// FindUnclaimed returns active records with the fingerprint and no
	// linked subject.
	FindUnclaimed(ctx context.Context, fingerprint string) ([]Record, error)
	Claim(ctx context.Context, recordID, subjectProfileID int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const recordColumns = `id, COALESCE(subject_profile_id, 0), owning_org_id, category, visibility_scope,
sensitivity_level, source, verification_status, status, summary, details,
COALESCE(contact_fingerprint, ''), COALESCE(superseded_by, 0), created_by, updated_by, created_at, updated_at`

// Get fetches one record.
func (r *PGRepository) Get(ctx context.Context, id int64) (Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM client_records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, shared.ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// ListBySubject returns all records tied to the subject, newest first. The
// caller filters them through the visibility evaluator before disclosure.
func (r *PGRepository) ListBySubject(ctx context.Context, subjectProfileID int64) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+`
FROM client_records WHERE subject_profile_id = $1 ORDER BY created_at DESC, id DESC`, subjectProfileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// Create inserts a record after re-checking the owning org is active.
func (r *PGRepository) Create(ctx context.Context, rec Record) (Record, error) {
	var subject any
	if rec.SubjectProfile != 0 {
		subject = rec.SubjectProfile
	}
	var fingerprint any
	if rec.ContactFingerprint != "" {
		fingerprint = rec.ContactFingerprint
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO client_records
(subject_profile_id, owning_org_id, category, visibility_scope, sensitivity_level, source,
 verification_status, status, summary, details, contact_fingerprint, created_by, updated_by)
SELECT $1, o.id, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12
FROM organizations o WHERE o.id = $2 AND o.is_active AND o.status = 'active'
RETURNING `+recordColumns,
		subject, rec.OwningOrgID, string(rec.Category), string(rec.Visibility), string(rec.Sensitivity),
		string(rec.Source), rec.VerificationStatus, string(rec.Status), rec.Summary, rec.Details,
		fingerprint, rec.CreatedBy)
	created, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, shared.NewValidationError("owning_org_id", "owning organization must be active")
		}
		return Record{}, err
	}
	return created, nil
}

// Update rewrites the mutable fields.
func (r *PGRepository) Update(ctx context.Context, rec Record) (Record, error) {
	row := r.pool.QueryRow(ctx, `UPDATE client_records
SET sensitivity_level = $2, visibility_scope = $3, verification_status = $4, status = $5,
    summary = $6, details = $7, updated_by = $8, updated_at = NOW()
WHERE id = $1
RETURNING `+recordColumns,
		rec.ID, string(rec.Sensitivity), string(rec.Visibility), rec.VerificationStatus,
		string(rec.Status), rec.Summary, rec.Details, rec.UpdatedBy)
	updated, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, shared.ErrNotFound
		}
		return Record{}, err
	}
	return updated, nil
}

// MarkSuperseded links the replaced record to its successor.
func (r *PGRepository) MarkSuperseded(ctx context.Context, id, supersededBy int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE client_records
SET status = 'superseded', superseded_by = $2, updated_at = NOW() WHERE id = $1`, id, supersededBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindUnclaimed returns active, subjectless records with the fingerprint.
func (r *PGRepository) FindUnclaimed(ctx context.Context, fingerprint string) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+`
FROM client_records
WHERE contact_fingerprint = $1 AND subject_profile_id IS NULL AND status = 'active'
ORDER BY id`, fingerprint)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// Claim links an unclaimed record to the subject.
func (r *PGRepository) Claim(ctx context.Context, recordID, subjectProfileID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE client_records
SET subject_profile_id = $2, updated_at = NOW()
WHERE id = $1 AND subject_profile_id IS NULL`, recordID, subjectProfileID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConflict
	}
	return nil
}

func collect(rows pgx.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var category, visibility, sensitivity, source, status string
	if err := row.Scan(&rec.ID, &rec.SubjectProfile, &rec.OwningOrgID, &category, &visibility,
		&sensitivity, &source, &rec.VerificationStatus, &status, &rec.Summary, &rec.Details,
		&rec.ContactFingerprint, &rec.SupersededBy, &rec.CreatedBy, &rec.UpdatedBy,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.Category = Category(category)
	rec.Visibility = consent.Visibility(visibility)
	rec.Sensitivity = consent.Sensitivity(sensitivity)
	rec.Source = Source(source)
	rec.Status = Status(status)
	return rec, nil
}
