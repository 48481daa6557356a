package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/havenlink/havenlink/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	Create(ctx context.Context, email, passwordHash string) (*Identity, error)
	CreateSession(ctx context.Context, id string, identityID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const identityColumns = `id, email, password_hash, is_active, created_at, updated_at`

// FindByEmail fetches an identity by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE email = $1`, email)
	var id Identity
	err := row.Scan(&id.ID, &id.Email, &id.PasswordHash, &id.IsActive, &id.CreatedAt, &id.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &id, nil
}

// Create inserts a new identity. Duplicate emails map to ErrConflict.
func (r *PGRepository) Create(ctx context.Context, email, passwordHash string) (*Identity, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO identities (email, password_hash, is_active)
VALUES ($1, $2, TRUE)
RETURNING `+identityColumns, email, passwordHash)
	var id Identity
	err := row.Scan(&id.ID, &id.Email, &id.PasswordHash, &id.IsActive, &id.CreatedAt, &id.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrConflict
		}
		return nil, err
	}
	return &id, nil
}

// CreateSession persists a login session row for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, identityID int64, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO sessions (id, identity_id, created_at, expires_at, ip, ua)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))`,
		id, identityID, time.Now().UTC(), expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session row.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
