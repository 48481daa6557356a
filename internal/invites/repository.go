package invites

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/havenlink/havenlink/internal/platform/db"
	"github.com/havenlink/havenlink/internal/shared"
)

// Repository defines invite persistence.
type Repository interface {
	Create(ctx context.Context, inv Invite) (Invite, error)
	GetByToken(ctx context.Context, token string) (Invite, error)
	// Redeem marks the invite accepted and creates the membership in one
	// transaction. A token already redeemed or expired yields ErrConflict.
	Redeem(ctx context.Context, token string, profileID int64, now time.Time) (Invite, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const inviteColumns = `id, token, org_id, role_id, email, issued_by,
expires_at, COALESCE(accepted_by, 0), accepted_at, created_at`

func scanInvite(row pgx.Row) (Invite, error) {
	var inv Invite
	err := row.Scan(&inv.ID, &inv.Token, &inv.OrgID, &inv.RoleID, &inv.Email,
		&inv.IssuedBy, &inv.ExpiresAt, &inv.AcceptedBy, &inv.AcceptedAt, &inv.CreatedAt)
	return inv, err
}

func (r *PGRepository) Create(ctx context.Context, inv Invite) (Invite, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO invites
(token, org_id, role_id, email, issued_by, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+inviteColumns, inv.Token, inv.OrgID, inv.RoleID, inv.Email, inv.IssuedBy, inv.ExpiresAt)
	created, err := scanInvite(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Invite{}, shared.ErrConflict
		}
		return Invite{}, err
	}
	return created, nil
}

func (r *PGRepository) GetByToken(ctx context.Context, token string) (Invite, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+inviteColumns+` FROM invites WHERE token = $1`, token)
	inv, err := scanInvite(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invite{}, shared.ErrNotFound
		}
		return Invite{}, err
	}
	return inv, nil
}

func (r *PGRepository) Redeem(ctx context.Context, token string, profileID int64, now time.Time) (Invite, error) {
	var inv Invite
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `UPDATE invites
SET accepted_by = $2, accepted_at = $3
WHERE token = $1 AND accepted_by IS NULL AND expires_at > $3
RETURNING `+inviteColumns, token, profileID, now)
		redeemed, err := scanInvite(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrConflict
			}
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO memberships (profile_id, org_id, role_id)
VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, profileID, redeemed.OrgID, redeemed.RoleID)
		if err != nil {
			return err
		}
		inv = redeemed
		return nil
	})
	if err != nil {
		return Invite{}, err
	}
	return inv, nil
}
