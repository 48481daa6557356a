package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/havenlink/havenlink/internal/shared"
)

// Repository defines catalog persistence.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name string, kind RoleKind, description string) (Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) (int64, error)

	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	SetPermissionActive(ctx context.Context, id int64, active bool) error

	HasRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error)
	GrantRolePermission(ctx context.Context, roleID, permissionID int64) error
	RevokeRolePermission(ctx context.Context, roleID, permissionID int64) error
	RolePermissionNames(ctx context.Context) (map[string][]string, error)

	ListTemplates(ctx context.Context) ([]RoleTemplate, error)
	GetTemplate(ctx context.Context, id int64) (RoleTemplate, error)
	CreateTemplate(ctx context.Context, name, description string) (RoleTemplate, error)
	UpdateTemplate(ctx context.Context, id int64, name, description string) (RoleTemplate, error)
	DeleteTemplate(ctx context.Context, id int64) (int64, error)
	SetTemplatePermissions(ctx context.Context, templateID int64, permissionIDs []int64) error
	TemplatePermissionIDs(ctx context.Context, templateID int64) ([]int64, error)
	StampTemplate(ctx context.Context, roleID, templateID int64) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListRoles returns all roles ordered by kind then name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, kind, description, is_system, created_at, updated_at
FROM roles ORDER BY kind, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, kind, description, is_system, created_at, updated_at
FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *PGRepository) CreateRole(ctx context.Context, name string, kind RoleKind, description string) (Role, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO roles (name, kind, description, is_system)
VALUES ($1, $2, $3, false)
RETURNING id, name, kind, description, is_system, created_at, updated_at`, name, string(kind), description)
	role, err := scanRole(row)
	if err != nil {
		return Role{}, mapUnique(err)
	}
	return role, nil
}

// UpdateRole updates name and description.
func (r *PGRepository) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	row := r.pool.QueryRow(ctx, `UPDATE roles SET name = $2, description = $3, updated_at = NOW()
WHERE id = $1
RETURNING id, name, kind, description, is_system, created_at, updated_at`, id, name, description)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, mapUnique(err)
	}
	return role, nil
}

// DeleteRole removes a non-system role; returns rows affected.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1 AND NOT is_system`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListPermissions returns all permissions ordered by domain then name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, domain, category, is_active FROM permissions ORDER BY domain, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Domain, &p.Category, &p.Active); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// GetPermission fetches a permission by ID.
func (r *PGRepository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `SELECT id, name, domain, category, is_active FROM permissions WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Domain, &p.Category, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

// SetPermissionActive toggles the active flag. Permissions are never deleted.
func (r *PGRepository) SetPermissionActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE permissions SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// HasRolePermission reports whether the pair exists.
func (r *PGRepository) HasRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT true FROM role_permissions WHERE role_id = $1 AND permission_id = $2`,
		roleID, permissionID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return exists, nil
}

// GrantRolePermission attaches a permission to a role; repeat grants are
// no-ops at the store level.
func (r *PGRepository) GrantRolePermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id)
VALUES ($1, $2) ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, permissionID)
	return err
}

// RevokeRolePermission detaches a permission from a role.
func (r *PGRepository) RevokeRolePermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`,
		roleID, permissionID)
	return err
}

// RolePermissionNames loads the full role-name to active-permission-name map.
func (r *PGRepository) RolePermissionNames(ctx context.Context) (map[string][]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.name, p.name
FROM role_permissions rp
JOIN roles r ON r.id = rp.role_id
JOIN permissions p ON p.id = rp.permission_id
WHERE p.is_active
ORDER BY r.name, p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byRole := make(map[string][]string)
	for rows.Next() {
		var role, perm string
		if err := rows.Scan(&role, &perm); err != nil {
			return nil, err
		}
		byRole[role] = append(byRole[role], perm)
	}
	return byRole, rows.Err()
}

// ListTemplates returns all role templates.
func (r *PGRepository) ListTemplates(ctx context.Context) ([]RoleTemplate, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM role_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var templates []RoleTemplate
	for rows.Next() {
		var t RoleTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// GetTemplate fetches a template by ID.
func (r *PGRepository) GetTemplate(ctx context.Context, id int64) (RoleTemplate, error) {
	var t RoleTemplate
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM role_templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RoleTemplate{}, shared.ErrNotFound
		}
		return RoleTemplate{}, err
	}
	return t, nil
}

// CreateTemplate inserts a new template.
func (r *PGRepository) CreateTemplate(ctx context.Context, name, description string) (RoleTemplate, error) {
	var t RoleTemplate
	err := r.pool.QueryRow(ctx, `INSERT INTO role_templates (name, description)
VALUES ($1, $2)
RETURNING id, name, description, created_at, updated_at`, name, description).
		Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return RoleTemplate{}, mapUnique(err)
	}
	return t, nil
}

// UpdateTemplate renames or re-describes a template.
func (r *PGRepository) UpdateTemplate(ctx context.Context, id int64, name, description string) (RoleTemplate, error) {
	var t RoleTemplate
	err := r.pool.QueryRow(ctx, `UPDATE role_templates SET name = $2, description = $3, updated_at = NOW()
WHERE id = $1
RETURNING id, name, description, created_at, updated_at`, id, name, description).
		Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RoleTemplate{}, shared.ErrNotFound
		}
		return RoleTemplate{}, mapUnique(err)
	}
	return t, nil
}

// DeleteTemplate removes a template; the join rows cascade.
func (r *PGRepository) DeleteTemplate(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_templates WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetTemplatePermissions replaces the template's permission set.
func (r *PGRepository) SetTemplatePermissions(ctx context.Context, templateID int64, permissionIDs []int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM template_permissions WHERE template_id = $1`, templateID); err != nil {
		return err
	}
	for _, id := range permissionIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO template_permissions (template_id, permission_id)
VALUES ($1, $2) ON CONFLICT DO NOTHING`, templateID, id); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// TemplatePermissionIDs lists the permission ids a template bundles.
func (r *PGRepository) TemplatePermissionIDs(ctx context.Context, templateID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission_id FROM template_permissions WHERE template_id = $1 ORDER BY permission_id`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StampTemplate bulk-attaches a template's permissions onto a role, skipping
// pairs that already exist. Returns the number of new grants.
func (r *PGRepository) StampTemplate(ctx context.Context, roleID, templateID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id)
SELECT $1, tp.permission_id FROM template_permissions tp WHERE tp.template_id = $2
ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, templateID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	var kind string
	if err := row.Scan(&role.ID, &role.Name, &kind, &role.Description, &role.System, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	role.Kind = RoleKind(kind)
	return role, nil
}

func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrConflict
	}
	return err
}
