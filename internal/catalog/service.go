package catalog

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/guard"
	"github.com/havenlink/havenlink/internal/shared"
)

// DefaultCacheTTL bounds staleness of role-to-permission expansion.
const DefaultCacheTTL = 30 * time.Second

// Service orchestrates catalog operations. All mutations run through the
// mutation guard.
type Service struct {
	repo  Repository
	guard *guard.Guard
	cache *permCache
}

// NewService constructs a Service.
func NewService(repo Repository, g *guard.Guard, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Service{repo: repo, guard: g, cache: newPermCache(cacheTTL)}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches one role.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// ListPermissions returns all permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// ListTemplates returns all role templates.
func (s *Service) ListTemplates(ctx context.Context) ([]RoleTemplate, error) {
	return s.repo.ListTemplates(ctx)
}

// TemplatePermissionIDs lists a template's permission ids.
func (s *Service) TemplatePermissionIDs(ctx context.Context, templateID int64) ([]int64, error) {
	if _, err := s.repo.GetTemplate(ctx, templateID); err != nil {
		return nil, err
	}
	return s.repo.TemplatePermissionIDs(ctx, templateID)
}

// PermissionsForRoles expands role names into the deduplicated permission
// names they grant, served from the TTL cache.
func (s *Service) PermissionsForRoles(ctx context.Context, roleNames []string) ([]string, error) {
	if len(roleNames) == 0 {
		return nil, nil
	}
	byRole, err := s.cache.get(ctx, s.repo.RolePermissionNames)
	if err != nil {
		return nil, shared.Infra("catalog: load role permissions", err)
	}
	seen := make(map[string]struct{})
	var perms []string
	for _, role := range roleNames {
		for _, p := range byRole[role] {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			perms = append(perms, p)
		}
	}
	return perms, nil
}

// CreateRole inserts a new role of the given kind.
func (s *Service) CreateRole(ctx context.Context, actor *access.Context, name, kind, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, shared.NewValidationError("name", "role name required")
	}
	if !ValidRoleKind(kind) {
		return Role{}, shared.NewValidationError("kind", "unknown role kind")
	}
	var created Role
	_, err := s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "role.create",
		Entity:     "role",
		Permission: shared.PermRolesEdit,
		Apply: func(ctx context.Context) (guard.State, error) {
			role, err := s.repo.CreateRole(ctx, name, RoleKind(kind), strings.TrimSpace(description))
			if err != nil {
				return guard.State{}, err
			}
			created = role
			return guard.State{
				EntityID: strconv.FormatInt(role.ID, 10),
				Fields:   roleFields(role),
			}, nil
		},
	})
	if err != nil {
		return Role{}, err
	}
	s.cache.invalidate()
	return created, nil
}

// UpdateRole renames or re-describes a role.
func (s *Service) UpdateRole(ctx context.Context, actor *access.Context, id int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, shared.NewValidationError("name", "role name required")
	}
	prior, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	var updated Role
	_, err = s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "role.update",
		Entity:     "role",
		Permission: shared.PermRolesEdit,
		Prior:      roleFields(prior),
		Apply: func(ctx context.Context) (guard.State, error) {
			role, err := s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description))
			if err != nil {
				return guard.State{}, err
			}
			updated = role
			return guard.State{
				EntityID: strconv.FormatInt(role.ID, 10),
				Fields:   roleFields(role),
			}, nil
		},
	})
	if err != nil {
		return Role{}, err
	}
	s.cache.invalidate()
	return updated, nil
}

// DeleteRole removes a role. System roles are protected.
func (s *Service) DeleteRole(ctx context.Context, actor *access.Context, id int64) error {
	prior, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if prior.System {
		return shared.NewValidationError("role", "system roles cannot be deleted")
	}
	_, err = s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "role.delete",
		Entity:     "role",
		Permission: shared.PermRolesEdit,
		Apply: func(ctx context.Context) (guard.State, error) {
			rows, err := s.repo.DeleteRole(ctx, id)
			if err != nil {
				return guard.State{}, err
			}
			if rows == 0 {
				return guard.State{}, shared.ErrNotFound
			}
			return guard.State{
				EntityID: strconv.FormatInt(id, 10),
				Fields:   map[string]any{"name": prior.Name, "kind": string(prior.Kind)},
			}, nil
		},
	})
	if err != nil {
		return err
	}
	s.cache.invalidate()
	return nil
}

// DeactivatePermission marks the permission inactive. Permissions referenced
// by audit history are never deleted, only deactivated.
func (s *Service) DeactivatePermission(ctx context.Context, actor *access.Context, id int64) error {
	prior, err := s.repo.GetPermission(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "permission.deactivate",
		Entity:     "permission",
		Permission: shared.PermRolesEdit,
		Prior:      map[string]any{"active": prior.Active},
		Apply: func(ctx context.Context) (guard.State, error) {
			if prior.Active {
				if err := s.repo.SetPermissionActive(ctx, id, false); err != nil {
					return guard.State{}, err
				}
			}
			return guard.State{
				EntityID: strconv.FormatInt(id, 10),
				Fields:   map[string]any{"active": false},
				Meta:     map[string]any{"name": prior.Name},
			}, nil
		},
	})
	if err != nil {
		return err
	}
	s.cache.invalidate()
	return nil
}

// GrantPermission attaches a permission to a role. Repeat grants succeed as
// no-ops and emit no audit event.
func (s *Service) GrantPermission(ctx context.Context, actor *access.Context, roleID, permissionID int64) error {
	return s.togglePermission(ctx, actor, roleID, permissionID, true)
}

// RevokePermission detaches a permission from a role. Revoking an absent pair
// succeeds as a no-op and emits no audit event.
func (s *Service) RevokePermission(ctx context.Context, actor *access.Context, roleID, permissionID int64) error {
	return s.togglePermission(ctx, actor, roleID, permissionID, false)
}

func rolePermissionEntityID(roleID, permissionID int64) string {
	return strconv.FormatInt(roleID, 10) + ":" + strconv.FormatInt(permissionID, 10)
}

func (s *Service) togglePermission(ctx context.Context, actor *access.Context, roleID, permissionID int64, grant bool) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if _, err := s.repo.GetPermission(ctx, permissionID); err != nil {
		return err
	}
	exists, err := s.repo.HasRolePermission(ctx, roleID, permissionID)
	if err != nil {
		return shared.Infra("catalog: role permission lookup", err)
	}
	action := "role.permission.grant"
	if !grant {
		action = "role.permission.revoke"
	}
	_, err = s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     action,
		Entity:     "role_permission",
		Permission: shared.PermRolesEdit,
		Prior:      map[string]any{"granted": exists},
		Apply: func(ctx context.Context) (guard.State, error) {
			if grant && !exists {
				if err := s.repo.GrantRolePermission(ctx, roleID, permissionID); err != nil {
					return guard.State{}, err
				}
			}
			if !grant && exists {
				if err := s.repo.RevokeRolePermission(ctx, roleID, permissionID); err != nil {
					return guard.State{}, err
				}
			}
			return guard.State{
				EntityID: rolePermissionEntityID(roleID, permissionID),
				Fields:   map[string]any{"granted": grant},
			}, nil
		},
	})
	if err != nil {
		return err
	}
	s.cache.invalidate()
	return nil
}

// CreateTemplate inserts a reusable permission bundle.
func (s *Service) CreateTemplate(ctx context.Context, actor *access.Context, name, description string, permissionIDs []int64) (RoleTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RoleTemplate{}, shared.NewValidationError("name", "template name required")
	}
	var created RoleTemplate
	_, err := s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "role_template.create",
		Entity:     "role_template",
		Permission: shared.PermRolesEdit,
		Apply: func(ctx context.Context) (guard.State, error) {
			tpl, err := s.repo.CreateTemplate(ctx, name, strings.TrimSpace(description))
			if err != nil {
				return guard.State{}, err
			}
			if len(permissionIDs) > 0 {
				if err := s.repo.SetTemplatePermissions(ctx, tpl.ID, permissionIDs); err != nil {
					return guard.State{}, err
				}
			}
			created = tpl
			return guard.State{
				EntityID: strconv.FormatInt(tpl.ID, 10),
				Fields:   map[string]any{"name": tpl.Name, "description": tpl.Description},
				Meta:     map[string]any{"permission_count": len(permissionIDs)},
			}, nil
		},
	})
	if err != nil {
		return RoleTemplate{}, err
	}
	return created, nil
}

// UpdateTemplate renames or re-describes a template; the permission set, when
// provided, is replaced wholesale.
func (s *Service) UpdateTemplate(ctx context.Context, actor *access.Context, id int64, name, description string, permissionIDs []int64) (RoleTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RoleTemplate{}, shared.NewValidationError("name", "template name required")
	}
	prior, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return RoleTemplate{}, err
	}
	var updated RoleTemplate
	_, err = s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "role_template.update",
		Entity:     "role_template",
		Permission: shared.PermRolesEdit,
		Prior:      map[string]any{"name": prior.Name, "description": prior.Description},
		Apply: func(ctx context.Context) (guard.State, error) {
			tpl, err := s.repo.UpdateTemplate(ctx, id, name, strings.TrimSpace(description))
			if err != nil {
				return guard.State{}, err
			}
			if permissionIDs != nil {
				if err := s.repo.SetTemplatePermissions(ctx, tpl.ID, permissionIDs); err != nil {
					return guard.State{}, err
				}
			}
			updated = tpl
			return guard.State{
				EntityID: strconv.FormatInt(tpl.ID, 10),
				Fields:   map[string]any{"name": tpl.Name, "description": tpl.Description},
			}, nil
		},
	})
	if err != nil {
		return RoleTemplate{}, err
	}
	return updated, nil
}

// DeleteTemplate removes a template. Roles already stamped keep their grants.
func (s *Service) DeleteTemplate(ctx context.Context, actor *access.Context, id int64) error {
	prior, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "role_template.delete",
		Entity:     "role_template",
		Permission: shared.PermRolesEdit,
		Apply: func(ctx context.Context) (guard.State, error) {
			rows, err := s.repo.DeleteTemplate(ctx, id)
			if err != nil {
				return guard.State{}, err
			}
			if rows == 0 {
				return guard.State{}, shared.ErrNotFound
			}
			return guard.State{
				EntityID: strconv.FormatInt(id, 10),
				Fields:   map[string]any{"name": prior.Name},
			}, nil
		},
	})
	return err
}

// ApplyTemplate stamps a template's permission bundle onto an
// organization-kind role in bulk.
func (s *Service) ApplyTemplate(ctx context.Context, actor *access.Context, roleID, templateID int64) (int64, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return 0, err
	}
	if role.Kind != RoleKindOrganization {
		return 0, shared.NewValidationError("role", "templates apply to organization-kind roles")
	}
	if _, err := s.repo.GetTemplate(ctx, templateID); err != nil {
		return 0, err
	}
	var applied int64
	_, err = s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "role_template.apply",
		Entity:     "role",
		Permission: shared.PermTemplatesApply,
		Apply: func(ctx context.Context) (guard.State, error) {
			n, err := s.repo.StampTemplate(ctx, roleID, templateID)
			if err != nil {
				return guard.State{}, err
			}
			applied = n
			return guard.State{
				EntityID: strconv.FormatInt(roleID, 10),
				Fields:   map[string]any{"template_id": templateID, "granted": n},
				Meta:     map[string]any{"role": role.Name},
			}, nil
		},
	})
	if err != nil {
		return 0, err
	}
	s.cache.invalidate()
	return applied, nil
}

func roleFields(role Role) map[string]any {
	return map[string]any{
		"name":        role.Name,
		"kind":        string(role.Kind),
		"description": role.Description,
	}
}
