package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/audit"
	"github.com/havenlink/havenlink/internal/guard"
	"github.com/havenlink/havenlink/internal/shared"
)

type memStore struct {
	roles     map[int64]Role
	perms     map[int64]Permission
	rolePerms map[string]bool
	templates map[int64]RoleTemplate
	tplPerms  map[int64][]int64
	nextID    int64
	loadCalls int
}

func newMemStore() *memStore {
	return &memStore{
		roles:     map[int64]Role{},
		perms:     map[int64]Permission{},
		rolePerms: map[string]bool{},
		templates: map[int64]RoleTemplate{},
		tplPerms:  map[int64][]int64{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func pairKey(roleID, permissionID int64) string {
	return fmt.Sprintf("%d:%d", roleID, permissionID)
}

func (m *memStore) addRole(name string, kind RoleKind, system bool) Role {
	role := Role{ID: m.id(), Name: name, Kind: kind, System: system, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.roles[role.ID] = role
	return role
}

func (m *memStore) addPerm(name string) Permission {
	p := Permission{ID: m.id(), Name: name, Active: true}
	m.perms[p.ID] = p
	return p
}

func (m *memStore) ListRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) GetRole(ctx context.Context, id int64) (Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return r, nil
}

func (m *memStore) CreateRole(ctx context.Context, name string, kind RoleKind, description string) (Role, error) {
	role := Role{ID: m.id(), Name: name, Kind: kind, Description: description}
	m.roles[role.ID] = role
	return role, nil
}

func (m *memStore) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	r.Name, r.Description = name, description
	m.roles[id] = r
	return r, nil
}

func (m *memStore) DeleteRole(ctx context.Context, id int64) (int64, error) {
	if _, ok := m.roles[id]; !ok {
		return 0, nil
	}
	delete(m.roles, id)
	return 1, nil
}

func (m *memStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	var out []Permission
	for _, p := range m.perms {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) GetPermission(ctx context.Context, id int64) (Permission, error) {
	p, ok := m.perms[id]
	if !ok {
		return Permission{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memStore) SetPermissionActive(ctx context.Context, id int64, active bool) error {
	p, ok := m.perms[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Active = active
	m.perms[id] = p
	return nil
}

func (m *memStore) HasRolePermission(ctx context.Context, roleID, permissionID int64) (bool, error) {
	return m.rolePerms[pairKey(roleID, permissionID)], nil
}

func (m *memStore) GrantRolePermission(ctx context.Context, roleID, permissionID int64) error {
	m.rolePerms[pairKey(roleID, permissionID)] = true
	return nil
}

func (m *memStore) RevokeRolePermission(ctx context.Context, roleID, permissionID int64) error {
	delete(m.rolePerms, pairKey(roleID, permissionID))
	return nil
}

func (m *memStore) RolePermissionNames(ctx context.Context) (map[string][]string, error) {
	m.loadCalls++
	out := map[string][]string{}
	for roleID, role := range m.roles {
		for permID, perm := range m.perms {
			if m.rolePerms[pairKey(roleID, permID)] {
				out[role.Name] = append(out[role.Name], perm.Name)
			}
		}
	}
	return out, nil
}

func (m *memStore) ListTemplates(ctx context.Context) ([]RoleTemplate, error) {
	var out []RoleTemplate
	for _, t := range m.templates {
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) GetTemplate(ctx context.Context, id int64) (RoleTemplate, error) {
	t, ok := m.templates[id]
	if !ok {
		return RoleTemplate{}, shared.ErrNotFound
	}
	return t, nil
}

func (m *memStore) CreateTemplate(ctx context.Context, name, description string) (RoleTemplate, error) {
	t := RoleTemplate{ID: m.id(), Name: name, Description: description}
	m.templates[t.ID] = t
	return t, nil
}

func (m *memStore) UpdateTemplate(ctx context.Context, id int64, name, description string) (RoleTemplate, error) {
	t, ok := m.templates[id]
	if !ok {
		return RoleTemplate{}, shared.ErrNotFound
	}
	t.Name, t.Description = name, description
	m.templates[id] = t
	return t, nil
}

func (m *memStore) DeleteTemplate(ctx context.Context, id int64) (int64, error) {
	if _, ok := m.templates[id]; !ok {
		return 0, nil
	}
	delete(m.templates, id)
	delete(m.tplPerms, id)
	return 1, nil
}

func (m *memStore) SetTemplatePermissions(ctx context.Context, templateID int64, permissionIDs []int64) error {
	m.tplPerms[templateID] = append([]int64(nil), permissionIDs...)
	return nil
}

func (m *memStore) TemplatePermissionIDs(ctx context.Context, templateID int64) ([]int64, error) {
	return m.tplPerms[templateID], nil
}

func (m *memStore) StampTemplate(ctx context.Context, roleID, templateID int64) (int64, error) {
	var granted int64
	for _, permID := range m.tplPerms[templateID] {
		key := pairKey(roleID, permID)
		if m.rolePerms[key] {
			continue
		}
		m.rolePerms[key] = true
		granted++
	}
	return granted, nil
}

type captureRecorder struct {
	events []audit.Event
}

func (r *captureRecorder) Record(ctx context.Context, ev audit.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func editorActor() *access.Context {
	return access.NewContext(access.ContextParams{
		IdentityID:  1,
		ProfileID:   2,
		Approved:    true,
		Permissions: []string{shared.PermRolesEdit, shared.PermTemplatesApply},
	})
}

func newTestService(store *memStore) (*Service, *captureRecorder) {
	rec := &captureRecorder{}
	g := guard.New(rec, nil, nil, nil)
	return NewService(store, g, time.Minute), rec
}

func TestCreateRoleValidation(t *testing.T) {
	svc, _ := newTestService(newMemStore())
	actor := editorActor()

	_, err := svc.CreateRole(context.Background(), actor, "  ", "global", "")
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.CreateRole(context.Background(), actor, "ops", "regional", "")
	require.ErrorAs(t, err, &verr)
}

func TestGrantPermissionRepeatIsSilent(t *testing.T) {
	store := newMemStore()
	role := store.addRole("org_rep", RoleKindOrganization, false)
	perm := store.addPerm(shared.PermRecordsView)
	svc, rec := newTestService(store)
	actor := editorActor()

	require.NoError(t, svc.GrantPermission(context.Background(), actor, role.ID, perm.ID))
	require.Len(t, rec.events, 1)
	require.Equal(t, "role.permission.grant", rec.events[0].Action)
	require.Equal(t, []string{"granted"}, rec.events[0].ChangedFields)

	// The pair already exists: the grant succeeds but changes nothing, so no
	// second event is written.
	require.NoError(t, svc.GrantPermission(context.Background(), actor, role.ID, perm.ID))
	require.Len(t, rec.events, 1)
	require.True(t, store.rolePerms[pairKey(role.ID, perm.ID)])
}

func TestRevokeAbsentPermissionIsSilent(t *testing.T) {
	store := newMemStore()
	role := store.addRole("org_rep", RoleKindOrganization, false)
	perm := store.addPerm(shared.PermRecordsView)
	svc, rec := newTestService(store)

	require.NoError(t, svc.RevokePermission(context.Background(), editorActor(), role.ID, perm.ID))
	require.Empty(t, rec.events)
}

func TestDeleteSystemRoleRejected(t *testing.T) {
	store := newMemStore()
	role := store.addRole("elevated_admin", RoleKindGlobal, true)
	svc, rec := newTestService(store)

	err := svc.DeleteRole(context.Background(), editorActor(), role.ID)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Empty(t, rec.events)
	require.Contains(t, store.roles, role.ID)
}

func TestDeactivatePermissionRepeatIsSilent(t *testing.T) {
	store := newMemStore()
	perm := store.addPerm(shared.PermRecordsEdit)
	svc, rec := newTestService(store)
	actor := editorActor()

	require.NoError(t, svc.DeactivatePermission(context.Background(), actor, perm.ID))
	require.Len(t, rec.events, 1)
	require.Equal(t, []string{"active"}, rec.events[0].ChangedFields)
	require.False(t, store.perms[perm.ID].Active)

	require.NoError(t, svc.DeactivatePermission(context.Background(), actor, perm.ID))
	require.Len(t, rec.events, 1)
}

func TestPermissionsForRolesCachesUntilMutation(t *testing.T) {
	store := newMemStore()
	role := store.addRole("staff", RoleKindOrganization, false)
	view := store.addPerm(shared.PermRecordsView)
	edit := store.addPerm(shared.PermRecordsEdit)
	store.rolePerms[pairKey(role.ID, view.ID)] = true
	svc, _ := newTestService(store)

	perms, err := svc.PermissionsForRoles(context.Background(), []string{"staff"})
	require.NoError(t, err)
	require.Equal(t, []string{shared.PermRecordsView}, perms)

	_, err = svc.PermissionsForRoles(context.Background(), []string{"staff"})
	require.NoError(t, err)
	require.Equal(t, 1, store.loadCalls)

	require.NoError(t, svc.GrantPermission(context.Background(), editorActor(), role.ID, edit.ID))

	perms, err = svc.PermissionsForRoles(context.Background(), []string{"staff"})
	require.NoError(t, err)
	require.Len(t, perms, 2)
	require.Equal(t, 2, store.loadCalls)
}

func TestPermissionsForRolesDeduplicates(t *testing.T) {
	store := newMemStore()
	staff := store.addRole("staff", RoleKindOrganization, false)
	rep := store.addRole("org_rep", RoleKindOrganization, false)
	view := store.addPerm(shared.PermRecordsView)
	store.rolePerms[pairKey(staff.ID, view.ID)] = true
	store.rolePerms[pairKey(rep.ID, view.ID)] = true
	svc, _ := newTestService(store)

	perms, err := svc.PermissionsForRoles(context.Background(), []string{"staff", "org_rep"})
	require.NoError(t, err)
	require.Equal(t, []string{shared.PermRecordsView}, perms)
}

func TestApplyTemplateRequiresOrganizationKind(t *testing.T) {
	store := newMemStore()
	global := store.addRole("platform_moderator", RoleKindGlobal, true)
	svc, _ := newTestService(store)

	_, err := svc.ApplyTemplate(context.Background(), editorActor(), global.ID, 99)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestApplyTemplateStampsMissingPairsOnly(t *testing.T) {
	store := newMemStore()
	role := store.addRole("org_rep", RoleKindOrganization, false)
	view := store.addPerm(shared.PermRecordsView)
	edit := store.addPerm(shared.PermRecordsEdit)
	store.rolePerms[pairKey(role.ID, view.ID)] = true
	svc, rec := newTestService(store)
	actor := editorActor()

	tpl, err := svc.CreateTemplate(context.Background(), actor, "caseworker", "", []int64{view.ID, edit.ID})
	require.NoError(t, err)

	granted, err := svc.ApplyTemplate(context.Background(), actor, role.ID, tpl.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), granted)
	require.True(t, store.rolePerms[pairKey(role.ID, edit.ID)])

	var applyEvents int
	for _, ev := range rec.events {
		if ev.Action == "role_template.apply" {
			applyEvents++
		}
	}
	require.Equal(t, 1, applyEvents)
}

func TestTemplateLifecycle(t *testing.T) {
	store := newMemStore()
	view := store.addPerm(shared.PermRecordsView)
	svc, rec := newTestService(store)
	actor := editorActor()

	tpl, err := svc.CreateTemplate(context.Background(), actor, "caseworker", "", []int64{view.ID})
	require.NoError(t, err)

	renamed, err := svc.UpdateTemplate(context.Background(), actor, tpl.ID, "intake worker", "front desk", nil)
	require.NoError(t, err)
	require.Equal(t, "intake worker", renamed.Name)

	require.NoError(t, svc.DeleteTemplate(context.Background(), actor, tpl.ID))
	_, err = svc.TemplatePermissionIDs(context.Background(), tpl.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	actions := make([]string, 0, len(rec.events))
	for _, ev := range rec.events {
		actions = append(actions, ev.Action)
	}
	require.Equal(t, []string{"role_template.create", "role_template.update", "role_template.delete"}, actions)
}

func TestMutationsRequirePermission(t *testing.T) {
	store := newMemStore()
	role := store.addRole("org_rep", RoleKindOrganization, false)
	perm := store.addPerm(shared.PermRecordsView)
	svc, rec := newTestService(store)

	reader := access.NewContext(access.ContextParams{
		IdentityID:  1,
		ProfileID:   2,
		Approved:    true,
		Permissions: []string{shared.PermRolesView},
	})
	err := svc.GrantPermission(context.Background(), reader, role.ID, perm.ID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
	require.Empty(t, rec.events)
	require.False(t, store.rolePerms[pairKey(role.ID, perm.ID)])
}
