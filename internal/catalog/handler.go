package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/platform/httpx"
	"github.com/havenlink/havenlink/internal/shared"
)

// Handler exposes the role and permission catalog over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.listRoles)
	r.Post("/roles", h.createRole)
	r.Get("/roles/{id}", h.getRole)
	r.Put("/roles/{id}", h.updateRole)
	r.Delete("/roles/{id}", h.deleteRole)
	r.Put("/roles/{id}/permissions/{permID}", h.grantPermission)
	r.Delete("/roles/{id}/permissions/{permID}", h.revokePermission)
	r.Get("/permissions", h.listPermissions)
	r.Post("/permissions/{id}/deactivate", h.deactivatePermission)
	r.Get("/templates", h.listTemplates)
	r.Post("/templates", h.createTemplate)
	r.Put("/templates/{id}", h.updateTemplate)
	r.Delete("/templates/{id}", h.deleteTemplate)
	r.Post("/roles/{id}/templates/{templateID}", h.applyTemplate)
}

type roleResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	System      bool   `json:"is_system"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Kind:        string(role.Kind),
		Description: role.Description,
		System:      role.System,
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

type roleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=80"`
	Kind        string `json:"kind" validate:"required"`
	Description string `json:"description" validate:"max=300"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewValidationError("role", "name and kind required"))
		return
	}
	role, err := h.service.CreateRole(r.Context(), access.FromContext(r.Context()), req.Name, req.Kind, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), access.FromContext(r.Context()), id, req.Name, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), access.FromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) grantPermission(w http.ResponseWriter, r *http.Request) {
	h.togglePermission(w, r, true)
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	h.togglePermission(w, r, false)
}

func (h *Handler) togglePermission(w http.ResponseWriter, r *http.Request, grant bool) {
	roleID, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	permID, err := idParam(r, "permID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := access.FromContext(r.Context())
	if grant {
		err = h.service.GrantPermission(r.Context(), actor, roleID, permID)
	} else {
		err = h.service.RevokePermission(r.Context(), actor, roleID, permID)
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"granted": grant})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	type permResponse struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Domain   string `json:"domain"`
		Category string `json:"category"`
		Active   bool   `json:"active"`
	}
	out := make([]permResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permResponse{ID: p.ID, Name: p.Name, Domain: p.Domain, Category: p.Category, Active: p.Active})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}

func (h *Handler) deactivatePermission(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeactivatePermission(r.Context(), access.FromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"active": false})
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.ListTemplates(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	type templateResponse struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	out := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, templateResponse{ID: t.ID, Name: t.Name, Description: t.Description})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"templates": out})
}

type templateRequest struct {
	Name          string  `json:"name" validate:"required,min=2,max=80"`
	Description   string  `json:"description" validate:"max=300"`
	PermissionIDs []int64 `json:"permission_ids" validate:"required,min=1"`
}

func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewValidationError("template", "name and permissions required"))
		return
	}
	tmpl, err := h.service.CreateTemplate(r.Context(), access.FromContext(r.Context()), req.Name, req.Description, req.PermissionIDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": tmpl.ID, "name": tmpl.Name})
}

func (h *Handler) updateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req templateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tmpl, err := h.service.UpdateTemplate(r.Context(), access.FromContext(r.Context()), id, req.Name, req.Description, req.PermissionIDs)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": tmpl.ID, "name": tmpl.Name})
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteTemplate(r.Context(), access.FromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) applyTemplate(w http.ResponseWriter, r *http.Request) {
	roleID, err := idParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	templateID, err := idParam(r, "templateID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	added, err := h.service.ApplyTemplate(r.Context(), access.FromContext(r.Context()), roleID, templateID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions_added": added})
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidationError(name, "positive integer id required")
	}
	return id, nil
}
