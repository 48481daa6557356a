package profiles

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/platform/httpx"
	"github.com/havenlink/havenlink/internal/shared"
)

// Handler exposes profile registration and the approval queue over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers profile routes. Registration and self-service are
// reachable pre-approval; the review queue is not.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.register)
	r.Get("/me", h.me)
	r.Put("/me/name", h.rename)
	r.Group(func(gr chi.Router) {
		gr.Use(access.RequireApproved)
		gr.Use(access.RequirePermission(shared.PermProfilesView))
		gr.Get("/pending", h.pendingQueue)
		gr.Get("/{id}", h.get)
		gr.Post("/{id}/approve", h.approve)
		gr.Post("/{id}/decline", h.decline)
		gr.Post("/{id}/revoke", h.revoke)
	})
}

type profileResponse struct {
	ID              int64  `json:"id"`
	IdentityID      int64  `json:"identity_id"`
	DisplayName     string `json:"display_name"`
	Affiliation     string `json:"affiliation"`
	Status          string `json:"affiliation_status"`
	HomeOrgID       int64  `json:"home_org_id,omitempty"`
	GovernmentRole  string `json:"government_role,omitempty"`
	StatusChangedAt string `json:"status_changed_at"`
}

func toProfileResponse(p Profile) profileResponse {
	return profileResponse{
		ID:              p.ID,
		IdentityID:      p.IdentityID,
		DisplayName:     p.DisplayName,
		Affiliation:     string(p.Affiliation),
		Status:          string(p.Status),
		HomeOrgID:       p.HomeOrgID,
		GovernmentRole:  string(p.GovernmentRole),
		StatusChangedAt: p.StatusChangedAt.UTC().Format(time.RFC3339),
	}
}

type registerRequest struct {
	DisplayName    string `json:"display_name" validate:"required,min=2,max=120"`
	Affiliation    string `json:"affiliation" validate:"required"`
	HomeOrgID      int64  `json:"home_org_id"`
	GovernmentRole string `json:"government_role"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	actor := access.FromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrAuthenticationMissing)
		return
	}
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewValidationError("profile", "display name and affiliation required"))
		return
	}
	profile, err := h.service.Register(r.Context(), actor.IdentityID(), RegisterInput{
		DisplayName:    req.DisplayName,
		Affiliation:    req.Affiliation,
		HomeOrgID:      req.HomeOrgID,
		GovernmentRole: req.GovernmentRole,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProfileResponse(profile))
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor := access.FromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrAuthenticationMissing)
		return
	}
	profile, err := h.service.GetByIdentity(r.Context(), actor.IdentityID())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProfileResponse(profile))
}

type renameRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=2,max=120"`
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewValidationError("display_name", "between 2 and 120 characters"))
		return
	}
	profile, err := h.service.Rename(r.Context(), access.FromContext(r.Context()), req.DisplayName)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) pendingQueue(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.PendingQueue(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]profileResponse, 0, len(pending))
	for _, p := range pending {
		out = append(out, toProfileResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pending": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := profileIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	profile, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Approve)
}

func (h *Handler) decline(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Decline)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Revoke)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor *access.Context, profileID int64) (Profile, error)) {
	id, err := profileIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	profile, err := op(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProfileResponse(profile))
}

func profileIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidationError("id", "positive integer id required")
	}
	return id, nil
}
