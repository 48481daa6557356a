package invites

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/platform/httpx"
	"github.com/havenlink/havenlink/internal/shared"
)

// Handler exposes invite issuance and acceptance over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers invite routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.issue)
	r.Post("/accept", h.accept)
}

type issueRequest struct {
	Email  string `json:"email" validate:"required,email"`
	RoleID int64  `json:"role_id" validate:"required"`
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewValidationError("invite", "email and role required"))
		return
	}
	inv, err := h.service.Issue(r.Context(), access.FromContext(r.Context()), IssueInput{
		Email:  req.Email,
		RoleID: req.RoleID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":         inv.ID,
		"email":      inv.Email,
		"org_id":     inv.OrgID,
		"role_id":    inv.RoleID,
		"expires_at": inv.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type acceptRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	actor := access.FromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrAuthenticationMissing)
		return
	}
	var req acceptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Accept(r.Context(), actor.ProfileID(), req.Token)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"org_id":  inv.OrgID,
		"role_id": inv.RoleID,
	})
}
