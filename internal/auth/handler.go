package auth

import (
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

// Handler wires HTTP endpoints for authentication and organization selection.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	builder        *access.Builder
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, builder *access.Builder, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		builder:        builder,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/select-org", h.handleSelectOrg)
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewValidationError("credentials", "email and password required"))
		return
	}
	identity, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "invalid credentials", "email or password is incorrect")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	sess.SetUser(strconv.FormatInt(identity.ID, 10))
	// A fresh login never inherits a previously selected organization.
	sess.SetActingOrg(0)
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, identity.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Warn("issue csrf token", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"identity_id": identity.ID,
		"csrf_token":  token,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"logged_out": true})
}

type selectOrgRequest struct {
	OrgID int64 `json:"org_id"`
}

// handleSelectOrg pins the acting organization for the session. The choice is
// validated against current memberships before it is stored; it is never
// inferred.
func (h *Handler) handleSelectOrg(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.RespondError(w, shared.ErrAuthenticationMissing)
		return
	}
	identityID, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrAuthenticationMissing)
		return
	}
	var req selectOrgRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.OrgID <= 0 {
		sess.SetActingOrg(0)
		httpx.JSON(w, http.StatusOK, map[string]any{"acting_org_id": 0})
		return
	}
	if _, err := h.builder.Build(r.Context(), identityID, req.OrgID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sess.SetActingOrg(req.OrgID)
	httpx.JSON(w, http.StatusOK, map[string]any{"acting_org_id": req.OrgID})
}

// handleMe reports the caller's resolved authorization state.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor := access.FromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, shared.ErrAuthenticationMissing)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"identity_id":    actor.IdentityID(),
		"profile_id":     actor.ProfileID(),
		"approved":       actor.Approved(),
		"elevated_admin": actor.ElevatedAdmin(),
		"acting_org_id":  actor.ActingOrgID(),
		"staff_role":     actor.StaffRole(),
		"permissions":    actor.Effective(),
	})
}
