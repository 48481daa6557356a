package consent

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

// Handler exposes consent capture and history over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers consent routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.capture)
	r.Get("/{subjectID}/active", h.active)
	r.Get("/{subjectID}/history", h.history)
}

type grantResponse struct {
	ID             int64   `json:"id"`
	SubjectProfile int64   `json:"subject_profile_id"`
	Scope          string  `json:"scope"`
	AllowedOrgIDs  []int64 `json:"allowed_org_ids,omitempty"`
	Method         string  `json:"method"`
	StaffAttested  bool    `json:"staff_attested"`
	ClientAttested bool    `json:"client_attested"`
	Notes          string  `json:"notes,omitempty"`
	PolicyVersion  string  `json:"policy_version"`
	CreatedAt      string  `json:"created_at"`
	SupersededAt   string  `json:"superseded_at,omitempty"`
}

func toGrantResponse(g Grant) grantResponse {
	out := grantResponse{
		ID:             g.ID,
		SubjectProfile: g.SubjectProfile,
		Scope:          string(g.Scope),
		AllowedOrgIDs:  g.AllowedOrgIDs,
		Method:         g.Method,
		StaffAttested:  g.StaffAttested,
		ClientAttested: g.ClientAttested,
		Notes:          g.Notes,
		PolicyVersion:  g.PolicyVersion,
		CreatedAt:      g.CreatedAt.UTC().Format(time.RFC3339),
	}
	if g.SupersededAt != nil {
		out.SupersededAt = g.SupersededAt.UTC().Format(time.RFC3339)
	}
	return out
}

type captureRequest struct {
	SubjectProfile int64   `json:"subject_profile_id" validate:"required"`
	Scope          string  `json:"scope" validate:"required"`
	AllowedOrgIDs  []int64 `json:"allowed_org_ids"`
	Method         string  `json:"method" validate:"required"`
	StaffAttested  bool    `json:"staff_attested"`
	ClientAttested bool    `json:"client_attested"`
	Notes          string  `json:"notes"`
	PolicyVersion  string  `json:"policy_version" validate:"required"`
}

func (h *Handler) capture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewValidationError("consent", "subject, scope, method and policy version required"))
		return
	}
	grant, err := h.service.Capture(r.Context(), access.FromContext(r.Context()), CaptureInput{
		SubjectProfile: req.SubjectProfile,
		Scope:          req.Scope,
		AllowedOrgIDs:  req.AllowedOrgIDs,
		Method:         req.Method,
		StaffAttested:  req.StaffAttested,
		ClientAttested: req.ClientAttested,
		Notes:          req.Notes,
		PolicyVersion:  req.PolicyVersion,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toGrantResponse(grant))
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	subjectID, err := subjectIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	grant, err := h.service.ActiveGrant(r.Context(), subjectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if grant == nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"active": nil})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"active": toGrantResponse(*grant)})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	subjectID, err := subjectIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	grants, err := h.service.History(r.Context(), subjectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, toGrantResponse(g))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": out})
}

func subjectIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "subjectID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidationError("subject_profile_id", "positive integer id required")
	}
	return id, nil
}
