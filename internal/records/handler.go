package records

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

// Handler exposes client records over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers record routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/flag", h.flag)
	r.Post("/{id}/supersede", h.supersede)
	r.Get("/subject/{subjectID}", h.listForSubject)
	r.Post("/self-claim", h.selfClaim)
}

type recordResponse struct {
	ID                 int64  `json:"id"`
	SubjectProfile     int64  `json:"subject_profile_id,omitempty"`
	OwningOrgID        int64  `json:"owning_org_id"`
	Category           string `json:"category"`
	Visibility         string `json:"visibility_scope"`
	Sensitivity        string `json:"sensitivity_level"`
	Source             string `json:"source"`
	VerificationStatus string `json:"verification_status"`
	Status             string `json:"status"`
	Summary            string `json:"summary"`
	Details            string `json:"details,omitempty"`
	SupersededBy       int64  `json:"superseded_by,omitempty"`
	CreatedAt          string `json:"created_at"`
}

func toRecordResponse(rec Record) recordResponse {
	return recordResponse{
		ID:                 rec.ID,
		SubjectProfile:     rec.SubjectProfile,
		OwningOrgID:        rec.OwningOrgID,
		Category:           string(rec.Category),
		Visibility:         string(rec.Visibility),
		Sensitivity:        string(rec.Sensitivity),
		Source:             string(rec.Source),
		VerificationStatus: rec.VerificationStatus,
		Status:             string(rec.Status),
		Summary:            rec.Summary,
		Details:            rec.Details,
		SupersededBy:       rec.SupersededBy,
		CreatedAt:          rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type createRequest struct {
	SubjectProfile     int64  `json:"subject_profile_id"`
	Category           string `json:"category" validate:"required"`
	Visibility         string `json:"visibility_scope" validate:"required"`
	Sensitivity        string `json:"sensitivity_level" validate:"required"`
	Source             string `json:"source" validate:"required"`
	Summary            string `json:"summary" validate:"required,max=500"`
	Details            string `json:"details"`
	ContactFingerprint string `json:"contact_fingerprint"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewValidationError("record", "category, visibility, sensitivity, source and summary required"))
		return
	}
	rec, err := h.service.Create(r.Context(), access.FromContext(r.Context()), createInputFromRequest(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRecordResponse(rec))
}

func createInputFromRequest(req createRequest) CreateInput {
	return CreateInput{
		SubjectProfile:     req.SubjectProfile,
		Category:           req.Category,
		Visibility:         req.Visibility,
		Sensitivity:        req.Sensitivity,
		Source:             req.Source,
		Summary:            req.Summary,
		Details:            req.Details,
		ContactFingerprint: req.ContactFingerprint,
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Get(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecordResponse(rec))
}

type updateRequest struct {
	Visibility         string `json:"visibility_scope" validate:"required"`
	Sensitivity        string `json:"sensitivity_level" validate:"required"`
	VerificationStatus string `json:"verification_status"`
	Status             string `json:"status"`
	Summary            string `json:"summary"`
	Details            string `json:"details"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Update(r.Context(), access.FromContext(r.Context()), id, UpdateInput{
		Visibility:         req.Visibility,
		Sensitivity:        req.Sensitivity,
		VerificationStatus: req.VerificationStatus,
		Status:             req.Status,
		Summary:            req.Summary,
		Details:            req.Details,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecordResponse(rec))
}

type flagRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) flag(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req flagRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Flag(r.Context(), access.FromContext(r.Context()), id, req.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) supersede(w http.ResponseWriter, r *http.Request) {
	id, err := recordIDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewValidationError("record", "replacement record fields required"))
		return
	}
	rec, err := h.service.Supersede(r.Context(), access.FromContext(r.Context()), id, createInputFromRequest(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRecordResponse(rec))
}

func (h *Handler) listForSubject(w http.ResponseWriter, r *http.Request) {
	subjectID, err := recordIDParam(r, "subjectID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	recs, err := h.service.ListForSubject(r.Context(), access.FromContext(r.Context()), subjectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordResponse(rec))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": out})
}

type selfClaimRequest struct {
	ContactFingerprint string `json:"contact_fingerprint" validate:"required"`
}

func (h *Handler) selfClaim(w http.ResponseWriter, r *http.Request) {
	var req selfClaimRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	claimed, err := h.service.SelfClaim(r.Context(), access.FromContext(r.Context()), req.ContactFingerprint)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(claimed))
	for _, rec := range claimed {
		out = append(out, toRecordResponse(rec))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"claimed": out})
}

func recordIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidationError(name, "positive integer id required")
	}
	return id, nil
}
