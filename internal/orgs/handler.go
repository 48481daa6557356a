package orgs

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

// Handler exposes organization management over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers organization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
}

type orgResponse struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Status          string   `json:"status"`
	Type            string   `json:"type"`
	PartnershipType string   `json:"partnership_type"`
	Features        []string `json:"features"`
	IsActive        bool     `json:"is_active"`
	ActingEligible  bool     `json:"acting_eligible"`
}

func toOrgResponse(org Organization) orgResponse {
	return orgResponse{
		ID:              org.ID,
		Name:            org.Name,
		Status:          string(org.Status),
		Type:            org.Type,
		PartnershipType: org.PartnershipType,
		Features:        org.Features,
		IsActive:        org.IsActive,
		ActingEligible:  org.ActingEligible(),
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]orgResponse, 0, len(all))
	for _, org := range all {
		out = append(out, toOrgResponse(org))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"organizations": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := orgIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	org, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrgResponse(org))
}

type orgRequest struct {
	Name            string   `json:"name" validate:"required,min=2,max=160"`
	Status          string   `json:"status" validate:"required"`
	Type            string   `json:"type"`
	PartnershipType string   `json:"partnership_type"`
	Features        []string `json:"features"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req orgRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.NewValidationError("organization", "name and status required"))
		return
	}
	org, err := h.service.Create(r.Context(), access.FromContext(r.Context()), CreateInput{
		Name:            req.Name,
		Status:          req.Status,
		Type:            req.Type,
		PartnershipType: req.PartnershipType,
		Features:        req.Features,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrgResponse(org))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := orgIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req orgRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	org, err := h.service.Update(r.Context(), access.FromContext(r.Context()), id, UpdateInput{
		Name:            req.Name,
		Status:          req.Status,
		Type:            req.Type,
		PartnershipType: req.PartnershipType,
		Features:        req.Features,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrgResponse(org))
}

func orgIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidationError("id", "positive integer id required")
	}
	return id, nil
}
