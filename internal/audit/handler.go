package audit

import (
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/havenlink/havenlink/internal/platform/httpx"
	"github.com/havenlink/havenlink/internal/shared"
)

// Handler exposes the audit timeline over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
	r.Get("/export", h.export)
}

type eventResponse struct {
	ID            int64          `json:"id"`
	ActorProfile  int64          `json:"actor_profile_id"`
	Action        string         `json:"action"`
	Entity        string         `json:"entity"`
	EntityID      string         `json:"entity_id"`
	ChangedFields []string       `json:"changed_fields,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
	At            string         `json:"occurred_at"`
}

func toEventResponse(ev Event) eventResponse {
	return eventResponse{
		ID:            ev.ID,
		ActorProfile:  ev.ActorProfile,
		Action:        ev.Action,
		Entity:        ev.Entity,
		EntityID:      ev.EntityID,
		ChangedFields: ev.ChangedFields,
		Meta:          ev.Meta,
		At:            ev.At.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(result.Rows))
	for _, ev := range result.Rows {
		out = append(out, toEventResponse(ev))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"events": out,
		"paging": map[string]any{
			"page":      result.Paging.Page,
			"page_size": result.Paging.PageSize,
			"has_next":  result.Paging.HasNext,
		},
	})
}

// export streams the filtered timeline as CSV. Field maps are serialized as
// their JSON in a single column.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	events, err := h.service.Export(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit_events.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "occurred_at", "actor_profile_id", "action", "entity", "entity_id", "changed_fields", "meta"})
	for _, ev := range events {
		_ = cw.Write([]string{
			strconv.FormatInt(ev.ID, 10),
			ev.At.UTC().Format(time.RFC3339),
			strconv.FormatInt(ev.ActorProfile, 10),
			ev.Action,
			ev.Entity,
			ev.EntityID,
			strings.Join(ev.ChangedFields, ";"),
			encodeFields(ev.Meta),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Warn("audit export write", slog.Any("error", err))
	}
}

func encodeFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(data)
}

func parseFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	var filters TimelineFilters
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return TimelineFilters{}, shared.NewValidationError("from", "RFC3339 timestamp required")
		}
		filters.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return TimelineFilters{}, shared.NewValidationError("to", "RFC3339 timestamp required")
		}
		filters.To = t
	}
	if raw := q.Get("actor"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return TimelineFilters{}, shared.NewValidationError("actor", "positive integer id required")
		}
		filters.Actor = id
	}
	filters.Entity = q.Get("entity")
	filters.Action = q.Get("action")
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return TimelineFilters{}, shared.NewValidationError("page", "positive page number required")
		}
		filters.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return TimelineFilters{}, shared.NewValidationError("page_size", "positive page size required")
		}
		filters.PageSize = size
	}
	return filters, nil
}
