package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository over the audit_events table.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// TimelineWindow returns one page of events, newest first.
func (r *PGRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Event, error) {
	query, args := buildTimelineQuery(filters)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC OFFSET $%d LIMIT $%d", len(args)+1, len(args)+2)
	args = append(args, offset, limit)
	return r.query(ctx, query, args)
}

// TimelineAll returns every matching event, newest first.
func (r *PGRepository) TimelineAll(ctx context.Context, filters TimelineFilters) ([]Event, error) {
	query, args := buildTimelineQuery(filters)
	query += " ORDER BY occurred_at DESC, id DESC"
	return r.query(ctx, query, args)
}

func buildTimelineQuery(filters TimelineFilters) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at <= $%d", filters.To)
	}
	if filters.Actor != 0 {
		add("actor_profile_id = $%d", filters.Actor)
	}
	if strings.TrimSpace(filters.Entity) != "" {
		add("entity = $%d", strings.TrimSpace(filters.Entity))
	}
	if strings.TrimSpace(filters.Action) != "" {
		add("action = $%d", strings.TrimSpace(filters.Action))
	}
	query := `SELECT id, actor_profile_id, action, entity, entity_id, changed_fields, meta, occurred_at FROM audit_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	return query, args
}

func (r *PGRepository) query(ctx context.Context, query string, args []any) ([]Event, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var ev Event
		var changed, meta []byte
		if err := rows.Scan(&ev.ID, &ev.ActorProfile, &ev.Action, &ev.Entity, &ev.EntityID, &changed, &meta, &ev.At); err != nil {
			return nil, err
		}
		if len(changed) > 0 {
			if err := json.Unmarshal(changed, &ev.ChangedFields); err != nil {
				return nil, err
			}
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &ev.Meta); err != nil {
				return nil, err
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
