package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder persists audit events into the append-only audit_events table.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record persists the event. The changed-field list and metadata are stored as
// JSON alongside actor, action and entity reference.
func (r *Recorder) Record(ctx context.Context, ev Event) error {
	if r == nil {
		return errors.New("audit recorder not initialised")
	}
	if ev.Action == "" || ev.Entity == "" || ev.EntityID == "" {
		return errors.New("audit event requires action/entity/entity_id")
	}
	changed, err := json.Marshal(ev.ChangedFields)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(ev.Meta)
	if err != nil {
		return err
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_events (actor_profile_id, action, entity, entity_id, changed_fields, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, ev.ActorProfile, ev.Action, ev.Entity, ev.EntityID, changed, meta, at)
	return err
}
