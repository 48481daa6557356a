// Package guard wraps every privileged state change: it re-validates the
// caller's AccessContext, runs the mutation-specific permission check, applies
// the write, diffs prior against new state and emits exactly one audit event
// per effective change.
package guard

import (
	"context"
	"log/slog"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/audit"
	"github.com/havenlink/havenlink/internal/observability"
	"github.com/havenlink/havenlink/internal/ratelimit"
	"github.com/havenlink/havenlink/internal/shared"
)

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, ev audit.Event) error
}

// Limiter checks durable rate limits.
type Limiter interface {
	Allow(ctx context.Context, q ratelimit.Quota) (ratelimit.Decision, error)
}

// State is the post-mutation snapshot a mutation reports back: the entity
// reference plus the field values the diff is computed over.
type State struct {
	EntityID string
	Fields   map[string]any
	Meta     map[string]any
}

// Mutation describes one guarded write.
type Mutation struct {
	Actor      *access.Context
	Action     string
	Entity     string
	Permission string
	// OrgScoped mutations require an acting organization.
	OrgScoped bool
	// ElevatedOnly restricts the mutation to elevated admins; holding the
	// permission through a role is not enough.
	ElevatedOnly bool
	// Quota, when set, is consumed before the permission-gated write runs.
	Quota *ratelimit.Quota
	// Prior is the pre-mutation field snapshot; nil marks a create.
	Prior map[string]any
	// Apply performs the write and returns the new state. It runs only after
	// every check has passed; a failed check never reaches the store.
	Apply func(ctx context.Context) (State, error)
}

// Guard executes guarded mutations.
type Guard struct {
	recorder Recorder
	limiter  Limiter
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New constructs a Guard.
func New(recorder Recorder, limiter Limiter, logger *slog.Logger, metrics *observability.Metrics) *Guard {
	return &Guard{recorder: recorder, limiter: limiter, logger: logger, metrics: metrics}
}

// Run validates, applies and audits one mutation. On success it returns the
// state reported by Apply. A no-op update (empty diff) succeeds without
// writing an audit event. Audit-write failures after the mutation committed
// are logged and counted, never rolled back.
func (g *Guard) Run(ctx context.Context, m Mutation) (State, error) {
	if err := g.check(ctx, m); err != nil {
		return State{}, err
	}

	state, err := m.Apply(ctx)
	if err != nil {
		return State{}, err
	}

	changed := Diff(m.Prior, state.Fields)
	if m.Prior != nil && len(changed) == 0 {
		return state, nil
	}

	ev := audit.Event{
		ActorProfile:  m.Actor.ProfileID(),
		Action:        m.Action,
		Entity:        m.Entity,
		EntityID:      state.EntityID,
		ChangedFields: changed,
		Meta:          state.Meta,
	}
	if err := g.recorder.Record(ctx, ev); err != nil {
		g.metrics.AuditWriteFailed()
		if g.logger != nil {
			g.logger.Error("audit write failed after committed mutation",
				slog.String("action", m.Action),
				slog.String("entity", m.Entity),
				slog.String("entity_id", state.EntityID),
				slog.Any("error", err))
		}
	}
	return state, nil
}

func (g *Guard) check(ctx context.Context, m Mutation) error {
	if m.Actor == nil {
		return shared.ErrAuthenticationMissing
	}
	if !m.Actor.Approved() {
		g.metrics.AuthzDenied("profile_not_approved")
		return shared.ErrProfileNotApproved
	}
	if m.OrgScoped {
		if err := m.Actor.RequireOrg(); err != nil {
			g.metrics.AuthzDenied("organization_not_selected")
			return err
		}
	}
	if m.ElevatedOnly && !m.Actor.ElevatedAdmin() {
		g.metrics.AuthzDenied("elevated_only")
		return shared.ErrPermissionDenied
	}
	if m.Permission != "" && !m.Actor.Has(m.Permission) {
		g.metrics.AuthzDenied("permission")
		return shared.ErrPermissionDenied
	}
	if m.Quota != nil {
		decision, err := g.limiter.Allow(ctx, *m.Quota)
		if err != nil {
			return shared.Infra("guard: rate limit check", err)
		}
		if !decision.Allowed {
			g.metrics.RateLimitTripped(m.Quota.Event)
			return &shared.RateLimitedError{RetryAfter: decision.RetryAfter}
		}
	}
	return nil
}
