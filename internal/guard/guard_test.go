package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/audit"
	"github.com/havenlink/havenlink/internal/ratelimit"
	"github.com/havenlink/havenlink/internal/shared"
)

type stubRecorder struct {
	events []audit.Event
	err    error
}

func (s *stubRecorder) Record(ctx context.Context, ev audit.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

type stubLimiter struct {
	decision ratelimit.Decision
	quotas   []ratelimit.Quota
}

func (s *stubLimiter) Allow(ctx context.Context, q ratelimit.Quota) (ratelimit.Decision, error) {
	s.quotas = append(s.quotas, q)
	return s.decision, nil
}

func testActor(perms ...string) *access.Context {
	return access.NewContext(access.ContextParams{
		IdentityID:  1,
		ProfileID:   7,
		Approved:    true,
		ActingOrgID: 3,
		StaffRole:   true,
		Permissions: perms,
	})
}

func TestRunRecordsExactlyOneEvent(t *testing.T) {
	rec := &stubRecorder{}
	g := New(rec, &stubLimiter{decision: ratelimit.Decision{Allowed: true}}, nil, nil)

	state, err := g.Run(context.Background(), Mutation{
		Actor:      testActor("records.edit"),
		Action:     "client_record.create",
		Entity:     "client_record",
		Permission: "records.edit",
		Apply: func(ctx context.Context) (State, error) {
			return State{EntityID: "42", Fields: map[string]any{"summary": "x", "status": "active"}}, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, "42", state.EntityID)
	require.Len(t, rec.events, 1)
	require.Equal(t, int64(7), rec.events[0].ActorProfile)
	require.Equal(t, []string{"status", "summary"}, rec.events[0].ChangedFields)
}

func TestRunUpdateDiffsAgainstPrior(t *testing.T) {
	rec := &stubRecorder{}
	g := New(rec, nil, nil, nil)

	_, err := g.Run(context.Background(), Mutation{
		Actor:      testActor("records.edit"),
		Action:     "client_record.update",
		Entity:     "client_record",
		Permission: "records.edit",
		Prior:      map[string]any{"summary": "old", "status": "active"},
		Apply: func(ctx context.Context) (State, error) {
			return State{EntityID: "42", Fields: map[string]any{"summary": "new", "status": "active"}}, nil
		},
	})
	require.NoError(t, err)
	require.Len(t, rec.events, 1)
	require.Equal(t, []string{"summary"}, rec.events[0].ChangedFields)
}

func TestRunNoOpUpdateSkipsAudit(t *testing.T) {
	rec := &stubRecorder{}
	g := New(rec, nil, nil, nil)

	fields := map[string]any{"summary": "same", "status": "active"}
	_, err := g.Run(context.Background(), Mutation{
		Actor:      testActor("records.edit"),
		Action:     "client_record.update",
		Entity:     "client_record",
		Permission: "records.edit",
		Prior:      fields,
		Apply: func(ctx context.Context) (State, error) {
			return State{EntityID: "42", Fields: map[string]any{"summary": "same", "status": "active"}}, nil
		},
	})
	require.NoError(t, err)
	require.Empty(t, rec.events)
}

func TestRunChecksBeforeApply(t *testing.T) {
	rec := &stubRecorder{}
	g := New(rec, nil, nil, nil)
	applied := false
	apply := func(ctx context.Context) (State, error) {
		applied = true
		return State{EntityID: "1", Fields: map[string]any{}}, nil
	}

	_, err := g.Run(context.Background(), Mutation{Actor: nil, Action: "x", Entity: "y", Apply: apply})
	require.ErrorIs(t, err, shared.ErrAuthenticationMissing)

	unapproved := access.NewContext(access.ContextParams{IdentityID: 1, ProfileID: 2})
	_, err = g.Run(context.Background(), Mutation{Actor: unapproved, Action: "x", Entity: "y", Apply: apply})
	require.ErrorIs(t, err, shared.ErrProfileNotApproved)

	noOrg := access.NewContext(access.ContextParams{IdentityID: 1, ProfileID: 2, Approved: true})
	_, err = g.Run(context.Background(), Mutation{Actor: noOrg, Action: "x", Entity: "y", OrgScoped: true, Apply: apply})
	require.ErrorIs(t, err, shared.ErrOrganizationNotSelected)

	_, err = g.Run(context.Background(), Mutation{
		Actor: testActor(), Action: "x", Entity: "y", Permission: "roles.edit", Apply: apply,
	})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	_, err = g.Run(context.Background(), Mutation{
		Actor: testActor("roles.view"), Action: "x", Entity: "y", ElevatedOnly: true, Apply: apply,
	})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	require.False(t, applied)
	require.Empty(t, rec.events)
}

func TestRunQuotaDenied(t *testing.T) {
	rec := &stubRecorder{}
	lim := &stubLimiter{decision: ratelimit.Decision{Allowed: false, RetryAfter: 30 * time.Second}}
	g := New(rec, lim, nil, nil)
	applied := false

	_, err := g.Run(context.Background(), Mutation{
		Actor:  testActor("records.edit"),
		Action: "client_record.self_claim",
		Entity: "client_record",
		Quota:  &ratelimit.Quota{Event: "record.self_claim", Key: "fp", Limit: 3, Window: time.Minute},
		Apply: func(ctx context.Context) (State, error) {
			applied = true
			return State{}, nil
		},
	})
	var rl *shared.RateLimitedError
	require.ErrorAs(t, err, &rl)
	require.Equal(t, 30*time.Second, rl.RetryAfter)
	require.False(t, applied)
	require.Empty(t, rec.events)
}

func TestRunAuditFailureDoesNotRollBack(t *testing.T) {
	rec := &stubRecorder{err: errors.New("audit store down")}
	g := New(rec, nil, nil, nil)

	state, err := g.Run(context.Background(), Mutation{
		Actor:      testActor("records.edit"),
		Action:     "client_record.create",
		Entity:     "client_record",
		Permission: "records.edit",
		Apply: func(ctx context.Context) (State, error) {
			return State{EntityID: "9", Fields: map[string]any{"summary": "x"}}, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, "9", state.EntityID)
}

func TestDiff(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, Diff(nil, map[string]any{"b": 1, "a": 2}))
	require.Empty(t, Diff(map[string]any{"a": 1}, map[string]any{"a": 1}))
	require.Equal(t, []string{"a"}, Diff(map[string]any{"a": 1}, map[string]any{"a": 2}))
	require.Equal(t, []string{"gone"}, Diff(map[string]any{"a": 1, "gone": true}, map[string]any{"a": 1}))
}
