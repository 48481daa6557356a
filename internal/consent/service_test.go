package consent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/audit"
	"github.com/havenlink/havenlink/internal/guard"
	"github.com/havenlink/havenlink/internal/shared"
)

type memRepo struct {
	grants map[int64][]Grant
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{grants: map[int64][]Grant{}}
}

func (m *memRepo) Active(ctx context.Context, subjectProfileID int64) (*Grant, error) {
	for i := len(m.grants[subjectProfileID]) - 1; i >= 0; i-- {
		g := m.grants[subjectProfileID][i]
		if g.SupersededAt == nil {
			return &g, nil
		}
	}
	return nil, nil
}

func (m *memRepo) History(ctx context.Context, subjectProfileID int64) ([]Grant, error) {
	history := m.grants[subjectProfileID]
	out := make([]Grant, len(history))
	for i, g := range history {
		out[len(history)-1-i] = g
	}
	return out, nil
}

func (m *memRepo) Supersede(ctx context.Context, g Grant) (Grant, error) {
	now := time.Now()
	for i := range m.grants[g.SubjectProfile] {
		if m.grants[g.SubjectProfile][i].SupersededAt == nil {
			m.grants[g.SubjectProfile][i].SupersededAt = &now
		}
	}
	m.nextID++
	g.ID = m.nextID
	g.CreatedAt = now
	m.grants[g.SubjectProfile] = append(m.grants[g.SubjectProfile], g)
	return g, nil
}

type captureRecorder struct {
	events []audit.Event
}

func (r *captureRecorder) Record(ctx context.Context, ev audit.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func consentManagerAt(orgID int64) *access.Context {
	return access.NewContext(access.ContextParams{
		IdentityID:  1,
		ProfileID:   2,
		Approved:    true,
		ActingOrgID: orgID,
		StaffRole:   true,
		Permissions: []string{shared.PermConsentManage},
	})
}

func newTestService() (*Service, *memRepo, *captureRecorder) {
	repo := newMemRepo()
	rec := &captureRecorder{}
	return NewService(repo, guard.New(rec, nil, nil, nil)), repo, rec
}

func validCapture(subject int64) CaptureInput {
	return CaptureInput{
		SubjectProfile: subject,
		Scope:          string(ScopeAllOrgs),
		Method:         "verbal",
		StaffAttested:  true,
		PolicyVersion:  "2026-01",
	}
}

func TestCaptureSupersedesActiveGrant(t *testing.T) {
	svc, repo, rec := newTestService()
	actor := consentManagerAt(5)

	first, err := svc.Capture(context.Background(), actor, validCapture(9))
	require.NoError(t, err)

	in := validCapture(9)
	in.Scope = string(ScopeSelectedOrgs)
	in.AllowedOrgIDs = []int64{5, 6}
	second, err := svc.Capture(context.Background(), actor, in)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	active, err := svc.ActiveGrant(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, second.ID, active.ID)
	require.Equal(t, ScopeSelectedOrgs, active.Scope)

	history, err := svc.History(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, repo.grants[9][0].SupersededAt)

	require.Len(t, rec.events, 2)
	require.Equal(t, first.ID, rec.events[1].Meta["superseded_grant_id"])
}

func TestCaptureIdenticalScopeStillAudits(t *testing.T) {
	svc, _, rec := newTestService()
	actor := consentManagerAt(5)

	_, err := svc.Capture(context.Background(), actor, validCapture(9))
	require.NoError(t, err)
	// A re-declaration inserts a new grant row; it audits even though the
	// declared scope did not change.
	_, err = svc.Capture(context.Background(), actor, validCapture(9))
	require.NoError(t, err)
	require.Len(t, rec.events, 2)
}

func TestCaptureScopeAllowListInvariants(t *testing.T) {
	svc, _, _ := newTestService()
	actor := consentManagerAt(5)
	var verr *shared.ValidationError

	in := validCapture(9)
	in.Scope = string(ScopeSelectedOrgs)
	_, err := svc.Capture(context.Background(), actor, in)
	require.ErrorAs(t, err, &verr)

	in = validCapture(9)
	in.AllowedOrgIDs = []int64{5}
	_, err = svc.Capture(context.Background(), actor, in)
	require.ErrorAs(t, err, &verr)

	in = validCapture(9)
	in.Scope = "everyone"
	_, err = svc.Capture(context.Background(), actor, in)
	require.ErrorAs(t, err, &verr)
}

func TestCaptureRequiresActingOrg(t *testing.T) {
	svc, repo, _ := newTestService()

	noOrg := access.NewContext(access.ContextParams{
		IdentityID:  1,
		ProfileID:   2,
		Approved:    true,
		Permissions: []string{shared.PermConsentManage},
	})
	_, err := svc.Capture(context.Background(), noOrg, validCapture(9))
	require.ErrorIs(t, err, shared.ErrOrganizationNotSelected)
	require.Empty(t, repo.grants[9])
}

func TestActiveGrantNilWhenNoneOnFile(t *testing.T) {
	svc, _, _ := newTestService()
	grant, err := svc.ActiveGrant(context.Background(), 77)
	require.NoError(t, err)
	require.Nil(t, grant)
}
