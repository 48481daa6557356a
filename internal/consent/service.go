package consent

import (
	"context"
	"strconv"
	"strings"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/guard"
	"github.com/havenlink/havenlink/internal/shared"
)

// Service owns consent grant capture and lookup. Grants are never cached
// across requests; staleness here is a security defect.
type Service struct {
	repo  Repository
	guard *guard.Guard
}

// NewService constructs a Service.
func NewService(repo Repository, g *guard.Guard) *Service {
	return &Service{repo: repo, guard: g}
}

// ActiveGrant returns the subject's current grant, or nil when none exists.
func (s *Service) ActiveGrant(ctx context.Context, subjectProfileID int64) (*Grant, error) {
	g, err := s.repo.Active(ctx, subjectProfileID)
	if err != nil {
		return nil, shared.Infra("consent: active grant", err)
	}
	return g, nil
}

// History returns the subject's full grant history, newest first.
func (s *Service) History(ctx context.Context, subjectProfileID int64) ([]Grant, error) {
	return s.repo.History(ctx, subjectProfileID)
}

// CaptureInput carries a new consent declaration.
type CaptureInput struct {
	SubjectProfile int64   `validate:"required"`
	Scope          string  `validate:"required"`
	AllowedOrgIDs  []int64 `validate:"-"`
	Method         string  `validate:"required"`
	StaffAttested  bool
	ClientAttested bool
	Notes          string
	PolicyVersion  string `validate:"required"`
}

// Capture records a new grant, superseding any active one. The scope and
// allow-list invariants hold at the boundary: selected_orgs requires a
// non-empty allow-list, every other scope an empty one.
func (s *Service) Capture(ctx context.Context, actor *access.Context, in CaptureInput) (Grant, error) {
	if !ValidScope(in.Scope) {
		return Grant{}, shared.NewValidationError("scope", "unknown consent scope")
	}
	scope := Scope(in.Scope)
	if scope == ScopeSelectedOrgs && len(in.AllowedOrgIDs) == 0 {
		return Grant{}, shared.NewValidationError("allowed_org_ids", "selected_orgs requires at least one organization")
	}
	if scope != ScopeSelectedOrgs && len(in.AllowedOrgIDs) > 0 {
		return Grant{}, shared.NewValidationError("allowed_org_ids", "allow-list only applies to selected_orgs")
	}
	if strings.TrimSpace(in.Method) == "" {
		return Grant{}, shared.NewValidationError("method", "capture method required")
	}

	prior, err := s.repo.Active(ctx, in.SubjectProfile)
	if err != nil {
		return Grant{}, shared.Infra("consent: active grant", err)
	}

	var created Grant
	_, err = s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "consent.capture",
		Entity:     "consent_grant",
		Permission: shared.PermConsentManage,
		OrgScoped:  true,
		// Every capture inserts a fresh grant row, so it audits as a create
		// even when the declared scope matches the superseded grant.
		Apply: func(ctx context.Context) (guard.State, error) {
			g, err := s.repo.Supersede(ctx, Grant{
				SubjectProfile: in.SubjectProfile,
				Scope:          scope,
				AllowedOrgIDs:  in.AllowedOrgIDs,
				Method:         strings.TrimSpace(in.Method),
				StaffAttested:  in.StaffAttested,
				ClientAttested: in.ClientAttested,
				Notes:          in.Notes,
				PolicyVersion:  in.PolicyVersion,
				CreatedBy:      actor.ProfileID(),
			})
			if err != nil {
				return guard.State{}, err
			}
			created = g
			state := guard.State{
				EntityID: strconv.FormatInt(g.ID, 10),
				Fields:   grantFields(&g),
				Meta:     map[string]any{"subject_profile_id": g.SubjectProfile},
			}
			if prior != nil {
				state.Meta["superseded_grant_id"] = prior.ID
			}
			return state, nil
		},
	})
	if err != nil {
		return Grant{}, err
	}
	return created, nil
}

func grantFields(g *Grant) map[string]any {
	if g == nil {
		return nil
	}
	allowed := make([]string, 0, len(g.AllowedOrgIDs))
	for _, id := range g.AllowedOrgIDs {
		allowed = append(allowed, strconv.FormatInt(id, 10))
	}
	return map[string]any{
		"scope":           string(g.Scope),
		"allowed_org_ids": strings.Join(allowed, ","),
		"method":          g.Method,
		"staff_attested":  g.StaffAttested,
		"client_attested": g.ClientAttested,
		"policy_version":  g.PolicyVersion,
	}
}
