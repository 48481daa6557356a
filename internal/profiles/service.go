package profiles

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/audit"
	"github.com/havenlink/havenlink/internal/guard"
	"github.com/havenlink/havenlink/internal/shared"
)

// Service owns the profile lifecycle. Every affiliation transition runs
// through the mutation guard and is audited; registration, which happens
// before any permission exists, is audited directly.
type Service struct {
	repo     Repository
	guard    *guard.Guard
	recorder guard.Recorder
}

// NewService constructs a Service.
func NewService(repo Repository, g *guard.Guard, recorder guard.Recorder) *Service {
	return &Service{repo: repo, guard: g, recorder: recorder}
}

// StatusForIdentity implements access.ProfileSource: approval state for the
// builder, with found=false for identities that have not registered yet.
func (s *Service) StatusForIdentity(ctx context.Context, identityID int64) (access.ProfileStatus, bool, error) {
	p, err := s.repo.GetByIdentity(ctx, identityID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return access.ProfileStatus{}, false, nil
		}
		return access.ProfileStatus{}, false, err
	}
	return access.ProfileStatus{ProfileID: p.ID, Approved: p.Status == StatusApproved}, true, nil
}

// Get fetches one profile.
func (s *Service) Get(ctx context.Context, id int64) (Profile, error) {
	return s.repo.Get(ctx, id)
}

// GetByIdentity fetches the caller's own profile.
func (s *Service) GetByIdentity(ctx context.Context, identityID int64) (Profile, error) {
	return s.repo.GetByIdentity(ctx, identityID)
}

// PendingQueue lists profiles awaiting moderation.
func (s *Service) PendingQueue(ctx context.Context) ([]Profile, error) {
	return s.repo.ListByStatus(ctx, StatusPending)
}

// RegisterInput carries first-login registration fields.
type RegisterInput struct {
	DisplayName    string `validate:"required,min=2,max=120"`
	Affiliation    string `validate:"required"`
	HomeOrgID      int64
	GovernmentRole string
}

// Register creates the pending profile on first login. Registration is the
// one profile mutation allowed before approval, so it is audited directly
// without a permission gate.
func (s *Service) Register(ctx context.Context, identityID int64, in RegisterInput) (Profile, error) {
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return Profile{}, shared.NewValidationError("display_name", "display name required")
	}
	if !ValidAffiliationType(in.Affiliation) {
		return Profile{}, shared.NewValidationError("affiliation_type", "unknown affiliation type")
	}
	if !ValidGovernmentRoleType(in.GovernmentRole) {
		return Profile{}, shared.NewValidationError("government_role", "unknown government role type")
	}
	if AffiliationType(in.Affiliation) == AffiliationGovernmentPartner && in.GovernmentRole == "" && in.HomeOrgID == 0 {
		return Profile{}, shared.NewValidationError("government_role", "government partners need a role type or home organization")
	}
	created, err := s.repo.Create(ctx, Profile{
		IdentityID:     identityID,
		DisplayName:    name,
		Affiliation:    AffiliationType(in.Affiliation),
		Status:         StatusPending,
		HomeOrgID:      in.HomeOrgID,
		GovernmentRole: GovernmentRoleType(in.GovernmentRole),
	})
	if err != nil {
		return Profile{}, err
	}
	if s.recorder != nil {
		ev := audit.Event{
			ActorProfile:  created.ID,
			Action:        "profile.register",
			Entity:        "profile",
			EntityID:      strconv.FormatInt(created.ID, 10),
			ChangedFields: []string{"affiliation_type", "display_name"},
			Meta:          map[string]any{"affiliation_type": string(created.Affiliation)},
		}
		// Registration is already committed; a lost event is operational only.
		_ = s.recorder.Record(ctx, ev)
	}
	return created, nil
}

// Approve moves a pending profile to approved. Non-community affiliations
// must carry an organization or government-role resolution before approval.
func (s *Service) Approve(ctx context.Context, actor *access.Context, profileID int64) (Profile, error) {
	return s.transition(ctx, actor, profileID, StatusApproved, "profile.approve", shared.PermProfilesApprove)
}

// Decline moves a pending profile to revoked.
func (s *Service) Decline(ctx context.Context, actor *access.Context, profileID int64) (Profile, error) {
	return s.transition(ctx, actor, profileID, StatusRevoked, "profile.decline", shared.PermProfilesApprove)
}

// Revoke archives an approved profile.
func (s *Service) Revoke(ctx context.Context, actor *access.Context, profileID int64) (Profile, error) {
	return s.transition(ctx, actor, profileID, StatusRevoked, "profile.revoke", shared.PermProfilesRevoke)
}

func (s *Service) transition(ctx context.Context, actor *access.Context, profileID int64, to AffiliationStatus, action, permission string) (Profile, error) {
	prior, err := s.repo.Get(ctx, profileID)
	if err != nil {
		return Profile{}, err
	}
	if !canTransition(prior.Status, to) {
		return Profile{}, shared.NewValidationError("affiliation_status",
			"cannot move from "+string(prior.Status)+" to "+string(to))
	}
	if to == StatusApproved && prior.Affiliation != AffiliationCommunityMember && prior.Affiliation != AffiliationClient {
		if prior.HomeOrgID == 0 && prior.GovernmentRole == "" {
			return Profile{}, shared.NewValidationError("home_org_id",
				"approval requires an organization or government-role resolution")
		}
	}
	var updated Profile
	_, err = s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     action,
		Entity:     "profile",
		Permission: permission,
		Prior:      map[string]any{"affiliation_status": string(prior.Status)},
		Apply: func(ctx context.Context) (guard.State, error) {
			p, err := s.repo.UpdateStatus(ctx, profileID, to)
			if err != nil {
				return guard.State{}, err
			}
			updated = p
			return guard.State{
				EntityID: strconv.FormatInt(profileID, 10),
				Fields:   map[string]any{"affiliation_status": string(p.Status)},
				Meta:     map[string]any{"affiliation_type": string(p.Affiliation)},
			}, nil
		},
	})
	if err != nil {
		return Profile{}, err
	}
	return updated, nil
}

// Rename updates the caller's own display name; self-service allowance only
// requires an authenticated context.
func (s *Service) Rename(ctx context.Context, actor *access.Context, name string) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, shared.NewValidationError("display_name", "display name required")
	}
	if actor == nil {
		return Profile{}, shared.ErrAuthenticationMissing
	}
	prior, err := s.repo.Get(ctx, actor.ProfileID())
	if err != nil {
		return Profile{}, err
	}
	var updated Profile
	_, err = s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "profile.rename",
		Entity:     "profile",
		Permission: shared.PermSelfView,
		Prior:      map[string]any{"display_name": prior.DisplayName},
		Apply: func(ctx context.Context) (guard.State, error) {
			p, err := s.repo.UpdateDisplayName(ctx, prior.ID, name)
			if err != nil {
				return guard.State{}, err
			}
			updated = p
			return guard.State{
				EntityID: strconv.FormatInt(p.ID, 10),
				Fields:   map[string]any{"display_name": p.DisplayName},
			}, nil
		},
	})
	if err != nil {
		return Profile{}, err
	}
	return updated, nil
}
