package invites

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/audit"
	"github.com/havenlink/havenlink/internal/guard"
	"github.com/havenlink/havenlink/internal/ratelimit"
	"github.com/havenlink/havenlink/internal/shared"
)

// Issue limits per issuing actor inside one window.
const (
	IssueEvent  = "invite.issue"
	IssueLimit  = 10
	IssueWindow = time.Hour
)

// Enqueuer dispatches the invite email after the row is committed.
type Enqueuer interface {
	EnqueueInviteMail(ctx context.Context, email, token string, orgID int64) error
}

// Service issues and redeems organization invites.
type Service struct {
	repo     Repository
	guard    *guard.Guard
	recorder guard.Recorder
	mail     Enqueuer
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, g *guard.Guard, recorder guard.Recorder, mail Enqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, guard: g, recorder: recorder, mail: mail, logger: logger, now: time.Now}
}

// IssueInput carries the fields for a new invite.
type IssueInput struct {
	Email  string `validate:"required,email"`
	RoleID int64  `validate:"required"`
	TTL    time.Duration
}

// Issue creates an invite for the acting organization and queues the mail.
// Mail dispatch happens after commit; a failed enqueue is logged, not rolled
// back.
func (s *Service) Issue(ctx context.Context, actor *access.Context, in IssueInput) (Invite, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return Invite{}, shared.NewValidationError("email", "valid email required")
	}
	if in.RoleID == 0 {
		return Invite{}, shared.NewValidationError("role_id", "role required")
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	var created Invite
	_, err := s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "invite.issue",
		Entity:     "invite",
		Permission: shared.PermInvitesIssue,
		OrgScoped:  true,
		Quota: &ratelimit.Quota{
			Event:  IssueEvent,
			Key:    strconv.FormatInt(actorProfileID(actor), 10),
			Limit:  IssueLimit,
			Window: IssueWindow,
		},
		Apply: func(ctx context.Context) (guard.State, error) {
			inv, err := s.repo.Create(ctx, Invite{
				Token:     uuid.NewString(),
				OrgID:     actor.ActingOrgID(),
				RoleID:    in.RoleID,
				Email:     email,
				IssuedBy:  actor.ProfileID(),
				ExpiresAt: s.now().Add(ttl),
			})
			if err != nil {
				return guard.State{}, err
			}
			created = inv
			return guard.State{
				EntityID: strconv.FormatInt(inv.ID, 10),
				Fields: map[string]any{
					"email":   inv.Email,
					"org_id":  inv.OrgID,
					"role_id": inv.RoleID,
				},
				Meta: map[string]any{"expires_at": inv.ExpiresAt.UTC().Format(time.RFC3339)},
			}, nil
		},
	})
	if err != nil {
		return Invite{}, err
	}
	if s.mail != nil {
		if err := s.mail.EnqueueInviteMail(ctx, created.Email, created.Token, created.OrgID); err != nil {
			s.logger.Warn("invite mail enqueue failed",
				slog.Int64("invite_id", created.ID), slog.Any("error", err))
		}
	}
	return created, nil
}

// Accept redeems a token for the caller's profile and creates the membership.
// Acceptance runs before the new membership grants any permission, so it is
// audited directly rather than through the permission-gated guard.
func (s *Service) Accept(ctx context.Context, profileID int64, token string) (Invite, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Invite{}, shared.NewValidationError("token", "token required")
	}
	if profileID == 0 {
		return Invite{}, shared.ErrAuthenticationMissing
	}
	now := s.now()
	inv, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return Invite{}, err
	}
	if inv.Accepted() {
		return Invite{}, shared.ErrConflict
	}
	if inv.Expired(now) {
		return Invite{}, shared.NewValidationError("token", "invite expired")
	}
	redeemed, err := s.repo.Redeem(ctx, token, profileID, now)
	if err != nil {
		return Invite{}, err
	}
	ev := audit.Event{
		ActorProfile:  profileID,
		Action:        "invite.accept",
		Entity:        "invite",
		EntityID:      strconv.FormatInt(redeemed.ID, 10),
		ChangedFields: []string{"accepted_by", "org_id", "role_id"},
		Meta: map[string]any{
			"accepted_by": profileID,
			"org_id":      redeemed.OrgID,
			"role_id":     redeemed.RoleID,
		},
		At: now,
	}
	// The membership is already committed; a lost event is operational only.
	if err := s.recorder.Record(ctx, ev); err != nil {
		s.logger.Warn("invite accept audit failed",
			slog.Int64("invite_id", redeemed.ID), slog.Any("error", err))
	}
	return redeemed, nil
}

func actorProfileID(actor *access.Context) int64 {
	if actor == nil {
		return 0
	}
	return actor.ProfileID()
}
