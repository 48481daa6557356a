package records

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/consent"
	"github.com/havenlink/havenlink/internal/guard"
	"github.com/havenlink/havenlink/internal/ratelimit"
	"github.com/havenlink/havenlink/internal/shared"
)

// Self-claim limits: attempts per contact fingerprint inside one window.
const (
	SelfClaimEvent  = "record.self_claim"
	SelfClaimLimit  = 3
	SelfClaimWindow = 15 * time.Minute
)

// GrantSource loads the subject's active consent grant. Grants are read fresh
// per decision, never cached.
type GrantSource interface {
	ActiveGrant(ctx context.Context, subjectProfileID int64) (*consent.Grant, error)
}

// Service owns client records: guarded writes scoped to the acting
// organization, and reads filtered through the visibility evaluator.
type Service struct {
	repo   Repository
	grants GrantSource
	guard  *guard.Guard
}

// NewService constructs a Service.
func NewService(repo Repository, grants GrantSource, g *guard.Guard) *Service {
	return &Service{repo: repo, grants: grants, guard: g}
}

// Get returns the record if the actor may read it. Subjects read their own
// records directly; anyone else needs the record-view permission and a pass
// from the visibility evaluator.
func (s *Service) Get(ctx context.Context, actor *access.Context, id int64) (Record, error) {
	if actor == nil {
		return Record{}, shared.ErrAuthenticationMissing
	}
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.SubjectProfile != 0 && actor.ProfileID() == rec.SubjectProfile {
		return rec, nil
	}
	if !actor.Has(shared.PermRecordsView) {
		return Record{}, shared.ErrPermissionDenied
	}
	grant, err := s.grantFor(ctx, rec.SubjectProfile)
	if err != nil {
		return Record{}, err
	}
	if err := consent.CanRead(actor, rec.Resource(), grant); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListForSubject returns the subject's records the actor may see. Records the
// evaluator rejects are filtered out, not surfaced as errors.
func (s *Service) ListForSubject(ctx context.Context, actor *access.Context, subjectProfileID int64) ([]Record, error) {
	if actor == nil {
		return nil, shared.ErrAuthenticationMissing
	}
	if !actor.Has(shared.PermRecordsView) && actor.ProfileID() != subjectProfileID {
		return nil, shared.ErrPermissionDenied
	}
	all, err := s.repo.ListBySubject(ctx, subjectProfileID)
	if err != nil {
		return nil, shared.Infra("records: list by subject", err)
	}
	grant, err := s.grantFor(ctx, subjectProfileID)
	if err != nil {
		return nil, err
	}
	visible := make([]Record, 0, len(all))
	for _, rec := range all {
		// Subjects always see their own records.
		if actor.ProfileID() == subjectProfileID {
			visible = append(visible, rec)
			continue
		}
		if consent.CanRead(actor, rec.Resource(), grant) == nil {
			visible = append(visible, rec)
		}
	}
	return visible, nil
}

// CreateInput carries the fields for a new client record.
type CreateInput struct {
	SubjectProfile     int64
	Category           string `validate:"required"`
	Visibility         string `validate:"required"`
	Sensitivity        string `validate:"required"`
	Source             string `validate:"required"`
	Summary            string `validate:"required,max=500"`
	Details            string
	ContactFingerprint string
}

// Create inserts a record owned by the acting organization. The owning org
// must be active at creation time.
func (s *Service) Create(ctx context.Context, actor *access.Context, in CreateInput) (Record, error) {
	if err := validateEnums(in.Category, in.Visibility, in.Sensitivity, in.Source); err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(in.Summary) == "" {
		return Record{}, shared.NewValidationError("summary", "summary required")
	}
	var created Record
	_, err := s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "client_record.create",
		Entity:     "client_record",
		Permission: shared.PermRecordsEdit,
		OrgScoped:  true,
		Apply: func(ctx context.Context) (guard.State, error) {
			rec, err := s.repo.Create(ctx, Record{
				SubjectProfile:     in.SubjectProfile,
				OwningOrgID:        actor.ActingOrgID(),
				Category:           Category(in.Category),
				Visibility:         consent.Visibility(in.Visibility),
				Sensitivity:        consent.Sensitivity(in.Sensitivity),
				Source:             Source(in.Source),
				VerificationStatus: "unverified",
				Status:             StatusActive,
				Summary:            strings.TrimSpace(in.Summary),
				Details:            in.Details,
				ContactFingerprint: strings.TrimSpace(in.ContactFingerprint),
				CreatedBy:          actor.ProfileID(),
				UpdatedBy:          actor.ProfileID(),
			})
			if err != nil {
				return guard.State{}, err
			}
			created = rec
			return guard.State{
				EntityID: strconv.FormatInt(rec.ID, 10),
				Fields:   recordFields(rec),
				Meta:     map[string]any{"owning_org_id": rec.OwningOrgID},
			}, nil
		},
	})
	if err != nil {
		return Record{}, err
	}
	return created, nil
}

// UpdateInput carries the mutable record fields.
type UpdateInput struct {
	Visibility         string
	Sensitivity        string
	VerificationStatus string
	Status             string
	Summary            string
	Details            string
}

// Update rewrites a record. Cross-tenant consent visibility never grants
// write access; only the owning tenant (or an elevated admin) may edit.
func (s *Service) Update(ctx context.Context, actor *access.Context, id int64, in UpdateInput) (Record, error) {
	if !consent.ValidVisibility(in.Visibility) {
		return Record{}, shared.NewValidationError("visibility_scope", "unknown visibility scope")
	}
	if !consent.ValidSensitivity(in.Sensitivity) {
		return Record{}, shared.NewValidationError("sensitivity_level", "unknown sensitivity level")
	}
	prior, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	grant, err := s.grantFor(ctx, prior.SubjectProfile)
	if err != nil {
		return Record{}, err
	}
	if err := consent.CanWrite(actor, prior.Resource(), grant); err != nil {
		return Record{}, err
	}
	next := prior
	next.Visibility = consent.Visibility(in.Visibility)
	next.Sensitivity = consent.Sensitivity(in.Sensitivity)
	if in.VerificationStatus != "" {
		next.VerificationStatus = in.VerificationStatus
	}
	if in.Status != "" {
		next.Status = Status(in.Status)
	}
	if strings.TrimSpace(in.Summary) != "" {
		next.Summary = strings.TrimSpace(in.Summary)
	}
	if in.Details != "" {
		next.Details = in.Details
	}
	next.UpdatedBy = actor.ProfileID()

	var updated Record
	_, err = s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "client_record.update",
		Entity:     "client_record",
		Permission: shared.PermRecordsEdit,
		OrgScoped:  true,
		Prior:      recordFields(prior),
		Apply: func(ctx context.Context) (guard.State, error) {
			rec, err := s.repo.Update(ctx, next)
			if err != nil {
				return guard.State{}, err
			}
			updated = rec
			return guard.State{
				EntityID: strconv.FormatInt(rec.ID, 10),
				Fields:   recordFields(rec),
			}, nil
		},
	})
	if err != nil {
		return Record{}, err
	}
	return updated, nil
}

// Supersede replaces a record with a corrected one; the original keeps its
// history and points at the successor.
func (s *Service) Supersede(ctx context.Context, actor *access.Context, id int64, in CreateInput) (Record, error) {
	prior, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	grant, err := s.grantFor(ctx, prior.SubjectProfile)
	if err != nil {
		return Record{}, err
	}
	if err := consent.CanWrite(actor, prior.Resource(), grant); err != nil {
		return Record{}, err
	}
	if in.SubjectProfile == 0 {
		in.SubjectProfile = prior.SubjectProfile
	}
	replacement, err := s.Create(ctx, actor, in)
	if err != nil {
		return Record{}, err
	}
	_, err = s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "client_record.supersede",
		Entity:     "client_record",
		Permission: shared.PermRecordsEdit,
		OrgScoped:  true,
		Prior:      map[string]any{"status": string(prior.Status), "superseded_by": prior.SupersededBy},
		Apply: func(ctx context.Context) (guard.State, error) {
			if err := s.repo.MarkSuperseded(ctx, id, replacement.ID); err != nil {
				return guard.State{}, err
			}
			return guard.State{
				EntityID: strconv.FormatInt(id, 10),
				Fields:   map[string]any{"status": string(StatusSuperseded), "superseded_by": replacement.ID},
			}, nil
		},
	})
	if err != nil {
		return Record{}, err
	}
	return replacement, nil
}

// Flag marks a record as disputed without altering its content.
func (s *Service) Flag(ctx context.Context, actor *access.Context, id int64, reason string) (Record, error) {
	prior, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	grant, err := s.grantFor(ctx, prior.SubjectProfile)
	if err != nil {
		return Record{}, err
	}
	if err := consent.CanWrite(actor, prior.Resource(), grant); err != nil {
		return Record{}, err
	}
	next := prior
	next.Status = StatusFlagged
	next.UpdatedBy = actor.ProfileID()

	var flagged Record
	_, err = s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "client_record.flag",
		Entity:     "client_record",
		Permission: shared.PermRecordsEdit,
		OrgScoped:  true,
		Prior:      map[string]any{"status": string(prior.Status)},
		Apply: func(ctx context.Context) (guard.State, error) {
			rec, err := s.repo.Update(ctx, next)
			if err != nil {
				return guard.State{}, err
			}
			flagged = rec
			return guard.State{
				EntityID: strconv.FormatInt(rec.ID, 10),
				Fields:   map[string]any{"status": string(rec.Status)},
				Meta:     map[string]any{"reason": strings.TrimSpace(reason)},
			}, nil
		},
	})
	if err != nil {
		return Record{}, err
	}
	return flagged, nil
}

// SelfClaim links unclaimed records matching the caller's contact fingerprint
// to the caller's profile. The check is rate limited per fingerprint to slow
// down enumeration.
func (s *Service) SelfClaim(ctx context.Context, actor *access.Context, fingerprint string) ([]Record, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return nil, shared.NewValidationError("contact_fingerprint", "fingerprint required")
	}
	var claimed []Record
	_, err := s.guard.Run(ctx, guard.Mutation{
		Actor:      actor,
		Action:     "client_record.self_claim",
		Entity:     "client_record",
		Permission: shared.PermSelfView,
		Quota: &ratelimit.Quota{
			Event:  SelfClaimEvent,
			Key:    fingerprint,
			Limit:  SelfClaimLimit,
			Window: SelfClaimWindow,
		},
		// An attempt that claims nothing diffs empty and emits no event.
		Prior: map[string]any{"claimed_records": ""},
		Apply: func(ctx context.Context) (guard.State, error) {
			candidates, err := s.repo.FindUnclaimed(ctx, fingerprint)
			if err != nil {
				return guard.State{}, err
			}
			ids := make([]string, 0, len(candidates))
			for _, rec := range candidates {
				if err := s.repo.Claim(ctx, rec.ID, actor.ProfileID()); err != nil {
					if errors.Is(err, shared.ErrConflict) {
						// Raced another claim; skip.
						continue
					}
					return guard.State{}, err
				}
				rec.SubjectProfile = actor.ProfileID()
				claimed = append(claimed, rec)
				ids = append(ids, strconv.FormatInt(rec.ID, 10))
			}
			return guard.State{
				EntityID: fingerprintEntityID(fingerprint),
				Fields:   map[string]any{"claimed_records": strings.Join(ids, ",")},
				Meta:     map[string]any{"claimed_count": len(claimed)},
			}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *Service) grantFor(ctx context.Context, subjectProfileID int64) (*consent.Grant, error) {
	if subjectProfileID == 0 {
		return nil, nil
	}
	return s.grants.ActiveGrant(ctx, subjectProfileID)
}

func validateEnums(category, visibility, sensitivity, source string) error {
	if !ValidCategory(category) {
		return shared.NewValidationError("category", "unknown record category")
	}
	if !consent.ValidVisibility(visibility) {
		return shared.NewValidationError("visibility_scope", "unknown visibility scope")
	}
	if !consent.ValidSensitivity(sensitivity) {
		return shared.NewValidationError("sensitivity_level", "unknown sensitivity level")
	}
	if !ValidSource(source) {
		return shared.NewValidationError("source", "unknown record source")
	}
	return nil
}

func fingerprintEntityID(fingerprint string) string {
	if len(fingerprint) > 12 {
		return "fp:" + fingerprint[:12]
	}
	return "fp:" + fingerprint
}

func recordFields(rec Record) map[string]any {
	return map[string]any{
		"category":            string(rec.Category),
		"visibility_scope":    string(rec.Visibility),
		"sensitivity_level":   string(rec.Sensitivity),
		"source":              string(rec.Source),
		"verification_status": rec.VerificationStatus,
		"status":              string(rec.Status),
		"summary":             rec.Summary,
		"details":             rec.Details,
	}
}
