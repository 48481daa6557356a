package orgs

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/guard"
	"github.com/havenlink/havenlink/internal/shared"
)

// Service orchestrates organization lifecycle. Mutations are restricted to
// elevated admins; no role-granted permission substitutes for the flag.
type Service struct {
	repo  Repository
	guard *guard.Guard
}

// NewService constructs a Service.
func NewService(repo Repository, g *guard.Guard) *Service {
	return &Service{repo: repo, guard: g}
}

// CreateInput carries the fields for a new organization.
type CreateInput struct {
	Name            string `validate:"required,min=2"`
	Status          string `validate:"required"`
	Type            string
	PartnershipType string
	Features        []string
}

// List returns all organizations.
func (s *Service) List(ctx context.Context) ([]Organization, error) {
	return s.repo.List(ctx)
}

// Get fetches one organization.
func (s *Service) Get(ctx context.Context, id int64) (Organization, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts an organization. Elevated admins only.
func (s *Service) Create(ctx context.Context, actor *access.Context, in CreateInput) (Organization, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Organization{}, shared.NewValidationError("name", "organization name required")
	}
	if !ValidStatus(in.Status) {
		return Organization{}, shared.NewValidationError("status", "unknown organization status")
	}
	org := Organization{
		Name:            name,
		Status:          Status(in.Status),
		Type:            strings.TrimSpace(in.Type),
		PartnershipType: strings.TrimSpace(in.PartnershipType),
		Features:        normalizeFeatures(in.Features),
		IsActive:        Status(in.Status) == StatusActive,
	}
	var created Organization
	_, err := s.guard.Run(ctx, guard.Mutation{
		Actor:        actor,
		Action:       "organization.create",
		Entity:       "organization",
		Permission:   shared.PermOrgsManage,
		ElevatedOnly: true,
		Apply: func(ctx context.Context) (guard.State, error) {
			out, err := s.repo.Create(ctx, org)
			if err != nil {
				return guard.State{}, err
			}
			created = out
			return guard.State{
				EntityID: strconv.FormatInt(out.ID, 10),
				Fields:   orgFields(out),
			}, nil
		},
	})
	if err != nil {
		return Organization{}, err
	}
	return created, nil
}

// UpdateInput carries mutable organization fields.
type UpdateInput struct {
	Name            string
	Status          string
	Type            string
	PartnershipType string
	Features        []string
}

// Update rewrites an organization. Deactivation takes effect immediately:
// members lose acting eligibility on their next request.
func (s *Service) Update(ctx context.Context, actor *access.Context, id int64, in UpdateInput) (Organization, error) {
	if !ValidStatus(in.Status) {
		return Organization{}, shared.NewValidationError("status", "unknown organization status")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Organization{}, shared.NewValidationError("name", "organization name required")
	}
	prior, err := s.repo.Get(ctx, id)
	if err != nil {
		return Organization{}, err
	}
	next := Organization{
		ID:              id,
		Name:            name,
		Status:          Status(in.Status),
		Type:            strings.TrimSpace(in.Type),
		PartnershipType: strings.TrimSpace(in.PartnershipType),
		Features:        normalizeFeatures(in.Features),
		IsActive:        Status(in.Status) == StatusActive,
	}
	var updated Organization
	_, err = s.guard.Run(ctx, guard.Mutation{
		Actor:        actor,
		Action:       "organization.update",
		Entity:       "organization",
		Permission:   shared.PermOrgsManage,
		ElevatedOnly: true,
		Prior:        orgFields(prior),
		Apply: func(ctx context.Context) (guard.State, error) {
			out, err := s.repo.Update(ctx, next)
			if err != nil {
				return guard.State{}, err
			}
			updated = out
			return guard.State{
				EntityID: strconv.FormatInt(out.ID, 10),
				Fields:   orgFields(out),
			}, nil
		},
	})
	if err != nil {
		return Organization{}, err
	}
	return updated, nil
}

func normalizeFeatures(features []string) []string {
	seen := make(map[string]struct{}, len(features))
	var out []string
	for _, f := range features {
		f = strings.TrimSpace(strings.ToLower(f))
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func orgFields(org Organization) map[string]any {
	return map[string]any{
		"name":             org.Name,
		"status":           string(org.Status),
		"org_type":         org.Type,
		"partnership_type": org.PartnershipType,
		"features":         strings.Join(org.Features, ","),
		"is_active":        org.IsActive,
	}
}
