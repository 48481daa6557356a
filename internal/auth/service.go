package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/havenlink/havenlink/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials. All failure modes
// collapse to ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	id, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !id.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(id.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return id, nil
}

// Register creates a new identity with a bcrypt hashed password.
func (s *Service) Register(ctx context.Context, email, password string) (*Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, shared.NewValidationError("email", "valid email required")
	}
	if len(password) < 8 {
		return nil, shared.NewValidationError("password", "minimum 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, shared.Infra("auth: hash password", err)
	}
	id, err := s.repo.Create(ctx, email, string(hash))
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return nil, shared.ErrConflict
		}
		return nil, shared.Infra("auth: create identity", err)
	}
	return id, nil
}

// RegisterSession persists session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, identityID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, identityID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
