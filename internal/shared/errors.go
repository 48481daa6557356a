package shared

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAuthenticationMissing indicates the request carries no identity.
	ErrAuthenticationMissing = errors.New("authentication missing")
	// ErrProfileNotApproved indicates the identity exists but its profile is not approved.
	ErrProfileNotApproved = errors.New("profile not approved")
	// ErrOrganizationNotSelected indicates an org-scoped call with no acting organization.
	ErrOrganizationNotSelected = errors.New("acting organization not selected")
	// ErrOrganizationMismatch indicates the selected organization is not among the caller's memberships.
	ErrOrganizationMismatch = errors.New("acting organization not in memberships")
	// ErrPermissionDenied indicates a failed permission check.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrConsentDenied indicates the visibility evaluator rejected a cross-tenant read.
	ErrConsentDenied = errors.New("consent denied")
	// ErrNotFound indicates an entity reference that does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation, e.g. duplicate role name.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// RateLimitedError reports a rejected attempt with the remaining cooldown.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// ValidationError carries per-field validation failures for a mutation input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, reason := range e.Fields {
		parts = append(parts, field+": "+reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// InfrastructureError wraps unexpected backing-store failures without leaking
// internal diagnostic detail to callers.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return "infrastructure failure: " + e.Op
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

// Infra wraps err as an InfrastructureError unless it already belongs to the
// expected taxonomy.
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	var rl *RateLimitedError
	var ve *ValidationError
	var ie *InfrastructureError
	switch {
	case errors.Is(err, ErrAuthenticationMissing),
		errors.Is(err, ErrProfileNotApproved),
		errors.Is(err, ErrOrganizationNotSelected),
		errors.Is(err, ErrOrganizationMismatch),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrConsentDenied),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.As(err, &rl),
		errors.As(err, &ve),
		errors.As(err, &ie):
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}
