package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/havenlink/havenlink/internal/shared"
)

// RespondError maps engine errors to HTTP responses using RFC7807. The
// presentation layer never inspects raw store errors; anything outside the
// taxonomy collapses to a generic 500 without internal detail.
func RespondError(w http.ResponseWriter, err error) {
	var rl *shared.RateLimitedError
	var ve *shared.ValidationError

	switch {
	case errors.Is(err, shared.ErrAuthenticationMissing):
		Problem(w, http.StatusUnauthorized, "Authentication Missing", "sign in required")
	case errors.Is(err, shared.ErrProfileNotApproved):
		Problem(w, http.StatusForbidden, "Profile Not Approved", "your profile is awaiting approval")
	case errors.Is(err, shared.ErrOrganizationNotSelected):
		Problem(w, http.StatusConflict, "Organization Not Selected", "select an acting organization first")
	case errors.Is(err, shared.ErrOrganizationMismatch):
		Problem(w, http.StatusForbidden, "Organization Mismatch", "you are not a member of the selected organization")
	case errors.Is(err, shared.ErrPermissionDenied):
		Problem(w, http.StatusForbidden, "Permission Denied", "you do not hold the required permission")
	case errors.Is(err, shared.ErrConsentDenied):
		Problem(w, http.StatusForbidden, "Consent Denied", "the record is not shared with your organization")
	case errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		Problem(w, http.StatusForbidden, "CSRF Check Failed", "missing or mismatched csrf token")
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &rl):
		secs := int(rl.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		JSON(w, http.StatusTooManyRequests, ProblemDetail{
			Title:      "Rate Limited",
			Status:     http.StatusTooManyRequests,
			Detail:     "too many attempts",
			RetryAfter: secs,
		})
	case errors.As(err, &ve):
		Problem(w, http.StatusBadRequest, "Validation Failed", ve.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
