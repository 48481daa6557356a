package access

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/havenlink/havenlink/internal/platform/httpx"
	"github.com/havenlink/havenlink/internal/shared"
)

type contextKey struct{}

// WithContext stores the AccessContext in the request context.
func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext extracts the AccessContext, or nil.
func FromContext(ctx context.Context) *Context {
	ac, _ := ctx.Value(contextKey{}).(*Context)
	return ac
}

// Middleware builds an AccessContext per request from the session identity and
// the session's acting-organization selection.
type Middleware struct {
	Builder *Builder
	Logger  *slog.Logger
}

// Resolve attaches an AccessContext for authenticated callers. Requests
// without a session identity pass through untouched; downstream guards decide
// whether that is acceptable.
func (m Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || strings.TrimSpace(sess.User()) == "" {
			next.ServeHTTP(w, r)
			return
		}
		identityID, err := strconv.ParseInt(strings.TrimSpace(sess.User()), 10, 64)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("access: parse identity id", slog.String("value", sess.User()))
			}
			next.ServeHTTP(w, r)
			return
		}
		ac, err := m.Builder.Build(r.Context(), identityID, sess.ActingOrg())
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), ac)))
	})
}

// RequireAuthenticated rejects requests lacking an AccessContext.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			httpx.RespondError(w, shared.ErrAuthenticationMissing)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireApproved rejects unapproved profiles.
func RequireApproved(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := FromContext(r.Context())
		if ac == nil {
			httpx.RespondError(w, shared.ErrAuthenticationMissing)
			return
		}
		if !ac.Approved() {
			httpx.RespondError(w, shared.ErrProfileNotApproved)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission ensures the effective permission set includes perm.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := FromContext(r.Context())
			if ac == nil {
				httpx.RespondError(w, shared.ErrAuthenticationMissing)
				return
			}
			if !ac.Has(perm) {
				httpx.RespondError(w, shared.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOrg ensures an acting organization has been selected.
func RequireOrg(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := FromContext(r.Context())
		if ac == nil {
			httpx.RespondError(w, shared.ErrAuthenticationMissing)
			return
		}
		if err := ac.RequireOrg(); err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
