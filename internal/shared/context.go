package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession attaches the authenticated session to the request
// context for downstream middleware and handlers.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the attached session, or nil for anonymous
// requests.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
