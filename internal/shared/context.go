package shared

import (
	"context"
	"strings"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// UserIDFromContext returns the signed-in user's ID. Reports false when
// no session is attached or the session is anonymous.
func UserIDFromContext(ctx context.Context) (string, bool) {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return "", false
	}
	id := strings.TrimSpace(sess.User())
	if id == "" {
		return "", false
	}
	return id, true
}
