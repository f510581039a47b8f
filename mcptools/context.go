package mcptools

import "context"

type contextKey string

const sessionIDKey contextKey = "userSessionID"

// WithSessionID binds the owning user session to a request context.
// The transport layer injects it; tool handlers read it back.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext returns the user session bound to the request,
// if any.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(sessionIDKey).(string)
	return sessionID, ok && sessionID != ""
}
