package store

import "context"

// Context keys carrying per-request identity that both the agent loop and
// tool layer need (e.g. subagent spawn recording which external user
// triggered it), without introducing an import cycle between them.

type storeCtxKey string

const ctxUserID storeCtxKey = "store_user_id"

// WithUserID attaches the external user ID (e.g. a Telegram/Discord user
// ID) that originated the current request.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

// UserIDFromContext returns "" if no user ID was attached.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxUserID).(string)
	return v
}
