package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgauth "github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID    contextKey = "user_id"
	ctxRole      contextKey = "actor_role"
	ctxSessionID contextKey = "session_id"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext returns the access token jti, which keys the Redis session.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext rebuilds the authenticated caller seeded by Auth.
func ActorFromContext(ctx context.Context) (pkgauth.Actor, bool) {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return pkgauth.Actor{}, false
	}
	actor := pkgauth.Actor{UserID: userID, Role: enums.UserRole(RoleFromContext(ctx))}
	return actor, actor.Valid()
}

// WithActor injects the caller identity into the context.
func WithActor(ctx context.Context, actor pkgauth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.UserID.String())
	return context.WithValue(ctx, ctxRole, string(actor.Role))
}

func withSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ctxSessionID, sessionID)
}
