package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/harborlane/storefront-backend/internal/authz"
	"github.com/harborlane/storefront-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
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

// ActorFromContext rebuilds the authz actor seeded by the Auth middleware.
// Unauthenticated requests yield a zero actor, which every capability check
// rejects.
func ActorFromContext(ctx context.Context) authz.Actor {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return authz.Actor{}
	}
	return authz.Actor{
		UserID: id,
		Role:   enums.MemberRole(RoleFromContext(ctx)),
	}
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithRole injects the actor role into the context.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}
