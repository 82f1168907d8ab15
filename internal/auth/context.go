// ABOUTME: Actor context for tracking identity through request handlers
// ABOUTME: Provides WithActor/FromContext for propagating actor info via context

package auth

import (
	"context"
)

// ActorRole is the coarse role carried by the actor token.
type ActorRole string

const (
	RoleAdmin ActorRole = "admin"
	RoleOwner ActorRole = "owner"
	RoleAgent ActorRole = "agent"
	RoleNone  ActorRole = "none"
)

// ActorContext holds the verified identity of the current actor.
// It is recomputed per request and never persisted.
type ActorContext struct {
	UserID      string
	DisplayName string
	Role        ActorRole
}

// IsAdmin returns true if the actor carries the administrator role.
func (a *ActorContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// actorContextKey is the key type for storing ActorContext in context.Context.
type actorContextKey struct{}

// WithActor returns a new context with the ActorContext attached.
func WithActor(ctx context.Context, actor *ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// FromContext retrieves the ActorContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *ActorContext {
	val := ctx.Value(actorContextKey{})
	if val == nil {
		return nil
	}
	actor, ok := val.(*ActorContext)
	if !ok {
		return nil
	}
	return actor
}

// MustFromContext retrieves the ActorContext from the context, panicking if not present.
func MustFromContext(ctx context.Context) *ActorContext {
	actor := FromContext(ctx)
	if actor == nil {
		panic("auth: ActorContext not found in context")
	}
	return actor
}
