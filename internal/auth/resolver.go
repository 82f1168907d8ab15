// ABOUTME: Capability resolution for actors acting on a conversation
// ABOUTME: Admin and business owner get full capability; agents via lookup; closed conversations never accept sends

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/impulsalab/crm-core/internal/store"
)

// Capabilities is what the actor may do to one specific conversation.
type Capabilities struct {
	CanSendMessage        bool
	CanManageConversation bool
	// Agent is the agent identity the capability is bound to, when the
	// capability was granted through an agent record. Nil for admin/owner.
	Agent *store.Agent
}

// None is the zero capability set.
var None = Capabilities{}

// AgentLookup defines what the resolver needs from storage.
type AgentLookup interface {
	GetAgentByUser(ctx context.Context, userID, businessID string) (*store.Agent, error)
}

// Resolver derives capability sets. It performs reads only; resolution has
// no side effects.
type Resolver struct {
	agents AgentLookup
	logger *slog.Logger
}

// NewResolver creates a capability resolver. Pass nil logger for default.
func NewResolver(agents AgentLookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		agents: agents,
		logger: logger.With("component", "auth"),
	}
}

// Resolve determines the actor's capabilities over the given conversation.
// ownerUserID is the business owner's user id as resolved at the route level.
//
// Resolution order: admin role, then business owner, then an agent record for
// (actor, business). On lookup failure the capability defaults to None and
// the error is returned; access is never granted on error.
//
// A conversation in `cerrada` withdraws CanSendMessage for every role.
func (r *Resolver) Resolve(ctx context.Context, actor *ActorContext, conv *store.Conversation, ownerUserID string) (Capabilities, error) {
	if actor == nil || conv == nil {
		return None, errors.New("actor and conversation required")
	}

	caps, err := r.resolveRole(ctx, actor, conv.BusinessID, ownerUserID)
	if err != nil {
		return None, err
	}

	if conv.Status.Terminal() {
		caps.CanSendMessage = false
	}

	return caps, nil
}

// resolveRole grants capabilities from actor identity alone, ignoring the
// conversation's lifecycle state.
func (r *Resolver) resolveRole(ctx context.Context, actor *ActorContext, businessID, ownerUserID string) (Capabilities, error) {
	if actor.IsAdmin() {
		return Capabilities{CanSendMessage: true, CanManageConversation: true}, nil
	}

	if ownerUserID != "" && actor.UserID == ownerUserID {
		return Capabilities{CanSendMessage: true, CanManageConversation: true}, nil
	}

	agent, err := r.agents.GetAgentByUser(ctx, actor.UserID, businessID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return None, nil
		}
		r.logger.Error("agent lookup failed",
			"error", err,
			"user_id", actor.UserID,
			"business_id", businessID)
		return None, fmt.Errorf("agent lookup: %w", err)
	}

	return Capabilities{
		CanSendMessage:        true,
		CanManageConversation: true,
		Agent:                 agent,
	}, nil
}
