// ABOUTME: ConversationService executes lifecycle transitions and agent sends
// ABOUTME: Transitions are confirm-then-apply - the store write is the single atomic step, never optimistic

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/impulsalab/crm-core/internal/auth"
	"github.com/impulsalab/crm-core/internal/realtime"
	"github.com/impulsalab/crm-core/internal/store"
)

// Service errors
var (
	ErrPermissionDenied   = errors.New("permission denied")
	ErrClosedConversation = errors.New("conversation is closed")
)

// ConversationStore defines what the service needs from storage
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	ListConversations(ctx context.Context, businessID string, status store.ConversationStatus, limit int) ([]*store.Conversation, error)
	UpdateConversationStatus(ctx context.Context, id string, from, to store.ConversationStatus) (*store.Conversation, error)
	UpdateConversationAgent(ctx context.Context, id string, agentID *string) (*store.Conversation, error)
	SaveMessage(ctx context.Context, msg *store.Message) error
	ListMessages(ctx context.Context, p store.ListMessagesParams) (*store.ListMessagesResult, error)
	GetBusiness(ctx context.Context, id string) (*store.Business, error)
}

// Publisher defines what the service needs from the realtime channel
type Publisher interface {
	Publish(topic string, event realtime.Event, excludeSubID string)
}

// Service is the action layer for a conversation: lifecycle transitions,
// agent assignment and agent message sends. Status changes are applied only
// after the store confirms them; conversation status drives downstream
// automation and must not be guessed.
type Service struct {
	store     ConversationStore
	resolver  *auth.Resolver
	publisher Publisher
	logger    *slog.Logger
}

// New creates a new conversation Service. publisher may be nil when no
// realtime fan-out is wanted (e.g. batch tooling).
func New(st ConversationStore, resolver *auth.Resolver, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger.With("component", "conversation"),
	}
}

// Pause suspends automation: a human agent takes over the conversation.
func (s *Service) Pause(ctx context.Context, actor *auth.ActorContext, conversationID string) (*store.Conversation, error) {
	return s.transition(ctx, actor, conversationID, TransitionPause)
}

// Resume hands the conversation back to the automated assistant.
func (s *Service) Resume(ctx context.Context, actor *auth.ActorContext, conversationID string) (*store.Conversation, error) {
	return s.transition(ctx, actor, conversationID, TransitionResume)
}

// Archive moves the conversation out of the active inbox.
func (s *Service) Archive(ctx context.Context, actor *auth.ActorContext, conversationID string) (*store.Conversation, error) {
	return s.transition(ctx, actor, conversationID, TransitionArchive)
}

// Unarchive returns an archived conversation to the inbox, in the default
// re-entry state (en_espera_agente).
func (s *Service) Unarchive(ctx context.Context, actor *auth.ActorContext, conversationID string) (*store.Conversation, error) {
	return s.transition(ctx, actor, conversationID, TransitionUnarchive)
}

// transition runs one state-machine transition as a single atomic store
// write. The transition is validated against the in-memory snapshot first,
// then applied as a compare-and-swap so a concurrent transition cannot be
// silently overwritten.
func (s *Service) transition(ctx context.Context, actor *auth.ActorContext, conversationID string, tr Transition) (*store.Conversation, error) {
	conv, caps, err := s.authorize(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	if !caps.CanManageConversation {
		return nil, ErrPermissionDenied
	}

	to, err := Next(conv.Status, tr)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateConversationStatus(ctx, conversationID, conv.Status, to)
	if err != nil {
		return nil, fmt.Errorf("applying %s: %w", tr, err)
	}

	s.logger.Debug("transition applied",
		"conversation_id", conversationID,
		"transition", tr,
		"from", conv.Status,
		"to", updated.Status,
		"actor", actor.UserID)

	s.publishRowUpdate(updated)
	return updated, nil
}

// AssignAgent sets or clears the assigned agent. Assignment is orthogonal to
// lifecycle status and changes no status.
func (s *Service) AssignAgent(ctx context.Context, actor *auth.ActorContext, conversationID string, agentID *string) (*store.Conversation, error) {
	_, caps, err := s.authorize(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	if !caps.CanManageConversation {
		return nil, ErrPermissionDenied
	}

	updated, err := s.store.UpdateConversationAgent(ctx, conversationID, agentID)
	if err != nil {
		return nil, fmt.Errorf("assigning agent: %w", err)
	}

	s.logger.Debug("agent assignment updated",
		"conversation_id", conversationID,
		"actor", actor.UserID)

	s.publishRowUpdate(updated)
	return updated, nil
}

// SendMessage records an agent-authored text message and fans it out on the
// realtime channel. Closed conversations accept no new agent messages.
func (s *Service) SendMessage(ctx context.Context, actor *auth.ActorContext, conversationID, text string) (*store.Message, error) {
	if text == "" {
		return nil, errors.New("message text required")
	}

	conv, caps, err := s.authorize(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	if !caps.CanSendMessage {
		if conv.Status.Terminal() {
			return nil, ErrClosedConversation
		}
		return nil, ErrPermissionDenied
	}

	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           store.RoleAgent,
		PartType:       store.PartText,
		Payload:        text,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}

	s.logger.Debug("agent message recorded",
		"conversation_id", conversationID,
		"message_id", msg.ID,
		"actor", actor.UserID)

	if s.publisher != nil {
		s.publisher.Publish(realtime.MessageTopic(conversationID), realtime.Event{
			Kind:    realtime.KindMessage,
			Message: msg,
		}, "")
	}

	return msg, nil
}

// Get returns the conversation snapshot.
func (s *Service) Get(ctx context.Context, conversationID string) (*store.Conversation, error) {
	return s.store.GetConversation(ctx, conversationID)
}

// History returns one page of the conversation transcript.
func (s *Service) History(ctx context.Context, conversationID string, limit int, cursor string) (*store.ListMessagesResult, error) {
	return s.store.ListMessages(ctx, store.ListMessagesParams{
		ConversationID: conversationID,
		Limit:          limit,
		Cursor:         cursor,
	})
}

// List returns conversations for a business, optionally filtered by status.
func (s *Service) List(ctx context.Context, businessID string, status store.ConversationStatus, limit int) ([]*store.Conversation, error) {
	return s.store.ListConversations(ctx, businessID, status, limit)
}

// authorize loads the conversation and resolves the actor's capabilities
// over it. Permission is resolved per call; nothing is cached.
func (s *Service) authorize(ctx context.Context, actor *auth.ActorContext, conversationID string) (*store.Conversation, auth.Capabilities, error) {
	if actor == nil {
		return nil, auth.None, ErrPermissionDenied
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, auth.None, fmt.Errorf("loading conversation: %w", err)
	}

	biz, err := s.store.GetBusiness(ctx, conv.BusinessID)
	if err != nil {
		return nil, auth.None, fmt.Errorf("loading business: %w", err)
	}

	caps, err := s.resolver.Resolve(ctx, actor, conv, biz.OwnerUserID)
	if err != nil {
		return nil, auth.None, err
	}
	return conv, caps, nil
}

// publishRowUpdate fans out the confirmed conversation snapshot.
func (s *Service) publishRowUpdate(conv *store.Conversation) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(realtime.RowTopic(conv.ID), realtime.Event{
		Kind:         realtime.KindRowUpdate,
		Conversation: conv,
	}, "")
}
