// ABOUTME: Ingestion service for inbound channel messages (whatsapp, webchat)
// ABOUTME: Dedupe by channel-native ID, persist, then fan out on the realtime channel

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/impulsalab/crm-core/internal/dedupe"
	"github.com/impulsalab/crm-core/internal/realtime"
	"github.com/impulsalab/crm-core/internal/store"
)

// Ingestion errors
var (
	ErrDuplicateDelivery  = errors.New("duplicate delivery")
	ErrConversationClosed = errors.New("conversation is closed")
)

// InboundMessage is one delivery from a channel provider, before it has a
// message ID of its own.
type InboundMessage struct {
	Channel        store.Channel
	NativeID       string // provider-assigned delivery ID, unique per channel
	ConversationID string
	Role           store.MessageRole
	PartType       store.PartType
	Payload        string
	MediaURL       *string
}

// IngestStore defines what the service needs from storage.
type IngestStore interface {
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	SaveMessage(ctx context.Context, msg *store.Message) error
}

// Publisher defines what the service needs from the realtime channel.
type Publisher interface {
	Publish(topic string, event realtime.Event, excludeSubID string)
}

// Service ingests inbound channel messages. Providers redeliver on slow
// acks, so every delivery passes the dedupe window before touching the
// store.
type Service struct {
	store     IngestStore
	window    *dedupe.Window
	publisher Publisher
	logger    *slog.Logger
}

// New creates an ingestion service. publisher may be nil for batch imports.
func New(st IngestStore, window *dedupe.Window, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		window:    window,
		publisher: publisher,
		logger:    logger.With("component", "ingest"),
	}
}

// Ingest processes one delivery: suppress echoes, verify the conversation
// accepts traffic, persist the message, fan it out. The stored message is
// returned; duplicates return ErrDuplicateDelivery and write nothing.
func (s *Service) Ingest(ctx context.Context, in InboundMessage) (*store.Message, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	key := dedupe.DeliveryKey(in.Channel, in.NativeID)
	if s.window.Duplicate(key) {
		s.logger.Debug("suppressed redelivery",
			"channel", in.Channel,
			"native_id", in.NativeID)
		return nil, ErrDuplicateDelivery
	}

	conv, err := s.store.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv.Status.Terminal() {
		return nil, ErrConversationClosed
	}
	if conv.Channel != in.Channel {
		return nil, fmt.Errorf("channel mismatch: conversation is %s, delivery is %s", conv.Channel, in.Channel)
	}

	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: in.ConversationID,
		Role:           in.Role,
		PartType:       in.PartType,
		Payload:        in.Payload,
		MediaURL:       in.MediaURL,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}

	s.logger.Debug("message ingested",
		"conversation_id", in.ConversationID,
		"message_id", msg.ID,
		"channel", in.Channel)

	if s.publisher != nil {
		s.publisher.Publish(realtime.MessageTopic(in.ConversationID), realtime.Event{
			Kind:    realtime.KindMessage,
			Message: msg,
		}, "")
	}
	return msg, nil
}

func (in InboundMessage) validate() error {
	if in.NativeID == "" {
		return errors.New("native ID required")
	}
	if in.ConversationID == "" {
		return errors.New("conversation ID required")
	}
	if !in.Channel.Valid() {
		return fmt.Errorf("unknown channel %q", in.Channel)
	}
	if in.Payload == "" {
		return errors.New("payload required")
	}
	return nil
}
