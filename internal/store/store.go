// ABOUTME: Store interface and data types for crm-core persistence
// ABOUTME: Defines Conversation, Message, Lead, PipelineColumn and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateID is returned when trying to create an entity whose ID already exists
var ErrDuplicateID = errors.New("id already exists")

// ErrStaleConversation is returned when a conditional conversation update
// finds the row in a different state than expected (lost a race).
var ErrStaleConversation = errors.New("conversation state changed concurrently")

// ConversationStatus is the lifecycle state of a conversation.
// The string values are the wire/storage values shared with the channel
// integrations and must not be renamed.
type ConversationStatus string

const (
	StatusAutomated     ConversationStatus = "automatizada"
	StatusHITLActive    ConversationStatus = "hitl_activo"
	StatusAwaitingAgent ConversationStatus = "en_espera_agente"
	StatusArchived      ConversationStatus = "archivada"
	StatusClosed        ConversationStatus = "cerrada"
)

// ValidStatuses lists every conversation status the store accepts.
var ValidStatuses = []ConversationStatus{
	StatusAutomated,
	StatusHITLActive,
	StatusAwaitingAgent,
	StatusArchived,
	StatusClosed,
}

// Valid reports whether s is a known conversation status.
func (s ConversationStatus) Valid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s ConversationStatus) Terminal() bool {
	return s == StatusClosed
}

// Channel identifies the origin channel of a conversation.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelWebchat  Channel = "webchat"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelWhatsApp || c == ChannelWebchat
}

// Conversation is a customer conversation moving between automated and
// human handling. Created by the first inbound contact; closed conversations
// accept no transitions and no new agent messages.
type Conversation struct {
	ID              string
	BusinessID      string
	LeadID          string
	Channel         Channel
	Status          ConversationStatus
	AssignedAgentID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MessageRole identifies who authored a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleAgent     MessageRole = "agent"
	RoleSystem    MessageRole = "system"
)

// PartType categorizes the payload of a message.
type PartType string

const (
	PartText             PartType = "TEXT"
	PartFunctionCall     PartType = "FUNCTION_CALL"
	PartFunctionResponse PartType = "FUNCTION_RESPONSE"
)

// Message is a single immutable conversation event. Payload holds the raw
// part content: plain text for TEXT, JSON (object or double-encoded string,
// depending on the producing channel) for function calls and responses.
// Decoding is the reader's job, not the store's.
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	PartType       PartType
	Payload        string
	MediaURL       *string
	CreatedAt      time.Time
}

// Lead is a sales lead tracked on the pipeline board.
type Lead struct {
	ID         string
	BusinessID string
	Name       string
	Phone      string
	PipelineID string // current pipeline column
	Tags       []string
	CreatedAt  time.Time
}

// PipelineColumn is one stage of the sales pipeline.
type PipelineColumn struct {
	ID         string
	BusinessID string
	Name       string
	Position   int
}

// Agent is a CRM agent account scoped to one business.
type Agent struct {
	ID          string
	UserID      string
	BusinessID  string
	DisplayName string
	CreatedAt   time.Time
}

// Business is the owning tenant for conversations, leads and agents.
type Business struct {
	ID          string
	OwnerUserID string
	Name        string
	CreatedAt   time.Time
}

// ListMessagesParams specifies a paginated message history query.
type ListMessagesParams struct {
	ConversationID string // required
	Limit          int    // 1-500, defaults to 50
	Cursor         string // opaque cursor from a previous result
}

// ListMessagesResult is one page of message history in chronological order.
type ListMessagesResult struct {
	Messages   []*Message
	NextCursor string // empty when there are no more pages
	HasMore    bool
}

// Store defines the persistence interface for the CRM core.
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, businessID string, status ConversationStatus, limit int) ([]*Conversation, error)
	// UpdateConversationStatus transitions a conversation from one status to
	// another as a compare-and-swap; returns ErrStaleConversation if the row
	// is no longer in the expected `from` status.
	UpdateConversationStatus(ctx context.Context, id string, from, to ConversationStatus) (*Conversation, error)
	UpdateConversationAgent(ctx context.Context, id string, agentID *string) (*Conversation, error)

	// Messages
	SaveMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	ListMessages(ctx context.Context, p ListMessagesParams) (*ListMessagesResult, error)

	// Leads and pipeline
	CreateLead(ctx context.Context, lead *Lead) error
	GetLead(ctx context.Context, id string) (*Lead, error)
	ListLeads(ctx context.Context, businessID string) ([]*Lead, error)
	UpdateLeadStage(ctx context.Context, leadID, pipelineID string) error
	UpdateLeadTags(ctx context.Context, leadID string, tags []string) error
	CreatePipelineColumn(ctx context.Context, col *PipelineColumn) error
	ListPipelineColumns(ctx context.Context, businessID string) ([]*PipelineColumn, error)

	// Agents and businesses
	CreateAgent(ctx context.Context, agent *Agent) error
	GetAgentByUser(ctx context.Context, userID, businessID string) (*Agent, error)
	CreateBusiness(ctx context.Context, biz *Business) error
	GetBusiness(ctx context.Context, id string) (*Business, error)

	// Close releases any resources held by the store
	Close() error
}
