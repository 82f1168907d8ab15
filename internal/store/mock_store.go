// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // keyed by conversation ID
	messages      map[string]*Message      // keyed by message ID
	byConvo       map[string][]string      // conversation ID -> message IDs in insert order
	leads         map[string]*Lead         // keyed by lead ID
	columns       map[string]*PipelineColumn
	agents        map[string]*Agent    // keyed by "userID:businessID"
	businesses    map[string]*Business // keyed by business ID

	// FailUpdateLeadStage makes UpdateLeadStage return this error when set.
	// Used to simulate server rejection in rollback tests.
	FailUpdateLeadStage error
	// FailUpdateLeadTags makes UpdateLeadTags return this error when set.
	FailUpdateLeadTags error
	// FailSaveMessage makes SaveMessage return this error when set.
	FailSaveMessage error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string]*Message),
		byConvo:       make(map[string][]string),
		leads:         make(map[string]*Lead),
		columns:       make(map[string]*PipelineColumn),
		agents:        make(map[string]*Agent),
		businesses:    make(map[string]*Business),
	}
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[conv.ID]; exists {
		return ErrDuplicateID
	}
	c := *conv
	m.conversations[c.ID] = &c
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *conv
	return &c, nil
}

// ListConversations returns conversations for a business, most recently updated first.
func (m *MockStore) ListConversations(ctx context.Context, businessID string, status ConversationStatus, limit int) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	var convs []*Conversation
	for _, conv := range m.conversations {
		if conv.BusinessID != businessID {
			continue
		}
		if status != "" && conv.Status != status {
			continue
		}
		c := *conv
		convs = append(convs, &c)
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	if len(convs) > limit {
		convs = convs[:limit]
	}
	return convs, nil
}

// UpdateConversationStatus performs a compare-and-swap status transition.
func (m *MockStore) UpdateConversationStatus(ctx context.Context, id string, from, to ConversationStatus) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if conv.Status != from {
		return nil, ErrStaleConversation
	}
	conv.Status = to
	conv.UpdatedAt = time.Now()
	c := *conv
	return &c, nil
}

// UpdateConversationAgent sets or clears the assigned agent.
func (m *MockStore) UpdateConversationAgent(ctx context.Context, id string, agentID *string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if agentID != nil {
		v := *agentID
		conv.AssignedAgentID = &v
	} else {
		conv.AssignedAgentID = nil
	}
	conv.UpdatedAt = time.Now()
	c := *conv
	return &c, nil
}

// SaveMessage stores a message.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSaveMessage != nil {
		return m.FailSaveMessage
	}
	if _, exists := m.messages[msg.ID]; exists {
		return ErrDuplicateID
	}
	c := *msg
	m.messages[c.ID] = &c
	m.byConvo[c.ConversationID] = append(m.byConvo[c.ConversationID], c.ID)
	return nil
}

// GetMessage retrieves a message by ID.
func (m *MockStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *msg
	return &c, nil
}

// ListMessages returns the transcript in chronological order. The mock
// ignores cursors and returns everything in one page.
func (m *MockStore) ListMessages(ctx context.Context, p ListMessagesParams) (*ListMessagesResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var msgs []*Message
	for _, id := range m.byConvo[p.ConversationID] {
		c := *m.messages[id]
		msgs = append(msgs, &c)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return &ListMessagesResult{Messages: msgs}, nil
}

// CreateLead stores a new lead.
func (m *MockStore) CreateLead(ctx context.Context, lead *Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.leads[lead.ID]; exists {
		return ErrDuplicateID
	}
	c := *lead
	if c.Tags == nil {
		c.Tags = []string{}
	}
	m.leads[c.ID] = &c
	return nil
}

// GetLead retrieves a lead by ID.
func (m *MockStore) GetLead(ctx context.Context, id string) (*Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lead, ok := m.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *lead
	c.Tags = append([]string(nil), lead.Tags...)
	return &c, nil
}

// ListLeads returns all leads for a business, oldest first.
func (m *MockStore) ListLeads(ctx context.Context, businessID string) ([]*Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var leads []*Lead
	for _, lead := range m.leads {
		if lead.BusinessID != businessID {
			continue
		}
		c := *lead
		c.Tags = append([]string(nil), lead.Tags...)
		leads = append(leads, &c)
	}
	sort.Slice(leads, func(i, j int) bool {
		if leads[i].CreatedAt.Equal(leads[j].CreatedAt) {
			return leads[i].ID < leads[j].ID
		}
		return leads[i].CreatedAt.Before(leads[j].CreatedAt)
	})
	return leads, nil
}

// UpdateLeadStage moves a lead to another pipeline column.
func (m *MockStore) UpdateLeadStage(ctx context.Context, leadID, pipelineID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpdateLeadStage != nil {
		return m.FailUpdateLeadStage
	}
	lead, ok := m.leads[leadID]
	if !ok {
		return ErrNotFound
	}
	lead.PipelineID = pipelineID
	return nil
}

// UpdateLeadTags replaces a lead's tag set.
func (m *MockStore) UpdateLeadTags(ctx context.Context, leadID string, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpdateLeadTags != nil {
		return m.FailUpdateLeadTags
	}
	lead, ok := m.leads[leadID]
	if !ok {
		return ErrNotFound
	}
	if tags == nil {
		tags = []string{}
	}
	lead.Tags = append([]string(nil), tags...)
	return nil
}

// CreatePipelineColumn stores a new pipeline column.
func (m *MockStore) CreatePipelineColumn(ctx context.Context, col *PipelineColumn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.columns[col.ID]; exists {
		return ErrDuplicateID
	}
	c := *col
	m.columns[c.ID] = &c
	return nil
}

// ListPipelineColumns returns columns for a business in board order.
func (m *MockStore) ListPipelineColumns(ctx context.Context, businessID string) ([]*PipelineColumn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var cols []*PipelineColumn
	for _, col := range m.columns {
		if col.BusinessID != businessID {
			continue
		}
		c := *col
		cols = append(cols, &c)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })
	return cols, nil
}

// CreateAgent stores an agent record.
func (m *MockStore) CreateAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := agent.UserID + ":" + agent.BusinessID
	if _, exists := m.agents[key]; exists {
		return ErrDuplicateID
	}
	c := *agent
	m.agents[key] = &c
	return nil
}

// GetAgentByUser looks up an agent record by user and business.
func (m *MockStore) GetAgentByUser(ctx context.Context, userID, businessID string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent, ok := m.agents[userID+":"+businessID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *agent
	return &c, nil
}

// CreateBusiness stores a new business.
func (m *MockStore) CreateBusiness(ctx context.Context, biz *Business) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.businesses[biz.ID]; exists {
		return ErrDuplicateID
	}
	c := *biz
	m.businesses[c.ID] = &c
	return nil
}

// GetBusiness retrieves a business by ID.
func (m *MockStore) GetBusiness(ctx context.Context, id string) (*Business, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	biz, ok := m.businesses[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *biz
	return &c, nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}
