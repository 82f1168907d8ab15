package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// seedBusiness creates a business with one pipeline column and one lead,
// returning their IDs.
func seedBusiness(t *testing.T, s *SQLiteStore) (businessID, pipelineID, leadID string) {
	t.Helper()
	ctx := context.Background()

	businessID = "biz-1"
	require.NoError(t, s.CreateBusiness(ctx, &Business{
		ID:          businessID,
		OwnerUserID: "user-owner",
		Name:        "Estudio Test",
		CreatedAt:   time.Now().UTC(),
	}))

	pipelineID = "col-nuevo"
	require.NoError(t, s.CreatePipelineColumn(ctx, &PipelineColumn{
		ID:         pipelineID,
		BusinessID: businessID,
		Name:       "Nuevo",
		Position:   0,
	}))

	leadID = "lead-1"
	require.NoError(t, s.CreateLead(ctx, &Lead{
		ID:         leadID,
		BusinessID: businessID,
		Name:       "Lead Uno",
		Phone:      "+5491100000001",
		PipelineID: pipelineID,
		CreatedAt:  time.Now().UTC(),
	}))

	return businessID, pipelineID, leadID
}

func seedConversation(t *testing.T, s *SQLiteStore, businessID, leadID string, status ConversationStatus) *Conversation {
	t.Helper()
	conv := &Conversation{
		ID:         "conv-" + string(status),
		BusinessID: businessID,
		LeadID:     leadID,
		Channel:    ChannelWhatsApp,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.CreateConversation(context.Background(), conv))
	return conv
}

func TestStore_CreateConversation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	bizID, _, leadID := seedBusiness(t, s)

	conv := seedConversation(t, s, bizID, leadID, StatusAutomated)

	retrieved, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, retrieved.ID)
	assert.Equal(t, StatusAutomated, retrieved.Status)
	assert.Equal(t, ChannelWhatsApp, retrieved.Channel)
	assert.Nil(t, retrieved.AssignedAgentID)
}

func TestStore_CreateConversation_Duplicate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	bizID, _, leadID := seedBusiness(t, s)

	conv := seedConversation(t, s, bizID, leadID, StatusAutomated)
	err := s.CreateConversation(ctx, conv)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestStore_GetConversation_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetConversation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateConversationStatus_CompareAndSwap(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	bizID, _, leadID := seedBusiness(t, s)
	conv := seedConversation(t, s, bizID, leadID, StatusAutomated)

	updated, err := s.UpdateConversationStatus(ctx, conv.ID, StatusAutomated, StatusHITLActive)
	require.NoError(t, err)
	assert.Equal(t, StatusHITLActive, updated.Status)
	assert.True(t, updated.UpdatedAt.After(conv.UpdatedAt) || updated.UpdatedAt.Equal(conv.UpdatedAt))

	// Second swap from the stale status loses the race
	_, err = s.UpdateConversationStatus(ctx, conv.ID, StatusAutomated, StatusHITLActive)
	assert.ErrorIs(t, err, ErrStaleConversation)

	// Unknown conversation is NotFound, not stale
	_, err = s.UpdateConversationStatus(ctx, "missing", StatusAutomated, StatusHITLActive)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateConversationAgent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	bizID, _, leadID := seedBusiness(t, s)
	conv := seedConversation(t, s, bizID, leadID, StatusAwaitingAgent)

	agentID := "agent-7"
	updated, err := s.UpdateConversationAgent(ctx, conv.ID, &agentID)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedAgentID)
	assert.Equal(t, "agent-7", *updated.AssignedAgentID)
	// Assignment is orthogonal to status
	assert.Equal(t, StatusAwaitingAgent, updated.Status)

	updated, err = s.UpdateConversationAgent(ctx, conv.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedAgentID)
}

func TestStore_ListConversations_StatusFilter(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	bizID, _, leadID := seedBusiness(t, s)

	seedConversation(t, s, bizID, leadID, StatusAutomated)
	seedConversation(t, s, bizID, leadID, StatusArchived)

	all, err := s.ListConversations(ctx, bizID, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	archived, err := s.ListConversations(ctx, bizID, StatusArchived, 10)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, StatusArchived, archived[0].Status)
}

func TestStore_SaveMessage_AndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	bizID, _, leadID := seedBusiness(t, s)
	conv := seedConversation(t, s, bizID, leadID, StatusAutomated)

	media := "https://bucket.example/img.png"
	msg := &Message{
		ID:             "msg-1",
		ConversationID: conv.ID,
		Role:           RoleUser,
		PartType:       PartText,
		Payload:        "hola, quiero info",
		MediaURL:       &media,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.SaveMessage(ctx, msg))

	got, err := s.GetMessage(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, got.Role)
	assert.Equal(t, PartText, got.PartType)
	assert.Equal(t, "hola, quiero info", got.Payload)
	require.NotNil(t, got.MediaURL)
	assert.Equal(t, media, *got.MediaURL)

	// Messages are immutable: same ID again is rejected
	assert.ErrorIs(t, s.SaveMessage(ctx, msg), ErrDuplicateID)
}

func TestStore_ListMessages_Pagination(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	bizID, _, leadID := seedBusiness(t, s)
	conv := seedConversation(t, s, bizID, leadID, StatusAutomated)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 7; i++ {
		require.NoError(t, s.SaveMessage(ctx, &Message{
			ID:             fmt.Sprintf("msg-%02d", i),
			ConversationID: conv.ID,
			Role:           RoleUser,
			PartType:       PartText,
			Payload:        fmt.Sprintf("mensaje %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page1, err := s.ListMessages(ctx, ListMessagesParams{ConversationID: conv.ID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, page1.Messages, 3)
	assert.True(t, page1.HasMore)
	assert.Equal(t, "msg-00", page1.Messages[0].ID)
	assert.NotEmpty(t, page1.NextCursor)

	page2, err := s.ListMessages(ctx, ListMessagesParams{ConversationID: conv.ID, Limit: 3, Cursor: page1.NextCursor})
	require.NoError(t, err)
	require.Len(t, page2.Messages, 3)
	assert.Equal(t, "msg-03", page2.Messages[0].ID)
	assert.True(t, page2.HasMore)

	page3, err := s.ListMessages(ctx, ListMessagesParams{ConversationID: conv.ID, Limit: 3, Cursor: page2.NextCursor})
	require.NoError(t, err)
	require.Len(t, page3.Messages, 1)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.NextCursor)
}

func TestStore_ListMessages_InvalidCursor(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.ListMessages(context.Background(), ListMessagesParams{
		ConversationID: "conv-x",
		Cursor:         "not-base64!!",
	})
	assert.Error(t, err)
}

func TestStore_LeadStageAndTags(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	bizID, _, leadID := seedBusiness(t, s)

	require.NoError(t, s.CreatePipelineColumn(ctx, &PipelineColumn{
		ID:         "col-contactado",
		BusinessID: bizID,
		Name:       "Contactado",
		Position:   1,
	}))

	require.NoError(t, s.UpdateLeadStage(ctx, leadID, "col-contactado"))
	lead, err := s.GetLead(ctx, leadID)
	require.NoError(t, err)
	assert.Equal(t, "col-contactado", lead.PipelineID)

	require.NoError(t, s.UpdateLeadTags(ctx, leadID, []string{"vip", "urgente"}))
	lead, err = s.GetLead(ctx, leadID)
	require.NoError(t, err)
	assert.Equal(t, []string{"vip", "urgente"}, lead.Tags)

	assert.ErrorIs(t, s.UpdateLeadStage(ctx, "missing", "col-contactado"), ErrNotFound)
	assert.ErrorIs(t, s.UpdateLeadTags(ctx, "missing", nil), ErrNotFound)
}

func TestStore_ListPipelineColumns_Ordered(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	bizID, _, _ := seedBusiness(t, s)

	require.NoError(t, s.CreatePipelineColumn(ctx, &PipelineColumn{ID: "col-cerrado", BusinessID: bizID, Name: "Cerrado", Position: 2}))
	require.NoError(t, s.CreatePipelineColumn(ctx, &PipelineColumn{ID: "col-contactado", BusinessID: bizID, Name: "Contactado", Position: 1}))

	cols, err := s.ListPipelineColumns(ctx, bizID)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, []string{"Nuevo", "Contactado", "Cerrado"}, []string{cols[0].Name, cols[1].Name, cols[2].Name})
}

func TestStore_GetAgentByUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	bizID, _, _ := seedBusiness(t, s)

	require.NoError(t, s.CreateAgent(ctx, &Agent{
		ID:          "agent-1",
		UserID:      "user-9",
		BusinessID:  bizID,
		DisplayName: "Carla",
		CreatedAt:   time.Now().UTC(),
	}))

	agent, err := s.GetAgentByUser(ctx, "user-9", bizID)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", agent.ID)

	_, err = s.GetAgentByUser(ctx, "user-9", "other-biz")
	assert.ErrorIs(t, err, ErrNotFound)
}
