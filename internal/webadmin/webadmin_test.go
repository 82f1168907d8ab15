// ABOUTME: Tests for the admin UI handlers
// ABOUTME: HTML pages and JSON endpoints against the mock store

package webadmin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impulsalab/crm-core/internal/store"
)

func setupAdmin(t *testing.T) (*http.ServeMux, *store.MockStore) {
	t.Helper()
	ctx := context.Background()
	mock := store.NewMockStore()

	require.NoError(t, mock.CreateBusiness(ctx, &store.Business{
		ID:          "biz-1",
		OwnerUserID: "user-owner",
		Name:        "Estudio Impulsa",
		CreatedAt:   time.Now(),
	}))
	require.NoError(t, mock.CreatePipelineColumn(ctx, &store.PipelineColumn{
		ID: "col-nuevo", BusinessID: "biz-1", Name: "Nuevo", Position: 0,
	}))
	require.NoError(t, mock.CreateLead(ctx, &store.Lead{
		ID: "lead-1", BusinessID: "biz-1", Name: "Ana", Phone: "+5215510000001",
		PipelineID: "col-nuevo", Tags: []string{"urgente"}, CreatedAt: time.Now(),
	}))
	require.NoError(t, mock.CreateConversation(ctx, &store.Conversation{
		ID: "conv-1", BusinessID: "biz-1", LeadID: "lead-1",
		Channel: store.ChannelWhatsApp, Status: store.StatusHITLActive,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))
	require.NoError(t, mock.SaveMessage(ctx, &store.Message{
		ID: "msg-1", ConversationID: "conv-1", Role: store.RoleUser,
		PartType: store.PartText, Payload: "hola, *sigue disponible*?",
		CreatedAt: time.Now(),
	}))
	require.NoError(t, mock.SaveMessage(ctx, &store.Message{
		ID: "msg-2", ConversationID: "conv-1", Role: store.RoleAssistant,
		PartType: store.PartFunctionCall, Payload: `{"name":"agendar_visita","args":{}}`,
		CreatedAt: time.Now().Add(time.Second),
	}))

	mux := http.NewServeMux()
	New(mock, Config{BaseURL: "http://localhost:8080"}, nil).RegisterRoutes(mux)
	return mux, mock
}

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestInboxPage(t *testing.T) {
	mux, _ := setupAdmin(t)

	rec := get(t, mux, "/admin/conversations?business=biz-1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Estudio Impulsa")
	assert.Contains(t, body, "Ana")
	assert.Contains(t, body, "hitl_activo")
}

func TestInboxPage_StatusFilter(t *testing.T) {
	mux, _ := setupAdmin(t)

	rec := get(t, mux, "/admin/conversations?business=biz-1&status=archivada")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No conversations")

	rec = get(t, mux, "/admin/conversations?business=biz-1&status=inventada")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInboxPage_RequiresBusiness(t *testing.T) {
	mux, _ := setupAdmin(t)

	rec := get(t, mux, "/admin/conversations")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversationPage(t *testing.T) {
	mux, _ := setupAdmin(t)

	rec := get(t, mux, "/admin/conversations/conv-1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	// Markdown rendered, not raw
	assert.Contains(t, body, "<em>sigue disponible</em>")
	// Structured part shown by name
	assert.Contains(t, body, "agendar_visita")
}

func TestConversationPage_DegradedPayloadShown(t *testing.T) {
	mux, mock := setupAdmin(t)

	require.NoError(t, mock.SaveMessage(context.Background(), &store.Message{
		ID: "msg-bad", ConversationID: "conv-1", Role: store.RoleAssistant,
		PartType: store.PartFunctionCall, Payload: `{{broken`,
		CreatedAt: time.Now().Add(2 * time.Second),
	}))

	rec := get(t, mux, "/admin/conversations/conv-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "unreadable payload")
}

func TestConversationPage_NotFound(t *testing.T) {
	mux, _ := setupAdmin(t)

	rec := get(t, mux, "/admin/conversations/conv-missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBoardPage(t *testing.T) {
	mux, _ := setupAdmin(t)

	rec := get(t, mux, "/admin/board?business=biz-1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Nuevo")
	assert.Contains(t, body, "Ana")
	assert.Contains(t, body, "urgente")
}

func TestAPIConversations(t *testing.T) {
	mux, _ := setupAdmin(t)

	rec := get(t, mux, "/admin/api/conversations?business=biz-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var payload struct {
		Conversations []*store.Conversation `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Conversations, 1)
	assert.Equal(t, "conv-1", payload.Conversations[0].ID)
}

func TestAPIMessages_Pagination(t *testing.T) {
	mux, _ := setupAdmin(t)

	rec := get(t, mux, "/admin/api/conversations/conv-1/messages?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Messages []*store.Message `json:"messages"`
		HasMore  bool             `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.Messages, 2)
	assert.False(t, payload.HasMore)
}
