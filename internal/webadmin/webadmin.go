// ABOUTME: Read-only back office web UI for crm-core
// ABOUTME: Inbox list, conversation transcripts, kanban board, plus JSON endpoints

package webadmin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/impulsalab/crm-core/internal/inbox"
	"github.com/impulsalab/crm-core/internal/pipeline"
	"github.com/impulsalab/crm-core/internal/store"
)

// defaultListLimit bounds the inbox listing.
const defaultListLimit = 100

// Config holds admin UI configuration.
type Config struct {
	// BaseURL is the external URL of the admin UI, used in page links.
	BaseURL string
}

// AdminStore defines the read surface the admin UI needs.
type AdminStore interface {
	GetBusiness(ctx context.Context, id string) (*store.Business, error)
	ListConversations(ctx context.Context, businessID string, status store.ConversationStatus, limit int) ([]*store.Conversation, error)
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	ListMessages(ctx context.Context, p store.ListMessagesParams) (*store.ListMessagesResult, error)
	GetLead(ctx context.Context, id string) (*store.Lead, error)
	ListLeads(ctx context.Context, businessID string) ([]*store.Lead, error)
	ListPipelineColumns(ctx context.Context, businessID string) ([]*store.PipelineColumn, error)
}

// Admin serves the back office pages. All routes are read-only; actions go
// through the conversation service API, not this UI.
type Admin struct {
	store  AdminStore
	config Config
	logger *slog.Logger
}

// New creates an Admin handler.
func New(st AdminStore, cfg Config, logger *slog.Logger) *Admin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Admin{
		store:  st,
		config: cfg,
		logger: logger.With("component", "webadmin"),
	}
}

// RegisterRoutes registers all admin routes on the given mux.
func (a *Admin) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/conversations", a.handleInbox)
	mux.HandleFunc("GET /admin/conversations/{id}", a.handleConversation)
	mux.HandleFunc("GET /admin/board", a.handleBoard)

	// JSON endpoints
	mux.HandleFunc("GET /admin/api/conversations", a.handleAPIConversations)
	mux.HandleFunc("GET /admin/api/conversations/{id}/messages", a.handleAPIMessages)
}

// handleInbox lists conversations for a business, optionally filtered by
// status.
func (a *Admin) handleInbox(w http.ResponseWriter, r *http.Request) {
	businessID := r.URL.Query().Get("business")
	if businessID == "" {
		http.Error(w, "business query parameter required", http.StatusBadRequest)
		return
	}
	status := store.ConversationStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}

	biz, err := a.store.GetBusiness(r.Context(), businessID)
	if err != nil {
		a.renderStoreError(w, "loading business", err)
		return
	}
	convs, err := a.store.ListConversations(r.Context(), businessID, status, defaultListLimit)
	if err != nil {
		a.renderStoreError(w, "listing conversations", err)
		return
	}

	rows := make([]inboxRow, 0, len(convs))
	for _, conv := range convs {
		row := inboxRow{Conversation: conv}
		if lead, err := a.store.GetLead(r.Context(), conv.LeadID); err == nil {
			row.LeadName = lead.Name
		}
		rows = append(rows, row)
	}

	a.renderInbox(w, inboxData{
		Title:    biz.Name,
		Business: biz,
		Status:   string(status),
		Rows:     rows,
	})
}

// handleConversation renders one transcript. Message text is rendered as
// markdown; structured payloads show their decoded form, degraded payloads
// show the raw value with the parse error.
func (a *Admin) handleConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv, err := a.store.GetConversation(r.Context(), id)
	if err != nil {
		a.renderStoreError(w, "loading conversation", err)
		return
	}
	biz, err := a.store.GetBusiness(r.Context(), conv.BusinessID)
	if err != nil {
		a.renderStoreError(w, "loading business", err)
		return
	}

	result, err := a.store.ListMessages(r.Context(), store.ListMessagesParams{
		ConversationID: id,
		Limit:          defaultListLimit,
	})
	if err != nil {
		a.renderStoreError(w, "listing messages", err)
		return
	}

	entries := make([]transcriptEntry, 0, len(result.Messages))
	for _, msg := range result.Messages {
		entries = append(entries, newTranscriptEntry(msg))
	}

	var leadName string
	if lead, err := a.store.GetLead(r.Context(), conv.LeadID); err == nil {
		leadName = lead.Name
	}

	a.renderConversation(w, conversationData{
		Title:        "Conversation " + conv.ID,
		Business:     biz,
		Conversation: conv,
		LeadName:     leadName,
		Entries:      entries,
		HasMore:      result.HasMore,
	})
}

// handleBoard renders the kanban board for a business.
func (a *Admin) handleBoard(w http.ResponseWriter, r *http.Request) {
	businessID := r.URL.Query().Get("business")
	if businessID == "" {
		http.Error(w, "business query parameter required", http.StatusBadRequest)
		return
	}

	biz, err := a.store.GetBusiness(r.Context(), businessID)
	if err != nil {
		a.renderStoreError(w, "loading business", err)
		return
	}
	columns, err := a.store.ListPipelineColumns(r.Context(), businessID)
	if err != nil {
		a.renderStoreError(w, "listing columns", err)
		return
	}
	leads, err := a.store.ListLeads(r.Context(), businessID)
	if err != nil {
		a.renderStoreError(w, "listing leads", err)
		return
	}

	a.renderBoard(w, boardData{
		Title:    biz.Name + " board",
		Business: biz,
		Board:    pipeline.BuildBoard(businessID, columns, leads),
	})
}

// handleAPIConversations returns the inbox as JSON.
func (a *Admin) handleAPIConversations(w http.ResponseWriter, r *http.Request) {
	businessID := r.URL.Query().Get("business")
	if businessID == "" {
		writeJSONError(w, http.StatusBadRequest, "business query parameter required")
		return
	}
	status := store.ConversationStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeJSONError(w, http.StatusBadRequest, "unknown status")
		return
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	convs, err := a.store.ListConversations(r.Context(), businessID, status, limit)
	if err != nil {
		a.writeStoreError(w, "listing conversations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// handleAPIMessages returns one transcript page as JSON with a cursor for
// the next page.
func (a *Admin) handleAPIMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	result, err := a.store.ListMessages(r.Context(), store.ListMessagesParams{
		ConversationID: id,
		Limit:          limit,
		Cursor:         r.URL.Query().Get("cursor"),
	})
	if err != nil {
		a.writeStoreError(w, "listing messages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":    result.Messages,
		"next_cursor": result.NextCursor,
		"has_more":    result.HasMore,
	})
}

// newTranscriptEntry decodes one message for display.
func newTranscriptEntry(msg *store.Message) transcriptEntry {
	return transcriptEntry{
		Message: msg,
		Part:    inbox.DecodePart(msg),
	}
}

func (a *Admin) renderStoreError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	a.logger.Error("admin page failed", "op", op, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (a *Admin) writeStoreError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	a.logger.Error("admin api failed", "op", op, "error", err)
	writeJSONError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
