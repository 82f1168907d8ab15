// ABOUTME: HTTP API handlers for conversation actions and channel webhooks
// ABOUTME: Bearer-token authenticated JSON endpoints backed by the conversation service

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/impulsalab/crm-core/internal/auth"
	"github.com/impulsalab/crm-core/internal/conversation"
	"github.com/impulsalab/crm-core/internal/ingest"
	"github.com/impulsalab/crm-core/internal/store"
)

// SendMessageRequest is the JSON request body for POST /api/conversations/{id}/messages.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// AssignAgentRequest is the JSON request body for PUT /api/conversations/{id}/agent.
// A null agent_id clears the assignment.
type AssignAgentRequest struct {
	AgentID *string `json:"agent_id"`
}

// WebhookRequest is the JSON request body for POST /webhooks/{channel}.
type WebhookRequest struct {
	NativeID       string  `json:"native_id"`
	ConversationID string  `json:"conversation_id"`
	Role           string  `json:"role"`
	PartType       string  `json:"part_type"`
	Payload        string  `json:"payload"`
	MediaURL       *string `json:"media_url,omitempty"`
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations", s.withActor(s.handleListConversations))
	mux.HandleFunc("GET /api/conversations/{id}", s.withActor(s.handleGetConversation))
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.withActor(s.handleListMessages))
	mux.HandleFunc("POST /api/conversations/{id}/messages", s.withActor(s.handleSendMessage))
	mux.HandleFunc("POST /api/conversations/{id}/pause", s.withActor(s.transitionHandler(s.conversation.Pause)))
	mux.HandleFunc("POST /api/conversations/{id}/resume", s.withActor(s.transitionHandler(s.conversation.Resume)))
	mux.HandleFunc("POST /api/conversations/{id}/archive", s.withActor(s.transitionHandler(s.conversation.Archive)))
	mux.HandleFunc("POST /api/conversations/{id}/unarchive", s.withActor(s.transitionHandler(s.conversation.Unarchive)))
	mux.HandleFunc("PUT /api/conversations/{id}/agent", s.withActor(s.handleAssignAgent))

	// Channel webhooks authenticate with provider secrets at the edge, not
	// actor tokens.
	mux.HandleFunc("POST /webhooks/{channel}", s.handleWebhook)
}

// withActor verifies the bearer token and stores the actor in the request
// context.
func (s *Server) withActor(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "bearer token required")
			return
		}

		actor, err := s.verifier.Verify(tokenString)
		if err != nil {
			s.logger.Debug("token rejected", "error", err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r.WithContext(auth.WithActor(r.Context(), actor)))
	}
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	businessID := r.URL.Query().Get("business")
	if businessID == "" {
		writeError(w, http.StatusBadRequest, "business query parameter required")
		return
	}
	status := store.ConversationStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	convs, err := s.conversation.List(r.Context(), businessID, status, 0)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.conversation.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	result, err := s.conversation.History(r.Context(), r.PathValue("id"), 0, r.URL.Query().Get("cursor"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":    result.Messages,
		"next_cursor": result.NextCursor,
		"has_more":    result.HasMore,
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	actor := auth.MustFromContext(r.Context())
	msg, err := s.conversation.SendMessage(r.Context(), actor, r.PathValue("id"), req.Text)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// transitionHandler adapts one lifecycle action to an HTTP handler.
func (s *Server) transitionHandler(action func(ctx context.Context, actor *auth.ActorContext, id string) (*store.Conversation, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := auth.MustFromContext(r.Context())
		conv, err := action(r.Context(), actor, r.PathValue("id"))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

func (s *Server) handleAssignAgent(w http.ResponseWriter, r *http.Request) {
	var req AssignAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	actor := auth.MustFromContext(r.Context())
	conv, err := s.conversation.AssignAgent(r.Context(), actor, r.PathValue("id"), req.AgentID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// handleWebhook ingests one inbound delivery from a channel provider.
// Redeliveries return 200 so the provider stops retrying.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	channel := store.Channel(r.PathValue("channel"))
	if !channel.Valid() {
		writeError(w, http.StatusNotFound, "unknown channel")
		return
	}

	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := s.ingest.Ingest(r.Context(), ingest.InboundMessage{
		Channel:        channel,
		NativeID:       req.NativeID,
		ConversationID: req.ConversationID,
		Role:           store.MessageRole(req.Role),
		PartType:       store.PartType(req.PartType),
		Payload:        req.Payload,
		MediaURL:       req.MediaURL,
	})
	switch {
	case errors.Is(err, ingest.ErrDuplicateDelivery):
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
	case errors.Is(err, ingest.ErrConversationClosed):
		writeError(w, http.StatusConflict, "conversation is closed")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusCreated, msg)
	}
}

// writeServiceError maps service errors to HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, conversation.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, conversation.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, conversation.ErrClosedConversation):
		writeError(w, http.StatusConflict, "conversation is closed")
	case errors.Is(err, store.ErrStaleConversation):
		writeError(w, http.StatusConflict, "conversation changed concurrently")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
