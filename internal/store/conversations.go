// ABOUTME: Conversation persistence for the SQLite store
// ABOUTME: Create/read/list plus compare-and-swap status and agent updates

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateConversation persists a new conversation. Returns ErrDuplicateID if
// a conversation with the same ID already exists.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	if !conv.Status.Valid() {
		return fmt.Errorf("invalid status %q", conv.Status)
	}

	query := `
		INSERT INTO conversations (conversation_id, business_id, lead_id, channel, status, assigned_agent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.BusinessID,
		conv.LeadID,
		string(conv.Channel),
		string(conv.Status),
		conv.AssignedAgentID,
		conv.CreatedAt.UTC().Format(timeFormat),
		conv.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("conversation created",
		"conversation_id", conv.ID,
		"business_id", conv.BusinessID,
		"channel", conv.Channel)
	return nil
}

const conversationColumns = `conversation_id, business_id, lead_id, channel, status, assigned_agent_id, created_at, updated_at`

// scanConversation scans one conversation row
func scanConversation(row interface{ Scan(...any) error }) (*Conversation, error) {
	conv := &Conversation{}
	var channel, status, createdAt, updatedAt string

	err := row.Scan(
		&conv.ID,
		&conv.BusinessID,
		&conv.LeadID,
		&channel,
		&status,
		&conv.AssignedAgentID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	conv.Channel = Channel(channel)
	conv.Status = ConversationStatus(status)
	if conv.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if conv.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE conversation_id = ?`

	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns conversations for a business, most recently
// updated first. An empty status matches all statuses.
func (s *SQLiteStore) ListConversations(ctx context.Context, businessID string, status ConversationStatus, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE business_id = ?`
	args := []any{businessID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}

	return convs, nil
}

// UpdateConversationStatus transitions a conversation from one status to
// another as a compare-and-swap. The WHERE clause on the expected `from`
// status makes the transition atomic: if the row moved on concurrently,
// zero rows match and ErrStaleConversation is returned.
func (s *SQLiteStore) UpdateConversationStatus(ctx context.Context, id string, from, to ConversationStatus) (*Conversation, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("invalid status %q", to)
	}

	query := `
		UPDATE conversations
		SET status = ?, updated_at = ?
		WHERE conversation_id = ? AND status = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		string(to),
		time.Now().UTC().Format(timeFormat),
		id,
		string(from),
	)
	if err != nil {
		return nil, fmt.Errorf("updating conversation status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		// Distinguish a missing row from a lost race
		if _, getErr := s.GetConversation(ctx, id); getErr == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, ErrStaleConversation
	}

	s.logger.Debug("conversation status updated",
		"conversation_id", id,
		"from", from,
		"to", to)

	return s.GetConversation(ctx, id)
}

// UpdateConversationAgent sets or clears the assigned agent without touching
// the lifecycle status.
func (s *SQLiteStore) UpdateConversationAgent(ctx context.Context, id string, agentID *string) (*Conversation, error) {
	query := `
		UPDATE conversations
		SET assigned_agent_id = ?, updated_at = ?
		WHERE conversation_id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		agentID,
		time.Now().UTC().Format(timeFormat),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating conversation agent: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	s.logger.Debug("conversation agent updated", "conversation_id", id)
	return s.GetConversation(ctx, id)
}
