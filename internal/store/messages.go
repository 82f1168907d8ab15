// ABOUTME: Message persistence for conversation transcripts
// ABOUTME: Append-only inserts and cursor-paginated chronological reads

package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SaveMessage persists a message. Messages are immutable: there is no update
// path, and inserting an existing ID returns ErrDuplicateID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (message_id, conversation_id, role, part_type, payload, media_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		string(msg.Role),
		string(msg.PartType),
		msg.Payload,
		msg.MediaURL,
		msg.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("message saved",
		"message_id", msg.ID,
		"conversation_id", msg.ConversationID,
		"role", msg.Role,
		"part_type", msg.PartType)
	return nil
}

const messageColumns = `message_id, conversation_id, role, part_type, payload, media_url, created_at`

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	msg := &Message{}
	var role, partType, createdAt string

	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&role,
		&partType,
		&msg.Payload,
		&msg.MediaURL,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Role = MessageRole(role)
	msg.PartType = PartType(partType)
	if msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return msg, nil
}

// GetMessage retrieves a single message by ID
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE message_id = ?`

	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}
	return msg, nil
}

// encodeCursor creates an opaque cursor string from a timestamp and message ID.
// Format is base64(timestamp_rfc3339nano|message_id)
func encodeCursor(ts time.Time, id string) string {
	data := fmt.Sprintf("%s|%s", ts.UTC().Format(timeFormat), id)
	return base64.StdEncoding.EncodeToString([]byte(data))
}

// decodeCursor parses an opaque cursor string into a timestamp and message ID.
func decodeCursor(cursor string) (time.Time, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("invalid cursor format: expected timestamp|message_id")
	}

	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor timestamp: %w", err)
	}

	return ts, parts[1], nil
}

// ListMessages retrieves one page of a conversation transcript in
// chronological order (oldest first) with cursor pagination.
func (s *SQLiteStore) ListMessages(ctx context.Context, p ListMessagesParams) (*ListMessagesResult, error) {
	if p.ConversationID == "" {
		return nil, errors.New("conversation_id required")
	}

	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 500 {
		p.Limit = 500
	}

	var cursorTS time.Time
	var cursorID string
	if p.Cursor != "" {
		var err error
		cursorTS, cursorID, err = decodeCursor(p.Cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?`
	args := []any{p.ConversationID}

	if p.Cursor != "" {
		query += ` AND (created_at > ? OR (created_at = ? AND message_id > ?))`
		ts := cursorTS.UTC().Format(timeFormat)
		args = append(args, ts, ts, cursorID)
	}

	// Secondary order on message_id keeps pagination deterministic when
	// multiple messages share a timestamp
	query += ` ORDER BY created_at ASC, message_id ASC LIMIT ?`
	args = append(args, p.Limit+1) // fetch one extra to detect more pages

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	hasMore := len(messages) > p.Limit
	if hasMore {
		messages = messages[:p.Limit]
	}

	result := &ListMessagesResult{
		Messages: messages,
		HasMore:  hasMore,
	}
	if hasMore && len(messages) > 0 {
		last := messages[len(messages)-1]
		result.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}

	return result, nil
}
