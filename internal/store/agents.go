// ABOUTME: Agent and business persistence backing the permission resolver
// ABOUTME: Agent records are scoped to one business via a (user_id, business_id) unique pair

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateAgent persists an agent record for a business
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *Agent) error {
	query := `
		INSERT INTO agents (agent_id, user_id, business_id, display_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		agent.ID,
		agent.UserID,
		agent.BusinessID,
		agent.DisplayName,
		agent.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting agent: %w", err)
	}

	s.logger.Debug("agent created", "agent_id", agent.ID, "business_id", agent.BusinessID)
	return nil
}

// GetAgentByUser looks up the agent record for a user within a business.
// Returns ErrNotFound when the user is not an agent of that business.
func (s *SQLiteStore) GetAgentByUser(ctx context.Context, userID, businessID string) (*Agent, error) {
	query := `
		SELECT agent_id, user_id, business_id, display_name, created_at
		FROM agents
		WHERE user_id = ? AND business_id = ?
	`

	agent := &Agent{}
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, userID, businessID).Scan(
		&agent.ID,
		&agent.UserID,
		&agent.BusinessID,
		&agent.DisplayName,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying agent: %w", err)
	}

	if agent.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return agent, nil
}

// CreateBusiness persists a new business
func (s *SQLiteStore) CreateBusiness(ctx context.Context, biz *Business) error {
	query := `
		INSERT INTO businesses (business_id, owner_user_id, name, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		biz.ID,
		biz.OwnerUserID,
		biz.Name,
		biz.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting business: %w", err)
	}

	s.logger.Debug("business created", "business_id", biz.ID)
	return nil
}

// GetBusiness retrieves a business by ID
func (s *SQLiteStore) GetBusiness(ctx context.Context, id string) (*Business, error) {
	query := `
		SELECT business_id, owner_user_id, name, created_at
		FROM businesses
		WHERE business_id = ?
	`

	biz := &Business{}
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&biz.ID,
		&biz.OwnerUserID,
		&biz.Name,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying business: %w", err)
	}

	if biz.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return biz, nil
}
