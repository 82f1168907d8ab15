// ABOUTME: Lead and pipeline column persistence for the kanban board
// ABOUTME: Stage moves and tag updates are single-row writes; order is not persisted

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CreateLead persists a new lead. Tags default to an empty set.
func (s *SQLiteStore) CreateLead(ctx context.Context, lead *Lead) error {
	tags := lead.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	query := `
		INSERT INTO leads (lead_id, business_id, name, phone, pipeline_id, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		lead.ID,
		lead.BusinessID,
		lead.Name,
		lead.Phone,
		lead.PipelineID,
		string(tagsJSON),
		lead.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting lead: %w", err)
	}

	s.logger.Debug("lead created", "lead_id", lead.ID, "pipeline_id", lead.PipelineID)
	return nil
}

const leadColumns = `lead_id, business_id, name, phone, pipeline_id, tags, created_at`

func scanLead(row interface{ Scan(...any) error }) (*Lead, error) {
	lead := &Lead{}
	var tagsJSON, createdAt string

	err := row.Scan(
		&lead.ID,
		&lead.BusinessID,
		&lead.Name,
		&lead.Phone,
		&lead.PipelineID,
		&tagsJSON,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &lead.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if lead.Tags == nil {
		lead.Tags = []string{}
	}
	if lead.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return lead, nil
}

// GetLead retrieves a lead by ID
func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE lead_id = ?`

	lead, err := scanLead(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying lead: %w", err)
	}
	return lead, nil
}

// ListLeads returns all leads for a business, oldest first
func (s *SQLiteStore) ListLeads(ctx context.Context, businessID string) ([]*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE business_id = ? ORDER BY created_at ASC, lead_id ASC`

	rows, err := s.db.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("querying leads: %w", err)
	}
	defer rows.Close()

	var leads []*Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning lead row: %w", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lead rows: %w", err)
	}

	return leads, nil
}

// UpdateLeadStage moves a lead to a different pipeline column. This is the
// only board mutation that persists; intra-column order is ephemeral.
func (s *SQLiteStore) UpdateLeadStage(ctx context.Context, leadID, pipelineID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET pipeline_id = ? WHERE lead_id = ?`,
		pipelineID, leadID,
	)
	if err != nil {
		return fmt.Errorf("updating lead stage: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Debug("lead stage updated", "lead_id", leadID, "pipeline_id", pipelineID)
	return nil
}

// UpdateLeadTags replaces the full tag set of a lead
func (s *SQLiteStore) UpdateLeadTags(ctx context.Context, leadID string, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET tags = ? WHERE lead_id = ?`,
		string(tagsJSON), leadID,
	)
	if err != nil {
		return fmt.Errorf("updating lead tags: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Debug("lead tags updated", "lead_id", leadID, "tags", tags)
	return nil
}

// CreatePipelineColumn persists a new pipeline stage
func (s *SQLiteStore) CreatePipelineColumn(ctx context.Context, col *PipelineColumn) error {
	query := `
		INSERT INTO pipeline_columns (pipeline_id, business_id, name, position)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, col.ID, col.BusinessID, col.Name, col.Position)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting pipeline column: %w", err)
	}

	s.logger.Debug("pipeline column created", "pipeline_id", col.ID, "name", col.Name)
	return nil
}

// ListPipelineColumns returns the columns of a business board in board order
func (s *SQLiteStore) ListPipelineColumns(ctx context.Context, businessID string) ([]*PipelineColumn, error) {
	query := `
		SELECT pipeline_id, business_id, name, position
		FROM pipeline_columns
		WHERE business_id = ?
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("querying pipeline columns: %w", err)
	}
	defer rows.Close()

	var cols []*PipelineColumn
	for rows.Next() {
		col := &PipelineColumn{}
		if err := rows.Scan(&col.ID, &col.BusinessID, &col.Name, &col.Position); err != nil {
			return nil, fmt.Errorf("scanning pipeline column row: %w", err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pipeline column rows: %w", err)
	}

	return cols, nil
}
