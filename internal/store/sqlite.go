// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message/pipeline persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// timeFormat is RFC 3339 with fixed-width nanoseconds. The fixed width keeps
// lexicographic ORDER BY on timestamp columns equal to chronological order,
// which RFC3339Nano (trailing zeros trimmed) does not guarantee.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// createSchema creates all tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS businesses (
		business_id   TEXT PRIMARY KEY,
		owner_user_id TEXT NOT NULL,
		name          TEXT NOT NULL,
		created_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		agent_id     TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		business_id  TEXT NOT NULL REFERENCES businesses(business_id),
		display_name TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		UNIQUE(user_id, business_id)
	);

	CREATE TABLE IF NOT EXISTS pipeline_columns (
		pipeline_id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL REFERENCES businesses(business_id),
		name        TEXT NOT NULL,
		position    INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leads (
		lead_id     TEXT PRIMARY KEY,
		business_id TEXT NOT NULL REFERENCES businesses(business_id),
		name        TEXT NOT NULL,
		phone       TEXT NOT NULL DEFAULT '',
		pipeline_id TEXT NOT NULL REFERENCES pipeline_columns(pipeline_id),
		tags        TEXT NOT NULL DEFAULT '[]',
		created_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		conversation_id   TEXT PRIMARY KEY,
		business_id       TEXT NOT NULL REFERENCES businesses(business_id),
		lead_id           TEXT NOT NULL REFERENCES leads(lead_id),
		channel           TEXT NOT NULL,
		status            TEXT NOT NULL,
		assigned_agent_id TEXT,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		message_id      TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(conversation_id),
		role            TEXT NOT NULL,
		part_type       TEXT NOT NULL,
		payload         TEXT NOT NULL,
		media_url       TEXT,
		created_at      TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_business ON conversations(business_id, status);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_leads_business ON leads(business_id);
	CREATE INDEX IF NOT EXISTS idx_pipeline_business ON pipeline_columns(business_id, position);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
