// Package store exports reconstructed sessions to a SQLite database for
// offline search. The agent's own logs are never written.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"sessionvault/internal/types"
)

// SessionStore handles SQLite persistence for exported sessions
type SessionStore struct {
	db   *sql.DB
	path string
}

// StoredSession is one row of the sessions table
type StoredSession struct {
	ID           string
	Label        string
	ProjectDir   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// Open opens or creates a SQLite database at the given path
func Open(dbPath string) (*SessionStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open export database: %w", err)
	}

	// Create schema
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SessionStore{
		db:   db,
		path: dbPath,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			project_dir TEXT,
			created_at INTEGER,
			updated_at INTEGER,
			message_count INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			uuid TEXT NOT NULL,
			session_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			role TEXT,
			timestamp INTEGER,
			text TEXT,
			payload TEXT,
			PRIMARY KEY (session_id, position)
		);
		CREATE INDEX IF NOT EXISTS idx_messages_uuid ON messages(uuid);
		CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path
func (s *SessionStore) Path() string {
	return s.path
}

// Close closes the database connection
func (s *SessionStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ExportSessions upserts sessions and replaces their messages in one
// transaction. Re-exporting a session overwrites its previous rows.
func (s *SessionStore) ExportSessions(ctx context.Context, sessions []types.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	defer tx.Rollback()

	for _, sess := range sessions {
		if err := exportSession(ctx, tx, sess); err != nil {
			return fmt.Errorf("export session %s: %w", sess.ID, err)
		}
	}
	return tx.Commit()
}

func exportSession(ctx context.Context, tx *sql.Tx, sess types.Session) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, label, project_dir, created_at, updated_at, message_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			project_dir = excluded.project_dir,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			message_count = excluded.message_count
	`, sess.ID, sess.Label, sess.ProjectDir, unixMilli(sess.CreatedAt), unixMilli(sess.Timestamp), sess.MessageCount())
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sess.ID); err != nil {
		return err
	}

	for i, msg := range sess.Messages {
		payload, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("encode message %s: %w", msg.UUID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (uuid, session_id, position, role, timestamp, text, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, msg.UUID, sess.ID, i, msg.Role, unixMilli(msg.Timestamp), msg.Text(), string(payload))
		if err != nil {
			return err
		}
	}
	return nil
}

// GetSession returns a stored session by id, or nil if absent
func (s *SessionStore) GetSession(ctx context.Context, id string) (*StoredSession, error) {
	var (
		stored           StoredSession
		projectDir       sql.NullString
		created, updated sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, label, project_dir, created_at, updated_at, message_count
		FROM sessions WHERE id = ?
	`, id).Scan(&stored.ID, &stored.Label, &projectDir, &created, &updated, &stored.MessageCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	stored.ProjectDir = projectDir.String
	stored.CreatedAt = fromUnixMilli(created)
	stored.UpdatedAt = fromUnixMilli(updated)
	return &stored, nil
}

// GetMessageTexts returns a session's message texts in order
func (s *SessionStore) GetMessageTexts(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT text FROM messages WHERE session_id = ? ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	texts := []string{}
	for rows.Next() {
		var text sql.NullString
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		texts = append(texts, text.String)
	}
	return texts, rows.Err()
}

// GetSessionCount returns the number of exported sessions
func (s *SessionStore) GetSessionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count)
	return count, err
}

// unixMilli stores zero (invalid) instants as NULL
func unixMilli(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func fromUnixMilli(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}
