package store

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/glebarez/go-sqlite"
)

// Message is one chat history row.
type Message struct {
	Role    string
	Content string
}

// CheckpointStore persists per-session conversation state and chat
// history in sqlite.
type CheckpointStore struct {
	DB *sql.DB
}

func NewCheckpointStore(dbPath string) (*CheckpointStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			state TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			role TEXT,
			content TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		_, err = db.Exec(q)
		if err != nil {
			return nil, err
		}
	}

	return &CheckpointStore{DB: db}, nil
}

// LoadState returns the checkpointed state blob for a session, or nil
// when the session has no checkpoint yet.
func (s *CheckpointStore) LoadState(sessionID string) ([]byte, error) {
	var state string
	err := s.DB.QueryRow(`SELECT state FROM sessions WHERE session_id = ?`, sessionID).Scan(&state)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(state), nil
}

// SaveState upserts the session checkpoint.
func (s *CheckpointStore) SaveState(sessionID string, blob []byte) error {
	query := `INSERT INTO sessions (session_id, state, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(session_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`
	_, err := s.DB.Exec(query, sessionID, string(blob))
	return err
}

func (s *CheckpointStore) AddMessage(sessionID string, role string, content string) error {
	query := `INSERT INTO messages (session_id, role, content) VALUES (?, ?, ?)`
	_, err := s.DB.Exec(query, sessionID, role, content)
	return err
}

// GetHistory returns up to limit messages for a session in chronological
// order.
func (s *CheckpointStore) GetHistory(sessionID string, limit int) ([]Message, error) {
	query := `SELECT role, content FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := s.DB.Query(query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, err
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	return history, nil
}

func (s *CheckpointStore) Close() error {
	return s.DB.Close()
}
