package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaVersion = "1"

// Store persists conversations to SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens the database at path and ensures the schema exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createConversationsTable := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		started_at DATETIME,
		agent TEXT,
		model TEXT
	);`

	createMessagesTable := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT,
		role TEXT,
		content TEXT,
		created_at DATETIME,
		FOREIGN KEY(conversation_id) REFERENCES conversations(id)
	);`

	createMetaTable := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT
	);`

	if _, err := db.Exec(createConversationsTable); err != nil {
		return nil, fmt.Errorf("failed to create conversations table: %w", err)
	}
	if _, err := db.Exec(createMessagesTable); err != nil {
		return nil, fmt.Errorf("failed to create messages table: %w", err)
	}
	if _, err := db.Exec(createMetaTable); err != nil {
		return nil, fmt.Errorf("failed to create meta table: %w", err)
	}
	if _, err := db.Exec("INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion); err != nil {
		return nil, fmt.Errorf("failed to record schema version: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Save upserts the conversation and rewrites its messages in one
// transaction.
func (s *Store) Save(ctx context.Context, conv *Conversation) error {
	msgs := conv.Messages()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO conversations (id, started_at, agent, model) VALUES (?, ?, ?, ?)",
		conv.ID, conv.StartedAt, conv.Agent, conv.Model,
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", conv.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	for _, msg := range msgs {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
			msg.ID, conv.ID, msg.Role, msg.Content, msg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("conversation saved", "conversation_id", conv.ID, "message_count", len(msgs))
	return nil
}

// Load reads a conversation and its messages by id.
func (s *Store) Load(ctx context.Context, id string) (*Conversation, error) {
	conv := &Conversation{ID: id}
	err := s.db.QueryRowContext(ctx,
		"SELECT started_at, agent, model FROM conversations WHERE id = ?", id).
		Scan(&conv.StartedAt, &conv.Agent, &conv.Model)
	if err != nil {
		return nil, fmt.Errorf("conversation not found: %w", err)
	}

	// ULIDs sort lexicographically by creation time.
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		conv.messages = append(conv.messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return conv, nil
}

// Summary is one row of the conversation listing.
type Summary struct {
	ID        string
	StartedAt time.Time
	Agent     string
	Messages  int
}

// Recent lists the latest conversations, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.started_at, c.agent, COUNT(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.started_at DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.StartedAt, &sum.Agent, &sum.Messages); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}

	return summaries, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
