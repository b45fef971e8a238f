package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/alicelabs/alice-chat/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite. It holds member conversations;
// guest conversations never reach it.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		content TEXT NOT NULL,
		is_ai INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateConversation records a new member conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv domain.Conversation) error {
	query := `INSERT INTO conversations (id, user_id, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, conv.ID, conv.Owner.UserID, conv.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	query := `SELECT id, user_id, created_at FROM conversations WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)

	var conv domain.Conversation
	var userID string
	var createdAt int64

	err := row.Scan(&conv.ID, &userID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation row: %w", err)
	}

	conv.Owner = domain.MemberOwner(userID)
	conv.CreatedAt = time.Unix(createdAt, 0)
	return &conv, nil
}

// InsertMessage stores a message row and returns the canonical stored row.
// The identifier and timestamp are assigned here, not by the caller.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg domain.Message) (*domain.Message, error) {
	stored := msg
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now()

	query := `
	INSERT INTO messages (id, conversation_id, user_id, content, is_ai, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		stored.ID, stored.ConversationID, stored.UserID,
		stored.Content, stored.IsAI, stored.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return &stored, nil
}

// ListMessages returns a conversation's messages in insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	query := `
		SELECT id, conversation_id, user_id, content, is_ai, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var createdAt int64

		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.UserID,
			&msg.Content, &msg.IsAI, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		msg.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
