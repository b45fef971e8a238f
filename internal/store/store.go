// Package store provides message and conversation persistence.
package store

import (
	"context"
	"errors"

	"github.com/alicelabs/alice-chat/internal/domain"
)

// ErrConversationNotFound is returned when a conversation ID is unknown.
var ErrConversationNotFound = errors.New("conversation not found")

// Store is the relational-store surface the message exchange consumes:
// insert a message row and get back the canonical stored row, plus the
// conversation bookkeeping around it.
type Store interface {
	// CreateConversation records a new conversation.
	CreateConversation(ctx context.Context, conv domain.Conversation) error

	// GetConversation retrieves a conversation by ID. Returns
	// ErrConversationNotFound if it does not exist.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)

	// InsertMessage stores a message row and returns the canonical stored
	// row, including the assigned identifier and timestamp.
	InsertMessage(ctx context.Context, msg domain.Message) (*domain.Message, error)

	// ListMessages returns a conversation's messages in insertion order.
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
