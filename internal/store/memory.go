package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alicelabs/alice-chat/internal/domain"
)

// MemoryStore implements Store in process memory. It holds guest
// conversations, which live only for the lifetime of the server process.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
	}
}

// CreateConversation records a new conversation.
func (s *MemoryStore) CreateConversation(_ context.Context, conv domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = conv
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *MemoryStore) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return &conv, nil
}

// InsertMessage appends a message with a locally generated identifier and
// the current timestamp, returning the stored entry.
func (s *MemoryStore) InsertMessage(_ context.Context, msg domain.Message) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return nil, ErrConversationNotFound
	}

	stored := msg
	stored.ID = "msg_" + uuid.NewString()
	stored.CreatedAt = time.Now()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], stored)
	return &stored, nil
}

// ListMessages returns a conversation's messages in insertion order.
func (s *MemoryStore) ListMessages(_ context.Context, conversationID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
