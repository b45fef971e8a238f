// Package domain contains core domain types for the ALICE chat application.
package domain

import "time"

// Message is a single entry in a conversation. Messages are append-only:
// once created they are never mutated, and insertion order is conversation
// order.
type Message struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	IsAI           bool      `json:"is_ai"`
	CreatedAt      time.Time `json:"created_at"`
	ConversationID string    `json:"chat_id"`
	UserID         string    `json:"user_id,omitempty"`
}
