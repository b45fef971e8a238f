package domain

import (
	"time"

	"github.com/google/uuid"
)

// GuestConversationPrefix marks guest conversation identifiers on the wire.
// It exists for client compatibility only; code branches on Owner, never on
// the prefix.
const GuestConversationPrefix = "chat_guest_"

// OwnerKind distinguishes guest conversations from member conversations.
type OwnerKind string

const (
	// OwnerGuest marks a conversation not tied to any authenticated account.
	// Its messages live only in process memory.
	OwnerGuest OwnerKind = "guest"
	// OwnerMember marks a conversation owned by an authenticated user. Its
	// messages are persisted.
	OwnerMember OwnerKind = "member"
)

// Owner identifies who a conversation belongs to. The kind is decided once
// at creation and carried with the conversation, so call sites branch on it
// instead of re-deriving guest status from identifier inspection.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	// UserID is the identity-provider user ID for members, or the anonymous
	// guest client ID for guests.
	UserID string `json:"user_id"`
}

// IsGuest reports whether the owner is a guest.
func (o Owner) IsGuest() bool {
	return o.Kind == OwnerGuest
}

// GuestOwner returns an Owner for a guest client.
func GuestOwner(guestID string) Owner {
	return Owner{Kind: OwnerGuest, UserID: guestID}
}

// MemberOwner returns an Owner for an authenticated user.
func MemberOwner(userID string) Owner {
	return Owner{Kind: OwnerMember, UserID: userID}
}

// Conversation is an ordered, append-only sequence of messages belonging to
// a single owner. Conversations are created on the "new chat" action and
// never deleted by this code.
type Conversation struct {
	ID        string    `json:"id"`
	Owner     Owner     `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

// NewGuestConversation creates a conversation for a guest client with a
// locally generated identifier.
func NewGuestConversation(guestID string) Conversation {
	return Conversation{
		ID:        GuestConversationPrefix + uuid.NewString(),
		Owner:     GuestOwner(guestID),
		CreatedAt: time.Now(),
	}
}

// NewMemberConversation creates a conversation owned by an authenticated
// user.
func NewMemberConversation(userID string) Conversation {
	return Conversation{
		ID:        uuid.NewString(),
		Owner:     MemberOwner(userID),
		CreatedAt: time.Now(),
	}
}
