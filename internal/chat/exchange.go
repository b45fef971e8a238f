// Package chat implements the message exchange between the user and the
// assistant.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alicelabs/alice-chat/internal/config"
	"github.com/alicelabs/alice-chat/internal/domain"
	"github.com/alicelabs/alice-chat/internal/inference"
	"github.com/alicelabs/alice-chat/internal/store"
)

// ErrEmptyMessage is surfaced when a submitted message is empty after
// trimming.
var ErrEmptyMessage = errors.New("message cannot be empty")

// Completer produces an assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []inference.ChatMessage) (string, error)
}

// Exchange appends human messages to a conversation and requests assistant
// replies for them. Member conversations are persisted through the member
// store; guest conversations live in the guest store only and never touch
// persistence.
//
// Submissions are serialized per conversation: a second submission waits for
// the in-flight one instead of racing ahead of it.
type Exchange struct {
	members store.Store
	guests  store.Store
	llm     Completer
	persona config.Persona

	locks sync.Map // conversation ID -> *sync.Mutex
}

// NewExchange creates a message exchange.
func NewExchange(members, guests store.Store, llm Completer, persona config.Persona) *Exchange {
	return &Exchange{
		members: members,
		guests:  guests,
		llm:     llm,
		persona: persona,
	}
}

func (e *Exchange) storeFor(conv *domain.Conversation) store.Store {
	if conv.Owner.IsGuest() {
		return e.guests
	}
	return e.members
}

func (e *Exchange) lock(conversationID string) *sync.Mutex {
	v, _ := e.locks.LoadOrStore(conversationID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// NewConversation creates a conversation for the owner in the appropriate
// store.
func (e *Exchange) NewConversation(ctx context.Context, owner domain.Owner) (*domain.Conversation, error) {
	var conv domain.Conversation
	if owner.IsGuest() {
		conv = domain.NewGuestConversation(owner.UserID)
	} else {
		conv = domain.NewMemberConversation(owner.UserID)
	}

	if err := e.storeFor(&conv).CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &conv, nil
}

// Conversation resolves a conversation by ID, checking the guest store
// first.
func (e *Exchange) Conversation(ctx context.Context, id string) (*domain.Conversation, error) {
	conv, err := e.guests.GetConversation(ctx, id)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrConversationNotFound) {
		return nil, err
	}
	return e.members.GetConversation(ctx, id)
}

// Messages returns the conversation's messages in insertion order.
func (e *Exchange) Messages(ctx context.Context, conv *domain.Conversation) ([]domain.Message, error) {
	return e.storeFor(conv).ListMessages(ctx, conv.ID)
}

// SubmitMessage appends a human-authored message to the conversation and
// returns the stored entry. On store failure nothing is appended; there is
// no optimistic entry to roll back.
func (e *Exchange) SubmitMessage(ctx context.Context, conv *domain.Conversation, content string) (*domain.Message, error) {
	mu := e.lock(conv.ID)
	mu.Lock()
	defer mu.Unlock()
	return e.submit(ctx, conv, content)
}

func (e *Exchange) submit(ctx context.Context, conv *domain.Conversation, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	msg := domain.Message{
		Content:        content,
		IsAI:           false,
		ConversationID: conv.ID,
	}
	if !conv.Owner.IsGuest() {
		msg.UserID = conv.Owner.UserID
	}

	stored, err := e.storeFor(conv).InsertMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	return stored, nil
}

// RequestAssistantReply asks the inference endpoint for a reply to userText,
// appends it to the conversation, and returns the stored entry. On endpoint
// or store failure nothing is appended and no retry is attempted.
func (e *Exchange) RequestAssistantReply(ctx context.Context, conv *domain.Conversation, userText string) (*domain.Message, error) {
	mu := e.lock(conv.ID)
	mu.Lock()
	defer mu.Unlock()
	return e.reply(ctx, conv, userText)
}

func (e *Exchange) reply(ctx context.Context, conv *domain.Conversation, userText string) (*domain.Message, error) {
	history, err := e.storeFor(conv).ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	turns := make([]inference.ChatMessage, 0, len(history)+2)
	turns = append(turns, inference.ChatMessage{
		Role:    inference.RoleSystem,
		Content: e.persona.SystemPrompt,
	})
	for _, m := range history {
		role := inference.RoleUser
		if m.IsAI {
			role = inference.RoleAssistant
		}
		turns = append(turns, inference.ChatMessage{Role: role, Content: m.Content})
	}
	// The submitted text is usually already the last history entry; only
	// append it when the reply is requested standalone.
	if n := len(history); n == 0 || history[n-1].IsAI || history[n-1].Content != userText {
		turns = append(turns, inference.ChatMessage{Role: inference.RoleUser, Content: userText})
	}

	replyText, err := e.llm.Complete(ctx, turns)
	if err != nil {
		return nil, err
	}

	msg := domain.Message{
		Content:        replyText,
		IsAI:           true,
		ConversationID: conv.ID,
	}
	if !conv.Owner.IsGuest() {
		msg.UserID = conv.Owner.UserID
	}

	stored, err := e.storeFor(conv).InsertMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("save assistant reply: %w", err)
	}
	return stored, nil
}

// Send performs one full submission round trip: the human message is
// appended first, then the assistant reply is requested. The two calls are
// never issued concurrently for the same submission, and on submit failure
// the reply is not requested at all. A non-nil user message with a reply
// error means the human message was stored but the reply failed.
func (e *Exchange) Send(ctx context.Context, conv *domain.Conversation, content string) (userMsg, replyMsg *domain.Message, err error) {
	mu := e.lock(conv.ID)
	mu.Lock()
	defer mu.Unlock()

	userMsg, err = e.submit(ctx, conv, content)
	if err != nil {
		return nil, nil, err
	}

	replyMsg, err = e.reply(ctx, conv, userMsg.Content)
	if err != nil {
		return userMsg, nil, err
	}
	return userMsg, replyMsg, nil
}
