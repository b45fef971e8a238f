package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alicelabs/alice-chat/internal/chat"
	"github.com/alicelabs/alice-chat/internal/domain"
	"github.com/alicelabs/alice-chat/internal/store"
)

// ChatHandler handles conversation endpoints.
type ChatHandler struct {
	*Handler
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(base *Handler) *ChatHandler {
	return &ChatHandler{Handler: base}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chats", func(r chi.Router) {
		r.Post("/", h.CreateChat)
		r.Get("/{chatID}/messages", h.ListMessages)
		r.Post("/{chatID}/messages", h.SendMessage)
	})
}

// resolveConversation looks the conversation up and checks the requesting
// client owns it.
func (h *ChatHandler) resolveConversation(w http.ResponseWriter, r *http.Request) (*domain.Conversation, bool) {
	owner, ok := OwnerFromContext(r.Context())
	if !ok {
		Error(w, http.StatusInternalServerError, "client identity missing")
		return nil, false
	}

	chatID := chi.URLParam(r, "chatID")
	conv, err := h.exchange.Conversation(r.Context(), chatID)
	if errors.Is(err, store.ErrConversationNotFound) {
		Error(w, http.StatusNotFound, "chat not found")
		return nil, false
	}
	if err != nil {
		slog.Error("Failed to resolve conversation", "error", err, "chat_id", chatID)
		Error(w, http.StatusInternalServerError, "failed to load chat")
		return nil, false
	}

	if conv.Owner != owner {
		Error(w, http.StatusForbidden, "chat belongs to another user")
		return nil, false
	}
	return conv, true
}

// CreateChat starts a new conversation for the requesting client.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	owner, ok := OwnerFromContext(r.Context())
	if !ok {
		Error(w, http.StatusInternalServerError, "client identity missing")
		return
	}

	conv, err := h.exchange.NewConversation(r.Context(), owner)
	if err != nil {
		slog.Error("Failed to create conversation", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create chat")
		return
	}
	JSON(w, http.StatusCreated, conv)
}

// ListMessages returns the conversation's messages in order.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.resolveConversation(w, r)
	if !ok {
		return
	}

	messages, err := h.exchange.Messages(r.Context(), conv)
	if err != nil {
		slog.Error("Failed to list messages", "error", err, "chat_id", conv.ID)
		Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type sendMessageResponse struct {
	UserMessage      *domain.Message `json:"user_message"`
	AssistantMessage *domain.Message `json:"assistant_message,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// SendMessage performs one submission round trip: append the human message,
// then request and append the assistant reply.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.resolveConversation(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	userMsg, replyMsg, err := h.exchange.Send(r.Context(), conv, req.Content)
	if errors.Is(err, chat.ErrEmptyMessage) {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil && userMsg == nil {
		slog.Error("Failed to send message", "error", err, "chat_id", conv.ID)
		Error(w, http.StatusInternalServerError, "Failed to send message. Please try again.")
		return
	}
	if err != nil {
		// The human message was stored but the assistant reply failed; the
		// client keeps the message and shows the error.
		slog.Error("Failed to get assistant reply", "error", err, "chat_id", conv.ID)
		JSON(w, http.StatusBadGateway, sendMessageResponse{
			UserMessage: userMsg,
			Error:       err.Error(),
		})
		return
	}

	JSON(w, http.StatusOK, sendMessageResponse{
		UserMessage:      userMsg,
		AssistantMessage: replyMsg,
	})
}
