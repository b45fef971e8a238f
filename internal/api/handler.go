// Package api provides HTTP handlers for the chat API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/alicelabs/alice-chat/internal/chat"
	"github.com/alicelabs/alice-chat/internal/config"
)

// Handler provides common handler utilities.
type Handler struct {
	exchange *chat.Exchange
	cfg      *config.Config
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(exchange *chat.Exchange, cfg *config.Config) *Handler {
	return &Handler{
		exchange: exchange,
		cfg:      cfg,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
