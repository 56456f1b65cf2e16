// Package api provides HTTP and WebSocket handlers for the chat API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ashureev/chatcheckout/internal/domain"
)

// maxBodyBytes bounds inbound JSON bodies and WebSocket frames.
const maxBodyBytes = 64 << 10

// ChatEngine is the conversation engine behind the handlers.
type ChatEngine interface {
	HandleTurn(ctx context.Context, req domain.ChatRequest) domain.ChatResponse
	ConfirmPayment(ctx context.Context, sessionID string) (domain.ChatResponse, error)
	Snapshot(ctx context.Context, sessionID string) (*domain.ConversationSession, error)
	Dispose(ctx context.Context, sessionID string) error
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

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}
