package api

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/chatcheckout/internal/domain"
	"github.com/ashureev/chatcheckout/internal/identity"
)

// maxMessageRunes bounds a single chat message.
const maxMessageRunes = 2000

// PaymentSecretHeader carries the shared secret on payment confirmations.
const PaymentSecretHeader = "X-Payment-Secret"

// ChatHandler serves the chat turn endpoints.
type ChatHandler struct {
	engine        ChatEngine
	limiter       *RateLimiter
	logger        *slog.Logger
	confirmSecret []byte
}

// NewChatHandler creates a ChatHandler. limiter may be nil.
func NewChatHandler(engine ChatEngine, limiter *RateLimiter, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{engine: engine, limiter: limiter, logger: logger}
}

// WithConfirmSecret sets the secret the payment processor must present to
// confirm a card payment. Without one, confirmations are refused.
func (h *ChatHandler) WithConfirmSecret(secret string) *ChatHandler {
	h.confirmSecret = []byte(secret)
	return h
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Middleware)
		}
		r.Post("/turn", h.Turn)
		r.Post("/payment/confirm", h.ConfirmPayment)
		r.Get("/session", h.GetSession)
		r.Delete("/session", h.DeleteSession)
	})
}

// Turn handles one inbound chat message.
func (h *ChatHandler) Turn(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !h.prepare(w, r, &req, "http") {
		return
	}
	JSON(w, http.StatusOK, h.engine.HandleTurn(r.Context(), req))
}

// prepare fills the session id from the request context and validates req.
func (h *ChatHandler) prepare(w http.ResponseWriter, r *http.Request, req *domain.ChatRequest, channel string) bool {
	if req.SessionID == "" {
		req.SessionID = identity.SessionIDFromContext(r.Context())
	} else {
		req.SessionID = identity.SanitizeSessionID(req.SessionID)
	}
	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "invalid session id")
		return false
	}
	if utf8.RuneCountInString(req.Message) > maxMessageRunes {
		Error(w, http.StatusRequestEntityTooLarge, "message too long")
		return false
	}
	req.Channel = channel
	return true
}

type confirmPaymentRequest struct {
	SessionID string `json:"sessionId"`
}

// ConfirmPayment records a card payment confirmed by the processor.
func (h *ChatHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	if len(h.confirmSecret) == 0 {
		Error(w, http.StatusForbidden, "payment confirmation disabled")
		return
	}
	given := []byte(r.Header.Get(PaymentSecretHeader))
	if subtle.ConstantTimeCompare(given, h.confirmSecret) != 1 {
		h.logger.Warn("Rejected payment confirmation", "remote_addr", r.RemoteAddr)
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body confirmPaymentRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &body); err != nil {
			Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	sessionID := h.sessionID(r, body.SessionID)
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "invalid session id")
		return
	}

	resp, err := h.engine.ConfirmPayment(r.Context(), sessionID)
	if err != nil {
		h.writeEngineError(w, sessionID, err)
		return
	}
	slog.Info("Payment confirmed", "session_id", sessionID)
	JSON(w, http.StatusOK, resp)
}

// GetSession returns a snapshot of the caller's session.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(r, r.URL.Query().Get("sessionId"))
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "invalid session id")
		return
	}
	sess, err := h.engine.Snapshot(r.Context(), sessionID)
	if err != nil {
		h.writeEngineError(w, sessionID, err)
		return
	}
	JSON(w, http.StatusOK, sess)
}

// DeleteSession disposes of the caller's session.
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(r, r.URL.Query().Get("sessionId"))
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if err := h.engine.Dispose(r.Context(), sessionID); err != nil {
		h.writeEngineError(w, sessionID, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "disposed"})
}

func (h *ChatHandler) sessionID(r *http.Request, explicit string) string {
	if strings.TrimSpace(explicit) != "" {
		return identity.SanitizeSessionID(explicit)
	}
	return identity.SessionIDFromContext(r.Context())
}

func (h *ChatHandler) writeEngineError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		Error(w, http.StatusNotFound, "session not found")
	case errors.Is(err, domain.ErrInvalidInput):
		Error(w, http.StatusConflict, "session is not awaiting this action")
	default:
		h.logger.Error("chat request failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
