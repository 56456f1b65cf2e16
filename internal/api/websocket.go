package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/chatcheckout/internal/domain"
	"github.com/ashureev/chatcheckout/internal/identity"
)

const wsWriteTimeout = 10 * time.Second

// WebSocketHandler serves the chat turn contract over a WebSocket.
type WebSocketHandler struct {
	engine         ChatEngine
	limiter        *RateLimiter
	originPatterns []string
	logger         *slog.Logger
}

// NewWebSocketHandler creates a WebSocketHandler. limiter may be nil.
func NewWebSocketHandler(engine ChatEngine, limiter *RateLimiter, originPatterns []string, logger *slog.Logger) *WebSocketHandler {
	if len(originPatterns) == 0 {
		originPatterns = []string{"*"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{engine: engine, limiter: limiter, originPatterns: originPatterns, logger: logger}
}

// wsError is sent for frames that cannot become a turn.
type wsError struct {
	Error string `json:"error"`
}

// ServeHTTP upgrades the connection and answers each inbound turn in order.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Error("WebSocket accept failed", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			h.logger.Debug("WebSocket close failed", "error", closeErr)
		}
	}()
	ws.SetReadLimit(maxBodyBytes)

	visitor := visitorKey(r)
	sessionID := identity.SessionIDFromContext(r.Context())
	h.logger.Info("Chat WebSocket connected", "session_id", sessionID, "visitor", visitor)

	ctx := r.Context()
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Info("Chat WebSocket closed", "session_id", sessionID)
			} else {
				h.logger.Warn("Chat WebSocket read failed", "session_id", sessionID, "error", err)
			}
			return
		}

		var req domain.ChatRequest
		if typ != websocket.MessageText || json.Unmarshal(data, &req) != nil {
			if !h.write(ctx, ws, wsError{Error: "invalid message"}) {
				return
			}
			continue
		}

		if !h.limiter.Allow(visitor) {
			if !h.write(ctx, ws, wsError{Error: "too many messages, please slow down"}) {
				return
			}
			continue
		}
		if req.SessionID == "" {
			req.SessionID = sessionID
		} else {
			req.SessionID = identity.SanitizeSessionID(req.SessionID)
		}
		if req.SessionID == "" || utf8.RuneCountInString(req.Message) > maxMessageRunes {
			if !h.write(ctx, ws, wsError{Error: "invalid message"}) {
				return
			}
			continue
		}
		req.Channel = "websocket"

		if !h.write(ctx, ws, h.engine.HandleTurn(ctx, req)) {
			return
		}
	}
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, v interface{}) bool {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, ws, v); err != nil {
		h.logger.Warn("Chat WebSocket write failed", "error", err)
		return false
	}
	return true
}
