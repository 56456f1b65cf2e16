package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/chatcheckout/internal/domain"
)

func TestWebSocketTurns(t *testing.T) {
	engine := &fakeEngine{}
	srv := httptest.NewServer(newTestRouter(engine, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat?session_id=ws-1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	for _, msg := range []string{"Bonjour", "Je veux l'acheter"} {
		require.NoError(t, wsjson.Write(ctx, conn, domain.ChatRequest{Message: msg, ProductID: "couple-quiz"}))
		var resp domain.ChatResponse
		require.NoError(t, wsjson.Read(ctx, conn, &resp))
		assert.Equal(t, "echo: "+msg, resp.Message)
	}

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{oops")))
	var bad wsError
	require.NoError(t, wsjson.Read(ctx, conn, &bad))
	assert.Equal(t, "invalid message", bad.Error)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))

	engine.mu.Lock()
	defer engine.mu.Unlock()
	require.Len(t, engine.turns, 2)
	assert.Equal(t, "ws-1", engine.turns[0].SessionID)
	assert.Equal(t, "websocket", engine.turns[0].Channel)
}

func TestWebSocketRateLimited(t *testing.T) {
	engine := &fakeEngine{}
	srv := httptest.NewServer(newTestRouter(engine, NewRateLimiter(1, time.Hour)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/chat?session_id=ws-2", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, wsjson.Write(ctx, conn, domain.ChatRequest{Message: "un"}))
	var first domain.ChatResponse
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	assert.Equal(t, "echo: un", first.Message)

	require.NoError(t, wsjson.Write(ctx, conn, domain.ChatRequest{Message: "deux"}))
	var limited wsError
	require.NoError(t, wsjson.Read(ctx, conn, &limited))
	assert.Contains(t, limited.Error, "too many")
}
