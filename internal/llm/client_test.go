package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientComplete(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"  Bonjour !  "}}]}`)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL + "/", APIKey: "secret", Model: "gpt-test", Timeout: time.Second})
	text, err := c.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "Tu es une vendeuse.",
		Messages:     []Message{{Role: "user", Content: "Salut"}},
		Temperature:  0.7,
		MaxTokens:    200,
		JSON:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour !", text)

	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
	require.NotNil(t, got.MaxTokens)
	assert.Equal(t, 200, *got.MaxTokens)
}

func TestClientQuotaExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"quota","type":"insufficient_quota"}}`)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, Timeout: time.Second})
	_, err := c.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, Timeout: time.Second})
	_, err := c.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_request_error")
}

func TestClientEmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, Timeout: time.Second})
	_, err := c.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Complete(context.Background(), CompletionRequest{})
	assert.Error(t, err)
}

func TestMockCompleter(t *testing.T) {
	m := NewMockCompleter("mock", "a", "b")
	ctx := context.Background()

	for _, want := range []string{"a", "b", "b"} {
		got, err := m.Complete(ctx, CompletionRequest{})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Len(t, m.Requests(), 3)

	f := NewFailingCompleter("down", ErrQuotaExceeded)
	_, err := f.Complete(ctx, CompletionRequest{})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}
