package llm

import (
	"context"
	"sync"
)

// MockCompleter replays canned completions for tests and offline runs.
type MockCompleter struct {
	mu        sync.Mutex
	name      string
	responses []string
	err       error
	requests  []CompletionRequest
}

// NewMockCompleter returns a completer answering with responses in turn.
// The last response repeats once the list is exhausted.
func NewMockCompleter(name string, responses ...string) *MockCompleter {
	return &MockCompleter{name: name, responses: responses}
}

// NewFailingCompleter returns a completer that always fails with err.
func NewFailingCompleter(name string, err error) *MockCompleter {
	return &MockCompleter{name: name, err: err}
}

// Name returns the provider name.
func (m *MockCompleter) Name() string {
	return m.name
}

// Complete records req and returns the next canned response.
func (m *MockCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", ErrEmptyCompletion
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

// Requests returns the requests seen so far.
func (m *MockCompleter) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.requests...)
}
