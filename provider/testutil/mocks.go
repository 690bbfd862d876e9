package testutil

import (
	"context"
	"io"
	"strings"
	"sync"

	"toolchat/model"
)

// Call records one GenerateChatCompletion invocation.
type Call struct {
	Messages []model.Message
	Options  model.ChatOptions
}

// MockProvider implements model.Provider for testing. By default it streams
// Stream (or a single "Mock response" content record).
type MockProvider struct {
	GenerateFunc func(ctx context.Context, messages []model.Message, opts model.ChatOptions) (io.ReadCloser, error)
	PingFunc     func(ctx context.Context) error

	// Stream is the raw record stream returned by the default GenerateFunc.
	Stream string

	mu    sync.Mutex
	calls []Call
	id    string
}

// NewMockProvider creates a mock provider with default implementations.
func NewMockProvider(id string) *MockProvider {
	mock := &MockProvider{id: id}
	mock.GenerateFunc = mock.defaultGenerate
	mock.PingFunc = func(context.Context) error { return nil }
	return mock
}

func (m *MockProvider) defaultGenerate(context.Context, []model.Message, model.ChatOptions) (io.ReadCloser, error) {
	stream := m.Stream
	if stream == "" {
		stream = ContentRecord("Mock response") + DoneRecord
	}
	return io.NopCloser(strings.NewReader(stream)), nil
}

func (m *MockProvider) ID() string {
	return m.id
}

func (m *MockProvider) GenerateChatCompletion(ctx context.Context, messages []model.Message, opts model.ChatOptions) (io.ReadCloser, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Messages: messages, Options: opts})
	m.mu.Unlock()
	return m.GenerateFunc(ctx, messages, opts)
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}

// Calls returns the recorded invocations.
func (m *MockProvider) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
