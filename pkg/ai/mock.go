package ai

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient implements the Client interface for testing
type MockClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	delay     time.Duration
	handler   func(messages []Message, format *ResponseFormat) (string, error)
	calls     []MockCall
}

// MockCall records one Complete invocation.
type MockCall struct {
	Messages []Message
	Format   *ResponseFormat
}

// NewMockClient returns the responses in order; the last one repeats.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{responses: responses}
}

// NewMockClientWithError creates a mock client that always fails with err.
func NewMockClientWithError(err error) *MockClient {
	return &MockClient{err: err}
}

// NewMockClientFunc answers every call with handler.
func NewMockClientFunc(handler func(messages []Message, format *ResponseFormat) (string, error)) *MockClient {
	return &MockClient{handler: handler}
}

// WithDelay makes each call wait, honouring context cancellation.
func (m *MockClient) WithDelay(d time.Duration) *MockClient {
	m.delay = d
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, messages []Message, format *ResponseFormat) (string, error) {
	m.mu.Lock()
	call := len(m.calls)
	m.calls = append(m.calls, MockCall{Messages: append([]Message(nil), messages...), Format: format})
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	switch {
	case m.err != nil:
		return "", fmt.Errorf("mock error: %w", m.err)
	case m.handler != nil:
		return m.handler(messages, format)
	case len(m.responses) == 0:
		return "", fmt.Errorf("mock client has no responses")
	case call < len(m.responses):
		return m.responses[call], nil
	default:
		return m.responses[len(m.responses)-1], nil
	}
}

// Calls returns the recorded invocations.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns how many times Complete ran.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
