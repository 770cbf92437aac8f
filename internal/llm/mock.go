package llm

import (
	"context"
	"sync"
)

// Mock implements Provider for tests.
type Mock struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, p Prompt) (string, error)

	mu      sync.Mutex
	prompts []Prompt
}

var _ Provider = (*Mock)(nil)

// NewMock returns a Mock that always answers with reply.
func NewMock(reply string) *Mock {
	return &Mock{
		ProviderName: "mock",
		CompleteFunc: func(context.Context, Prompt) (string, error) {
			return reply, nil
		},
	}
}

// Name implements Provider.
func (m *Mock) Name() string { return m.ProviderName }

// Complete records the prompt and calls CompleteFunc.
func (m *Mock) Complete(ctx context.Context, p Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, p)
	m.mu.Unlock()

	if m.CompleteFunc == nil {
		return "", ErrProviderUnavailable
	}
	return m.CompleteFunc(ctx, p)
}

// Prompts returns a copy of every prompt received.
func (m *Mock) Prompts() []Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Prompt(nil), m.prompts...)
}

// CallCount returns how many completions were requested.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
