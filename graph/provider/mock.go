package provider

import (
	"context"
	"sync"
)

// MockAdapter is a test double for Adapter. Use it to verify executor
// behavior without making a real network call.
//
//	mock := &provider.MockAdapter{
//	    Responses: []provider.Response{{Text: "hello", Tokens: provider.TokenUsage{Prompt: 10, Completion: 5}}},
//	}
//	out, err := mock.Complete(ctx, "prompt", "", provider.CompletionConfig{Model: "gpt-4o"})
type MockAdapter struct {
	// Responses is returned in order; once exhausted the last response
	// repeats. Leave nil to always return the zero Response.
	Responses []Response

	// Err, if set, is returned instead of a response.
	Err error

	// Calls records every invocation for assertions.
	Calls []MockCall

	mu        sync.Mutex
	callIndex int
}

// MockCall records one Complete invocation.
type MockCall struct {
	Prompt       string
	SystemPrompt string
	Config       CompletionConfig
}

// Complete implements Adapter.
func (m *MockAdapter) Complete(ctx context.Context, prompt, systemPrompt string, config CompletionConfig) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Prompt: prompt, SystemPrompt: systemPrompt, Config: config})

	if m.Err != nil {
		return Response{}, m.Err
	}
	if len(m.Responses) == 0 {
		return Response{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// CallCount returns how many times Complete has been called.
func (m *MockAdapter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Reset clears call history so the mock can be reused across subtests.
func (m *MockAdapter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// FuncAdapter adapts a plain function to Adapter, for tests that need
// per-call logic MockAdapter's fixed response list can't express — a
// node that fails its first two attempts and succeeds on the third, say.
type FuncAdapter func(ctx context.Context, prompt, systemPrompt string, config CompletionConfig) (Response, error)

// Complete implements Adapter.
func (f FuncAdapter) Complete(ctx context.Context, prompt, systemPrompt string, config CompletionConfig) (Response, error) {
	return f(ctx, prompt, systemPrompt, config)
}
