// Package provider defines the uniform contract agentflow's executor uses
// to call an LLM regardless of which vendor is behind it, plus one
// concrete Adapter per supported provider (see the openai, anthropic and
// google subpackages) and a MockAdapter for tests.
package provider

import "context"

// TokenUsage is the prompt/completion token split a provider reports for
// one completion call.
type TokenUsage struct {
	Prompt     int
	Completion int
}

// Response is what every Adapter returns for a single completion.
type Response struct {
	Text       string
	Tokens     TokenUsage
	Model      string
	LatencyMs  int64
	Cost       float64
}

// CompletionConfig carries the per-node knobs an Adapter needs: which
// model to call, the sampling temperature and the completion-length cap.
// It intentionally does not carry retry or timeout settings — those are
// the executor's concern, not the adapter's.
type CompletionConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Adapter is the uniform LLM calling contract every provider implements.
//
// Complete sends one prompt (plus an optional system prompt) and returns
// the text, token usage, measured latency and computed cost. It takes no
// conversation history and performs no retries — the caller's retry
// handler treats any error Complete returns as a single failed attempt,
// regardless of cause.
type Adapter interface {
	Complete(ctx context.Context, prompt, systemPrompt string, config CompletionConfig) (Response, error)
}
