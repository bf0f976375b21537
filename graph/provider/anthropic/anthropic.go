// Package anthropic adapts Anthropic's Messages API to provider.Adapter.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nexusflow/agentflow/graph/provider"
	"github.com/nexusflow/agentflow/pricing"
)

// Adapter implements provider.Adapter against Claude's Messages API.
// Anthropic takes the system prompt as a separate parameter rather than
// a message with a system role, so it is passed straight through instead
// of being folded into the message list the way openai.Adapter does.
type Adapter struct {
	apiKey  string
	pricing *pricing.Table
	client  anthropicClient
}

type anthropicClient interface {
	createMessage(ctx context.Context, systemPrompt, prompt, model string, temperature float64, maxTokens int) (text string, inputTokens, outputTokens int, err error)
}

// New creates an Adapter using the official Anthropic SDK client.
func New(apiKey string, table *pricing.Table) *Adapter {
	if table == nil {
		table = pricing.Default()
	}
	return &Adapter{
		apiKey:  apiKey,
		pricing: table,
		client:  &sdkClient{apiKey: apiKey},
	}
}

// Complete implements provider.Adapter.
func (a *Adapter) Complete(ctx context.Context, prompt, systemPrompt string, config provider.CompletionConfig) (provider.Response, error) {
	if err := ctx.Err(); err != nil {
		return provider.Response{}, err
	}

	start := time.Now()
	text, inputTokens, outputTokens, err := a.client.createMessage(
		ctx, systemPrompt, prompt, config.Model, config.Temperature, config.MaxTokens,
	)
	if err != nil {
		return provider.Response{}, fmt.Errorf("anthropic: %w", err)
	}
	latency := time.Since(start)

	return provider.Response{
		Text:      text,
		Tokens:    provider.TokenUsage{Prompt: inputTokens, Completion: outputTokens},
		Model:     config.Model,
		LatencyMs: latency.Milliseconds(),
		Cost:      a.pricing.Cost("anthropic", config.Model, inputTokens, outputTokens),
	}, nil
}

type sdkClient struct {
	apiKey string
}

func (c *sdkClient) createMessage(ctx context.Context, systemPrompt, prompt, model string, temperature float64, maxTokens int) (string, int, int, error) {
	if c.apiKey == "" {
		return "", 0, 0, errors.New("anthropic API key is required")
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	if maxTokens <= 0 {
		maxTokens = 1000
	}
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}
	if temperature > 0 {
		params.Temperature = anthropicsdk.Float(temperature)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", 0, 0, err
	}

	var text string
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			if text != "" {
				text += "\n"
			}
			text += tb.Text
		}
	}

	return text, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens), nil
}
