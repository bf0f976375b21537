// Package openai adapts OpenAI's chat completion API to provider.Adapter.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nexusflow/agentflow/graph/provider"
	"github.com/nexusflow/agentflow/pricing"
)

// Adapter implements provider.Adapter against OpenAI's chat completions
// endpoint. It sends the system prompt and the user prompt as a two
// message conversation — no history, matching the single-shot contract
// every agent node call uses.
type Adapter struct {
	apiKey  string
	pricing *pricing.Table
	client  openaiClient
}

// openaiClient isolates the SDK call so tests can substitute a fake.
type openaiClient interface {
	createChatCompletion(ctx context.Context, systemPrompt, prompt, model string, temperature float64, maxTokens int) (text string, promptTokens, completionTokens int, err error)
}

// New creates an Adapter using the official OpenAI SDK client.
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
	text, promptTokens, completionTokens, err := a.client.createChatCompletion(
		ctx, systemPrompt, prompt, config.Model, config.Temperature, config.MaxTokens,
	)
	if err != nil {
		return provider.Response{}, fmt.Errorf("openai: %w", err)
	}
	latency := time.Since(start)

	return provider.Response{
		Text:      text,
		Tokens:    provider.TokenUsage{Prompt: promptTokens, Completion: completionTokens},
		Model:     config.Model,
		LatencyMs: latency.Milliseconds(),
		Cost:      a.pricing.Cost("openai", config.Model, promptTokens, completionTokens),
	}, nil
}

type sdkClient struct {
	apiKey string
}

func (c *sdkClient) createChatCompletion(ctx context.Context, systemPrompt, prompt, model string, temperature float64, maxTokens int) (string, int, int, error) {
	if c.apiKey == "" {
		return "", 0, 0, errors.New("openai API key is required")
	}

	client := openaisdk.NewClient(option.WithAPIKey(c.apiKey))

	var messages []openaisdk.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		messages = append(messages, openaisdk.SystemMessage(systemPrompt))
	}
	messages = append(messages, openaisdk.UserMessage(prompt))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(model),
		Messages: messages,
	}
	if maxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(maxTokens))
	}
	if temperature > 0 {
		params.Temperature = openaisdk.Float(temperature)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", 0, 0, err
	}
	if len(resp.Choices) == 0 {
		return "", int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens), nil
	}

	return resp.Choices[0].Message.Content, int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens), nil
}
