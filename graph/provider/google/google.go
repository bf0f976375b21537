// Package google adapts Google's Gemini API to provider.Adapter.
package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/nexusflow/agentflow/graph/provider"
	"github.com/nexusflow/agentflow/pricing"
)

// Adapter implements provider.Adapter against the Gemini API. Gemini has
// no distinct system-message role on the wire; the system prompt is set
// as the model's SystemInstruction instead of being folded into content.
type Adapter struct {
	apiKey  string
	pricing *pricing.Table
	client  googleClient
}

type googleClient interface {
	generateContent(ctx context.Context, systemPrompt, prompt, model string, temperature float64, maxTokens int) (text string, promptTokens, candidateTokens int, err error)
}

// New creates an Adapter using the official generative-ai-go client.
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
	text, promptTokens, candidateTokens, err := a.client.generateContent(
		ctx, systemPrompt, prompt, config.Model, config.Temperature, config.MaxTokens,
	)
	if err != nil {
		return provider.Response{}, fmt.Errorf("google: %w", err)
	}
	latency := time.Since(start)

	return provider.Response{
		Text:      text,
		Tokens:    provider.TokenUsage{Prompt: promptTokens, Completion: candidateTokens},
		Model:     config.Model,
		LatencyMs: latency.Milliseconds(),
		Cost:      a.pricing.Cost("google", config.Model, promptTokens, candidateTokens),
	}, nil
}

type sdkClient struct {
	apiKey string
}

func (c *sdkClient) generateContent(ctx context.Context, systemPrompt, prompt, model string, temperature float64, maxTokens int) (string, int, int, error) {
	if c.apiKey == "" {
		return "", 0, 0, errors.New("google API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return "", 0, 0, fmt.Errorf("failed to create google client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(model)
	if systemPrompt != "" {
		genModel.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	}
	if maxTokens > 0 {
		max := int32(maxTokens)
		genModel.MaxOutputTokens = &max
	}
	if temperature > 0 {
		t := float32(temperature)
		genModel.Temperature = &t
	}

	resp, err := genModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", 0, 0, err
	}

	var text string
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if t, ok := part.(genai.Text); ok {
				if text != "" {
					text += "\n"
				}
				text += string(t)
			}
		}
	}

	var promptTokens, candidateTokens int
	if resp.UsageMetadata != nil {
		promptTokens = int(resp.UsageMetadata.PromptTokenCount)
		candidateTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return text, promptTokens, candidateTokens, nil
}
