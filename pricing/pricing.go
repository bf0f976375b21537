// Package pricing holds the static per-model cost table the budget
// estimator and every LLM adapter consult to turn a token count into a
// dollar figure.
package pricing

import (
	"encoding/json"
	"math"
	"os"
)

// Price is the per-1,000-token input/output rate for one model.
type Price struct {
	InputPer1K  float64 `json:"input_per_1k"`
	OutputPer1K float64 `json:"output_per_1k"`
}

// Table maps provider -> model -> Price. Unknown (provider, model) pairs
// cost zero rather than erroring, matching the pricing contract in the
// external-interfaces section: a workflow referencing a model the table
// doesn't know about still runs, it just can't be costed.
type Table struct {
	byProvider map[string]map[string]Price
}

// New builds an empty table. Use Default for the compiled-in seed data.
func New() *Table {
	return &Table{byProvider: make(map[string]map[string]Price)}
}

// Default returns a table seeded with the models in common use across
// OpenAI, Anthropic and Google at the time this table was written.
// Callers loading an operator-supplied price list should start from
// Default and call LoadFile so unlisted models still have a sane fallback.
func Default() *Table {
	t := New()
	t.Set("openai", "gpt-4o", Price{InputPer1K: 0.0025, OutputPer1K: 0.010})
	t.Set("openai", "gpt-4o-mini", Price{InputPer1K: 0.00015, OutputPer1K: 0.0006})
	t.Set("openai", "gpt-4-turbo", Price{InputPer1K: 0.010, OutputPer1K: 0.030})
	t.Set("openai", "gpt-3.5-turbo", Price{InputPer1K: 0.0005, OutputPer1K: 0.0015})
	t.Set("anthropic", "claude-3-5-sonnet-20241022", Price{InputPer1K: 0.003, OutputPer1K: 0.015})
	t.Set("anthropic", "claude-3.5-sonnet", Price{InputPer1K: 0.003, OutputPer1K: 0.015})
	t.Set("anthropic", "claude-3-opus", Price{InputPer1K: 0.015, OutputPer1K: 0.075})
	t.Set("anthropic", "claude-3-sonnet", Price{InputPer1K: 0.003, OutputPer1K: 0.015})
	t.Set("anthropic", "claude-3-haiku", Price{InputPer1K: 0.00025, OutputPer1K: 0.00125})
	t.Set("google", "gemini-1.5-pro", Price{InputPer1K: 0.00125, OutputPer1K: 0.005})
	t.Set("google", "gemini-1.5-flash", Price{InputPer1K: 0.000075, OutputPer1K: 0.0003})
	t.Set("google", "gemini-1.0-pro", Price{InputPer1K: 0.0005, OutputPer1K: 0.0015})
	return t
}

// Set records (or overwrites) the price for one (provider, model) pair.
func (t *Table) Set(provider, model string, p Price) {
	if t.byProvider[provider] == nil {
		t.byProvider[provider] = make(map[string]Price)
	}
	t.byProvider[provider][model] = p
}

// Lookup returns the price for (provider, model) and whether it was found.
func (t *Table) Lookup(provider, model string) (Price, bool) {
	models, ok := t.byProvider[provider]
	if !ok {
		return Price{}, false
	}
	p, ok := models[model]
	return p, ok
}

// Cost computes the dollar cost of a completion, rounded to six decimal
// places the way the original adapter's calculate_cost does. Unknown
// pairs cost zero rather than failing the call.
func (t *Table) Cost(provider, model string, promptTokens, completionTokens int) float64 {
	p, ok := t.Lookup(provider, model)
	if !ok {
		return 0
	}
	cost := float64(promptTokens)/1000*p.InputPer1K + float64(completionTokens)/1000*p.OutputPer1K
	return round6(cost)
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// jsonDoc mirrors the external pricing-table wire format:
//
//	{ "<provider>": { "<model>": { "input_per_1k": <float>, "output_per_1k": <float> } } }
type jsonDoc map[string]map[string]Price

// LoadFile reads a pricing table from disk in the external wire format and
// merges it onto the receiver, overwriting any entries it names. An
// absent file is not an error for the zero-config path; other read
// errors and malformed JSON are returned. Callers that require the file
// to exist should stat it themselves first.
func (t *Table) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var doc jsonDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	for provider, models := range doc {
		for model, price := range models {
			t.Set(provider, model, price)
		}
	}
	return nil
}

// DowngradePath is the fixed, hand-maintained mapping from a model to a
// cheaper substitute, used only to generate cost-reduction suggestions.
// It is never consulted during normal execution.
var DowngradePath = map[string]string{
	"gpt-4o":                     "gpt-4o-mini",
	"gpt-4o-mini":                "gpt-3.5-turbo",
	"claude-3.5-sonnet":          "claude-3-haiku",
	"claude-3-5-sonnet-20241022": "claude-3-haiku",
	"claude-3-opus":              "claude-3-haiku",
}
