package graph

import (
	"sort"

	"github.com/nexusflow/agentflow/pricing"
)

const (
	avgOutputRatio           = 0.6
	baseInputEstimate        = 200
	formattingOverheadPerDep = 50
	charsPerToken            = 4
)

// Confidence classifies how much to trust a CostEstimate.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// AgentEstimate is the projected token/cost breakdown for one planned node.
type AgentEstimate struct {
	NodeID            string
	PromptTokens      int
	CompletionTokens  int
	Cost              float64
}

// CostEstimate is the pre-flight projection Estimate produces.
type CostEstimate struct {
	Total      float64
	PerAgent   []AgentEstimate
	Confidence Confidence
}

// Estimate projects the cost of running plan over graph before any agent
// actually runs, using the 4-characters-per-token heuristic and a fixed
// formatting overhead per dependency edge.
func Estimate(plan ExecutionPlan, g Graph, table *pricing.Table) CostEstimate {
	if table == nil {
		table = pricing.Default()
	}

	depsOf := make(map[string][]string)
	for _, e := range g.Edges {
		depsOf[e.Target] = append(depsOf[e.Target], e.Source)
	}
	configOf := make(map[string]NodeConfig)
	for _, grp := range plan.Groups {
		for _, a := range grp.Agents {
			configOf[a.NodeID] = a.Config
		}
	}

	var total float64
	var perAgent []AgentEstimate
	hasCondition := false
	for _, e := range g.Edges {
		if e.Condition != "" {
			hasCondition = true
			break
		}
	}
	hasLargeMaxTokens := false

	for _, grp := range plan.Groups {
		for _, entry := range grp.Agents {
			cfg := entry.Config
			deps := depsOf[entry.NodeID]

			systemTokens := len(cfg.SystemPrompt) / charsPerToken
			if systemTokens < 1 {
				systemTokens = 1
			}

			var inputTokens int
			if len(deps) > 0 {
				for _, d := range deps {
					inputTokens += int(float64(configOf[d].effectiveMaxTokens()) * avgOutputRatio)
				}
				inputTokens += formattingOverheadPerDep * len(deps)
			} else {
				inputTokens = baseInputEstimate
			}

			promptTokens := systemTokens + inputTokens
			completionTokens := cfg.effectiveMaxTokens()
			if completionTokens > 4000 {
				hasLargeMaxTokens = true
			}

			cost := table.Cost(cfg.Provider, cfg.Model, promptTokens, completionTokens)
			total += cost

			perAgent = append(perAgent, AgentEstimate{
				NodeID:           entry.NodeID,
				PromptTokens:     promptTokens,
				CompletionTokens: completionTokens,
				Cost:             cost,
			})
		}
	}

	confidence := ConfidenceMedium
	switch {
	case hasCondition || hasLargeMaxTokens:
		confidence = ConfidenceLow
	case plan.TotalAgents <= 3:
		confidence = ConfidenceHigh
	}

	return CostEstimate{Total: total, PerAgent: perAgent, Confidence: confidence}
}

// SuggestionKind distinguishes the two shapes of cost-reduction
// suggestion the estimator can emit.
type SuggestionKind string

const (
	SuggestionDowngradeModel SuggestionKind = "downgrade_model"
	SuggestionSkipAgent      SuggestionKind = "skip_agent"
)

// BudgetSuggestion is one proposed change to bring an over-budget
// estimate down, sorted by Saves descending by GenerateSuggestions.
type BudgetSuggestion struct {
	Kind       SuggestionKind
	NodeID     string
	FromModel  string
	ToModel    string
	Saves      float64
}

// GenerateSuggestions is consulted when an estimate exceeds a caller's
// configured budget at admission time. For every agent it considers the
// fixed downgrade path, and additionally flags any node with no
// outgoing edges as safe to skip outright.
func GenerateSuggestions(plan ExecutionPlan, g Graph, table *pricing.Table) []BudgetSuggestion {
	if table == nil {
		table = pricing.Default()
	}
	hasOutgoing := make(map[string]bool)
	for _, e := range g.Edges {
		hasOutgoing[e.Source] = true
	}

	estimate := Estimate(plan, g, table)
	costByNode := make(map[string]float64, len(estimate.PerAgent))
	for _, a := range estimate.PerAgent {
		costByNode[a.NodeID] = a.Cost
	}

	var suggestions []BudgetSuggestion
	for _, grp := range plan.Groups {
		for _, entry := range grp.Agents {
			cfg := entry.Config
			if cheaper, ok := pricing.DowngradePath[cfg.Model]; ok {
				original := costByNode[entry.NodeID]
				downgraded := table.Cost(cfg.Provider, cheaper, estimatePromptTokensFor(entry.NodeID, estimate), cfg.effectiveMaxTokens())
				saves := original - downgraded
				if saves > 0 {
					suggestions = append(suggestions, BudgetSuggestion{
						Kind:      SuggestionDowngradeModel,
						NodeID:    entry.NodeID,
						FromModel: cfg.Model,
						ToModel:   cheaper,
						Saves:     saves,
					})
				}
			}

			if !hasOutgoing[entry.NodeID] {
				if saves := costByNode[entry.NodeID]; saves > 0 {
					suggestions = append(suggestions, BudgetSuggestion{
						Kind:   SuggestionSkipAgent,
						NodeID: entry.NodeID,
						Saves:  saves,
					})
				}
			}
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Saves > suggestions[j].Saves
	})
	return suggestions
}

func estimatePromptTokensFor(nodeID string, estimate CostEstimate) int {
	for _, a := range estimate.PerAgent {
		if a.NodeID == nodeID {
			return a.PromptTokens
		}
	}
	return 0
}
