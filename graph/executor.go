package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nexusflow/agentflow/events"
	"github.com/nexusflow/agentflow/graph/provider"
	"github.com/nexusflow/agentflow/graph/store"
	"github.com/nexusflow/agentflow/pricing"
)

// nodeStatus is the terminal state the executor has reached for one
// node by the time its group finishes, kept only for the duration of a
// single Run call to decide whether downstream nodes can proceed.
type nodeStatus struct {
	completed bool
	output    string
	agentName string
	skipped   bool
	failed    bool
}

// RecallResult is one memory hit returned by a Recaller.
type RecallResult struct {
	Key        string
	Text       string
	Similarity float64
}

// Recaller is the optional memory-recall hook a caller may attach to an
// Executor: given the node about to run and the input it would
// otherwise see, it returns semantically related memories scoped to the
// execution. A nil Recaller (the default) means no recall block is ever
// added to a prompt.
type Recaller interface {
	Recall(ctx context.Context, executionID, nodeID, input string) ([]RecallResult, error)
}

// Executor runs an ExecutionPlan: one parallel group at a time, calling
// an Adapter per agent node, honoring retries, fallbacks, conditional
// edges, dependency failure propagation and a running token/cost
// budget, and persisting and publishing progress as it goes.
type Executor struct {
	adapters  map[string]provider.Adapter
	pricing   *pricing.Table
	store     store.Store
	publisher events.Publisher
	metrics   *Metrics
	recaller  Recaller
	cfg       executorConfig
}

// NewExecutor builds an Executor. adapters is keyed by provider name
// (e.g. "openai", "anthropic", "google") and must contain an entry for
// every provider any node in a graph this executor runs will reference.
func NewExecutor(adapters map[string]provider.Adapter, table *pricing.Table, st store.Store, publisher events.Publisher, opts ...Option) *Executor {
	if table == nil {
		table = pricing.Default()
	}
	if st == nil {
		st = store.NewMemoryStore()
	}
	if publisher == nil {
		publisher = events.NullPublisher{}
	}

	cfg := executorConfig{defaultBaseDelay: defaultBaseDelay}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Executor{
		adapters:  adapters,
		pricing:   table,
		store:     st,
		publisher: publisher,
		metrics:   cfg.metrics,
		recaller:  cfg.recaller,
		cfg:       cfg,
	}
}

// Run plans g, admits it as a new Execution for workflowID, and runs it
// to completion, returning the final Execution record (also the one
// persisted to the store). userQuery is the workflow's initial input: it
// only reaches a node's prompt when that node has no upstream
// dependencies.
func (ex *Executor) Run(ctx context.Context, workflowID string, g Graph, userQuery string) (Execution, error) {
	plan, err := Plan(g)
	if err != nil {
		return Execution{}, err
	}

	estimate := Estimate(plan, g, ex.pricing)
	now := time.Now().UTC().Format(time.RFC3339)

	exec := Execution{
		ID:            uuid.NewString(),
		WorkflowID:    workflowID,
		GraphSnapshot: g,
		Plan:          plan,
		MaxTokens:     ex.cfg.maxTokens,
		MaxCost:       ex.cfg.maxCost,
		EstimatedCost: estimate.Total,
		CreatedAt:     now,
		Status:        ExecutionRunning,
		StartedAt:     &now,
	}
	if err := ex.store.CreateExecution(ctx, exec); err != nil {
		return Execution{}, fmt.Errorf("create execution: %w", err)
	}

	enforcer := NewEnforcer(ex.cfg.maxTokens, ex.cfg.maxCost)

	statuses := make(map[string]*nodeStatus, len(g.Nodes))
	for _, n := range g.Nodes {
		statuses[n.ID] = &nodeStatus{}
	}

	incoming := make(map[string][]Edge)
	for _, e := range g.Edges {
		incoming[e.Target] = append(incoming[e.Target], e)
	}

	var order int
	var agentsNotRun []string
	budgetExceededEmitted := false

	for _, group := range plan.Groups {
		if enforcer.HasBudget() && enforcer.Status() == BudgetExceeded && !budgetExceededEmitted {
			tokens, cost := enforcer.Consumed()
			for _, grp := range plan.Groups {
				for _, a := range grp.Agents {
					if st := statuses[a.NodeID]; !st.completed && !st.failed && !st.skipped {
						agentsNotRun = append(agentsNotRun, a.NodeID)
					}
				}
			}
			consumed, budget := budgetDimension(tokens, cost, ex.cfg.maxTokens, ex.cfg.maxCost)
			ex.publisher.Publish(ctx, events.BudgetExceededEvent(exec.ID, consumed, budget, agentsNotRun))
			budgetExceededEmitted = true
		}

		var wg sync.WaitGroup
		var mu sync.Mutex

		for _, entry := range group.Agents {
			entry := entry
			node, _ := g.NodeByID(entry.NodeID)

			if enforcer.HasBudget() && enforcer.Status() == BudgetExceeded {
				mu.Lock()
				statuses[entry.NodeID].skipped = true
				order++
				mu.Unlock()
				ex.recordSkipped(ctx, workflowID, exec.ID, entry, order, group.Index, "budget exceeded")
				continue
			}

			skipReason, inputs, proceed := ex.resolveDependencies(incoming[entry.NodeID], statuses)
			if !proceed {
				mu.Lock()
				statuses[entry.NodeID].skipped = true
				order++
				n := order
				mu.Unlock()
				ex.recordSkipped(ctx, workflowID, exec.ID, entry, n, group.Index, skipReason)
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()

				mu.Lock()
				order++
				execOrder := order
				mu.Unlock()

				ex.metrics.agentStarted()
				defer ex.metrics.agentFinished()

				ex.publisher.Publish(ctx, events.AgentStartedEvent(exec.ID, entry.NodeID, agentName(node), group.Index, node.Data.Provider, node.Data.Model))

				recalled := ex.recall(ctx, exec.ID, entry.NodeID, userQuery, inputs)
				prompt := buildPrompt(userQuery, recalled, inputs)
				resp, retries, err := ex.runAgent(ctx, workflowID, exec.ID, entry.NodeID, node.Data, prompt)
				inputPayload := buildInputPayload(prompt, node.Data.SystemPrompt, inputs)

				if err != nil {
					errMsg := err.Error()
					mu.Lock()
					ex.metrics.agentFailed(workflowID, entry.NodeID, 0)
					_ = ex.store.UpsertAgentRun(ctx, AgentRun{
						ExecutionID:    exec.ID,
						AgentNodeID:    entry.NodeID,
						Status:         AgentRunFailed,
						Provider:       node.Data.Provider,
						Model:          node.Data.Model,
						Retries:        retries,
						ExecutionOrder: execOrder,
						ParallelGroup:  group.Index,
						InputPayload:   inputPayload,
						ErrorMessage:   errMsg,
					})
					mu.Unlock()
					ex.publisher.Publish(ctx, events.AgentFailedEvent(exec.ID, entry.NodeID, errMsg, false, 0))

					fbNode, hasFallback := g.NodeByID(node.Data.FallbackAgentID)
					if node.Data.FallbackAgentID == "" || !hasFallback {
						mu.Lock()
						statuses[entry.NodeID].failed = true
						mu.Unlock()
						return
					}

					ex.publisher.Publish(ctx, events.AgentFallbackEvent(exec.ID, entry.NodeID, node.Data.FallbackAgentID, agentName(fbNode)))
					fbResp, fbErr := ex.callOnce(ctx, node.Data.FallbackAgentID, fbNode.Data, prompt)

					mu.Lock()
					order++
					fbOrder := order
					mu.Unlock()

					if fbErr != nil {
						fbErrMsg := fbErr.Error()
						mu.Lock()
						statuses[entry.NodeID].failed = true
						ex.metrics.agentFailed(workflowID, node.Data.FallbackAgentID, 0)
						_ = ex.store.UpsertAgentRun(ctx, AgentRun{
							ExecutionID:    exec.ID,
							AgentNodeID:    node.Data.FallbackAgentID,
							Status:         AgentRunFailed,
							Provider:       fbNode.Data.Provider,
							Model:          fbNode.Data.Model,
							IsFallback:     true,
							FallbackFor:    entry.NodeID,
							ExecutionOrder: fbOrder,
							ParallelGroup:  group.Index,
							InputPayload:   inputPayload,
							ErrorMessage:   fbErrMsg,
						})
						mu.Unlock()
						ex.publisher.Publish(ctx, events.AgentFailedEvent(exec.ID, node.Data.FallbackAgentID, fbErrMsg, false, 0))
						return
					}

					mu.Lock()
					enforcer.Record(fbResp.Tokens.Prompt+fbResp.Tokens.Completion, fbResp.Cost)
					statuses[entry.NodeID].completed = true
					statuses[entry.NodeID].output = fbResp.Text
					statuses[entry.NodeID].agentName = agentName(node)

					exec.TotalTokensPrompt += fbResp.Tokens.Prompt
					exec.TotalTokensCompletion += fbResp.Tokens.Completion
					exec.TotalCost += fbResp.Cost

					_ = ex.store.UpsertAgentRun(ctx, AgentRun{
						ExecutionID:    exec.ID,
						AgentNodeID:    node.Data.FallbackAgentID,
						Status:         AgentRunCompleted,
						Provider:       fbNode.Data.Provider,
						Model:          fbNode.Data.Model,
						TokensPrompt:   fbResp.Tokens.Prompt,
						TokensOutput:   fbResp.Tokens.Completion,
						Cost:           fbResp.Cost,
						LatencyMs:      fbResp.LatencyMs,
						IsFallback:     true,
						FallbackFor:    entry.NodeID,
						ExecutionOrder: fbOrder,
						ParallelGroup:  group.Index,
						InputPayload:   inputPayload,
						OutputPayload:  buildOutputPayload(fbResp.Text),
					})
					mu.Unlock()

					ex.metrics.agentCompleted(workflowID, node.Data.FallbackAgentID, fbResp.LatencyMs)
					ex.publisher.Publish(ctx, events.AgentCompletedEvent(exec.ID, node.Data.FallbackAgentID, agentName(fbNode), fbResp.Tokens.Prompt, fbResp.Tokens.Completion, fbResp.Cost, fbResp.LatencyMs))
					ex.emitBudgetWarning(ctx, exec.ID, enforcer)
					return
				}

				mu.Lock()
				enforcer.Record(resp.Tokens.Prompt+resp.Tokens.Completion, resp.Cost)
				statuses[entry.NodeID].completed = true
				statuses[entry.NodeID].output = resp.Text
				statuses[entry.NodeID].agentName = agentName(node)

				exec.TotalTokensPrompt += resp.Tokens.Prompt
				exec.TotalTokensCompletion += resp.Tokens.Completion
				exec.TotalCost += resp.Cost

				_ = ex.store.UpsertAgentRun(ctx, AgentRun{
					ExecutionID:    exec.ID,
					AgentNodeID:    entry.NodeID,
					Status:         AgentRunCompleted,
					Provider:       node.Data.Provider,
					Model:          node.Data.Model,
					TokensPrompt:   resp.Tokens.Prompt,
					TokensOutput:   resp.Tokens.Completion,
					Cost:           resp.Cost,
					LatencyMs:      resp.LatencyMs,
					Retries:        retries,
					ExecutionOrder: execOrder,
					ParallelGroup:  group.Index,
					InputPayload:   inputPayload,
					OutputPayload:  buildOutputPayload(resp.Text),
				})
				mu.Unlock()

				ex.metrics.agentCompleted(workflowID, entry.NodeID, resp.LatencyMs)
				ex.publisher.Publish(ctx, events.AgentCompletedEvent(exec.ID, entry.NodeID, agentName(node), resp.Tokens.Prompt, resp.Tokens.Completion, resp.Cost, resp.LatencyMs))
				ex.emitBudgetWarning(ctx, exec.ID, enforcer)
			}()
		}

		wg.Wait()
	}

	completedCount, failedCount, skippedCount := 0, 0, 0
	for _, st := range statuses {
		switch {
		case st.completed:
			completedCount++
		case st.failed:
			failedCount++
		case st.skipped:
			skippedCount++
		}
	}

	startedAt, _ := time.Parse(time.RFC3339, *exec.StartedAt)
	finishedAt := time.Now().UTC()
	finishedAtStr := finishedAt.Format(time.RFC3339)
	exec.CompletedAt = &finishedAtStr
	if failedCount > 0 && completedCount == 0 {
		exec.Status = ExecutionFailed
		msg := "All agents failed"
		exec.ErrorMessage = &msg
	} else {
		exec.Status = ExecutionCompleted
	}

	ex.metrics.executionFinished(workflowID, exec.TotalCost)
	ex.publisher.Publish(ctx, events.ExecutionCompletedEvent(exec.ID, string(exec.Status), events.ExecutionTotals{
		TokensPrompt:     exec.TotalTokensPrompt,
		TokensCompletion: exec.TotalTokensCompletion,
		Cost:             exec.TotalCost,
		DurationMs:       finishedAt.Sub(startedAt).Milliseconds(),
		AgentsCompleted:  completedCount,
		AgentsFailed:     failedCount,
		AgentsSkipped:    skippedCount,
	}))

	if err := ex.store.UpdateExecution(ctx, exec); err != nil {
		return exec, fmt.Errorf("update execution: %w", err)
	}
	return exec, nil
}

// depInput is one upstream node's contribution to a downstream prompt.
type depInput struct {
	nodeID    string
	agentName string
	output    string
}

// agentName returns the node's configured display name, falling back to
// its id when unset.
func agentName(n Node) string {
	if n.Data.Name != "" {
		return n.Data.Name
	}
	return n.ID
}

// budgetDimension picks which cap to report in a budget event: whichever
// of tokens/maxTokens or cost/maxCost has consumed the larger fraction of
// its cap. A nil cap is never chosen.
func budgetDimension(tokens int, cost float64, maxTokens *int, maxCost *float64) (consumed, budget float64) {
	tokenRatio, costRatio := -1.0, -1.0
	if maxTokens != nil && *maxTokens > 0 {
		tokenRatio = float64(tokens) / float64(*maxTokens)
	}
	if maxCost != nil && *maxCost > 0 {
		costRatio = cost / *maxCost
	}
	if costRatio >= tokenRatio {
		if maxCost != nil {
			return cost, *maxCost
		}
	}
	if maxTokens != nil {
		return float64(tokens), float64(*maxTokens)
	}
	return cost, 0
}

// emitBudgetWarning reports the budget_warning event the first time
// enforcer's consumption crosses its warning threshold. enforcer.Check
// latches the warning so concurrent callers racing here only ever
// publish once per run.
func (ex *Executor) emitBudgetWarning(ctx context.Context, executionID string, enforcer *Enforcer) {
	if !enforcer.HasBudget() || enforcer.Check() != BudgetWarning {
		return
	}
	tokens, cost := enforcer.Consumed()
	consumed, budget := budgetDimension(tokens, cost, ex.cfg.maxTokens, ex.cfg.maxCost)
	percentage := 0.0
	if budget > 0 {
		percentage = consumed / budget * 100
	}
	ex.publisher.Publish(ctx, events.BudgetWarningEvent(executionID, consumed, budget, percentage))
}

// agentInputPayload is the JSON shape persisted as an AgentRun's
// InputPayload: the assembled prompt plus enough of its inputs to
// reconstruct why the agent said what it said.
type agentInputPayload struct {
	Prompt            string                      `json:"prompt"`
	SystemPrompt      string                      `json:"system_prompt,omitempty"`
	DependencyOutputs map[string]dependencyOutput `json:"dependency_outputs,omitempty"`
}

type dependencyOutput struct {
	AgentName string `json:"agent_name"`
	Text      string `json:"text"`
}

// agentOutputPayload is the JSON shape persisted as an AgentRun's
// OutputPayload.
type agentOutputPayload struct {
	Text string `json:"text"`
}

func buildInputPayload(prompt, systemPrompt string, inputs []depInput) json.RawMessage {
	var deps map[string]dependencyOutput
	if len(inputs) > 0 {
		deps = make(map[string]dependencyOutput, len(inputs))
		for _, in := range inputs {
			deps[in.nodeID] = dependencyOutput{AgentName: in.agentName, Text: in.output}
		}
	}
	payload, err := json.Marshal(agentInputPayload{
		Prompt:            prompt,
		SystemPrompt:      systemPrompt,
		DependencyOutputs: deps,
	})
	if err != nil {
		return nil
	}
	return payload
}

func buildOutputPayload(text string) json.RawMessage {
	payload, err := json.Marshal(agentOutputPayload{Text: text})
	if err != nil {
		return nil
	}
	return payload
}

// resolveDependencies inspects every incoming edge of a node against
// the current statuses of its sources and decides whether the node
// should run. A node is skipped the moment any source has itself
// failed or been skipped, or any conditional edge from a completed
// source fails to fire — a partial match among several inbound edges
// is not enough. Only once every edge clears does it return the
// dependency outputs feeding the node's prompt.
func (ex *Executor) resolveDependencies(edges []Edge, statuses map[string]*nodeStatus) (reason string, inputs []depInput, proceed bool) {
	if len(edges) == 0 {
		return "", nil, true
	}

	for _, e := range edges {
		src := statuses[e.Source]
		if src.failed || src.skipped {
			return "dependency failed", nil, false
		}
	}

	// Conditions are evaluated per source: group incoming edges by
	// Source so a sibling edge from a different upstream node never
	// affects another source's own default/explicit match.
	var sourceOrder []string
	bySource := make(map[string][]Edge)
	for _, e := range edges {
		if _, ok := bySource[e.Source]; !ok {
			sourceOrder = append(sourceOrder, e.Source)
		}
		bySource[e.Source] = append(bySource[e.Source], e)
	}

	added := make(map[string]bool)
	for _, src := range sourceOrder {
		srcEdges := bySource[src]
		fires := evalConditionalEdges(srcEdges, statuses[src].output)
		for i, e := range srcEdges {
			if !fires[i] {
				return "condition not met", nil, false
			}
			if !added[e.Source] {
				inputs = append(inputs, depInput{
					nodeID:    e.Source,
					agentName: statuses[e.Source].agentName,
					output:    statuses[e.Source].output,
				})
				added[e.Source] = true
			}
		}
	}
	return "", inputs, true
}

// recall consults the attached Recaller, if any, using the dependency
// outputs (or the user query, for a root node) as the query text. A nil
// Recaller or a Recall error both mean no recall block is added — memory
// is an enrichment, never a requirement for a node to run.
func (ex *Executor) recall(ctx context.Context, executionID, nodeID, userQuery string, inputs []depInput) []RecallResult {
	if ex.recaller == nil {
		return nil
	}
	query := userQuery
	if len(inputs) > 0 {
		var b strings.Builder
		for _, in := range inputs {
			b.WriteString(in.output)
			b.WriteString("\n")
		}
		query = b.String()
	}
	results, err := ex.recaller.Recall(ctx, executionID, nodeID, query)
	if err != nil {
		return nil
	}
	return results
}

// buildPrompt assembles a node's user-turn prompt, in order: a recalled-
// memory block (only when recall found anything), a context block
// listing dependency outputs by agent name (only when the node has
// dependencies), or the raw user query (only for a dependency-free node
// with one). Blocks are joined by a blank line; a node with nothing to
// say gets the literal fallback text.
func buildPrompt(userQuery string, recalled []RecallResult, inputs []depInput) string {
	var blocks []string

	if len(recalled) > 0 {
		var b strings.Builder
		b.WriteString("Recalled from memory:")
		for _, r := range recalled {
			fmt.Fprintf(&b, "\n[%s]:\n%s", r.Key, r.Text)
		}
		blocks = append(blocks, b.String())
	}

	switch {
	case len(inputs) > 0:
		var b strings.Builder
		b.WriteString("Context from previous agents:")
		for _, in := range inputs {
			fmt.Fprintf(&b, "\n[%s]:\n%s", in.agentName, in.output)
		}
		blocks = append(blocks, b.String())
	case userQuery != "":
		blocks = append(blocks, "User input:\n"+userQuery)
	}

	if len(blocks) == 0 {
		return "No input provided."
	}
	return strings.Join(blocks, "\n\n")
}

// runAgent executes cfg's node with retries, returning the number of
// retries actually used (0 when it succeeds on the first try).
func (ex *Executor) runAgent(ctx context.Context, workflowID, executionID, nodeID string, cfg NodeConfig, prompt string) (provider.Response, int, error) {
	var resp provider.Response
	attempts := 0

	baseDelay := ex.cfg.defaultBaseDelay
	err := withRetry(ctx, cfg.effectiveMaxRetries(), baseDelay, func(ctx context.Context) error {
		attempts++
		r, err := ex.callOnce(ctx, nodeID, cfg, prompt)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, func(attempt int, retryErr error) {
		ex.metrics.agentRetried(workflowID, nodeID)
		ex.publisher.Publish(ctx, events.AgentRetryingEvent(executionID, nodeID, attempt, retryErr.Error()))
	})

	return resp, attempts - 1, err
}

// callOnce makes exactly one adapter call, bounded by cfg's timeout, or
// by the executor's default node timeout when cfg sets none.
func (ex *Executor) callOnce(ctx context.Context, nodeID string, cfg NodeConfig, prompt string) (provider.Response, error) {
	if cfg.TimeoutSeconds <= 0 && ex.cfg.defaultNodeTimeout >= time.Second {
		cfg.TimeoutSeconds = int(ex.cfg.defaultNodeTimeout / time.Second)
	}

	adapter, ok := ex.adapters[cfg.Provider]
	if !ok {
		return provider.Response{}, &EngineError{
			Message: fmt.Sprintf("no adapter registered for provider %q (node %s)", cfg.Provider, nodeID),
			Code:    "UNKNOWN_PROVIDER",
		}
	}

	var resp provider.Response
	err := withNodeTimeout(ctx, nodeID, cfg, func(ctx context.Context) error {
		r, err := adapter.Complete(ctx, prompt, cfg.SystemPrompt, provider.CompletionConfig{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.effectiveMaxTokens(),
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

func (ex *Executor) recordSkipped(ctx context.Context, workflowID, executionID string, entry AgentPlanEntry, order, groupIndex int, reason string) {
	ex.metrics.agentSkipped(workflowID, entry.NodeID, reason)
	ex.publisher.Publish(ctx, events.AgentSkippedEvent(executionID, entry.NodeID, reason))
	_ = ex.store.UpsertAgentRun(ctx, AgentRun{
		ExecutionID:    executionID,
		AgentNodeID:    entry.NodeID,
		Status:         AgentRunSkipped,
		Provider:       entry.Config.Provider,
		Model:          entry.Config.Model,
		ExecutionOrder: order,
		ParallelGroup:  groupIndex,
		ErrorMessage:   reason,
	})
}
