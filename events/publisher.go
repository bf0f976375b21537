package events

import (
	"context"
	"encoding/json"

	"github.com/nexusflow/agentflow/graph/emit"
)

// Publisher delivers an Event to whatever is watching an execution.
// Publish must never block the executor on a slow or absent
// subscriber and must never return an error the caller is expected to
// act on — a publish failure is swallowed, same as graph/emit.Emitter's
// emit contract.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// NullPublisher discards every event. Used when a caller runs a graph
// without wiring up streaming at all.
type NullPublisher struct{}

func (NullPublisher) Publish(context.Context, Event) {}

// LocalEmitterPublisher adapts a graph/emit.Emitter into a Publisher,
// so the same log/trace/metrics sinks the rest of the engine uses also
// see execution lifecycle events. event.Data is passed through as the
// emitted Event's Meta under the "data" key.
type LocalEmitterPublisher struct {
	Emitter emit.Emitter
}

func NewLocalEmitterPublisher(e emit.Emitter) *LocalEmitterPublisher {
	return &LocalEmitterPublisher{Emitter: e}
}

func (p *LocalEmitterPublisher) Publish(_ context.Context, ev Event) {
	if p.Emitter == nil {
		return
	}
	meta := map[string]interface{}{
		"execution_id": ev.ExecutionID,
	}
	if len(ev.Data) > 0 {
		var decoded interface{}
		if err := json.Unmarshal(ev.Data, &decoded); err == nil {
			meta["data"] = decoded
		}
	}
	p.Emitter.Emit(emit.Event{
		RunID:  ev.ExecutionID,
		NodeID: ev.NodeID,
		Msg:    string(ev.Type),
		Meta:   meta,
	})
}

// MultiPublisher fans one event out to every child publisher. A child
// that panics is not recovered from here; each child implementation is
// responsible for never panicking, same as Emitter.Emit's contract.
type MultiPublisher struct {
	Publishers []Publisher
}

func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{Publishers: publishers}
}

func (m *MultiPublisher) Publish(ctx context.Context, ev Event) {
	for _, p := range m.Publishers {
		if p == nil {
			continue
		}
		p.Publish(ctx, ev)
	}
}

func marshalData(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// AgentStartedEvent builds the payload published when an agent begins
// its first attempt.
func AgentStartedEvent(executionID, nodeID, agentName string, parallelGroup int, provider, model string) Event {
	return Event{
		ExecutionID: executionID,
		Type:        AgentStarted,
		NodeID:      nodeID,
		Data: marshalData(map[string]interface{}{
			"agent_name":     agentName,
			"parallel_group": parallelGroup,
			"provider":       provider,
			"model":          model,
		}),
	}
}

// AgentCompletedEvent builds the payload published when an agent
// finishes successfully.
func AgentCompletedEvent(executionID, nodeID, agentName string, promptTokens, completionTokens int, cost float64, latencyMs int64) Event {
	return Event{
		ExecutionID: executionID,
		Type:        AgentCompleted,
		NodeID:      nodeID,
		Data: marshalData(map[string]interface{}{
			"agent_name":        agentName,
			"tokens_prompt":     promptTokens,
			"tokens_completion": completionTokens,
			"cost":              cost,
			"latency_ms":        latencyMs,
		}),
	}
}

// AgentFailedEvent builds the payload published when an agent attempt
// fails. willRetry and retriesRemaining describe what happens next; once
// retries (and any fallback) are exhausted, willRetry is false.
func AgentFailedEvent(executionID, nodeID, errMsg string, willRetry bool, retriesRemaining int) Event {
	return Event{
		ExecutionID: executionID,
		Type:        AgentFailed,
		NodeID:      nodeID,
		Data: marshalData(map[string]interface{}{
			"error":             errMsg,
			"will_retry":        willRetry,
			"retries_remaining": retriesRemaining,
		}),
	}
}

// AgentRetryingEvent builds the payload published between retry
// attempts.
func AgentRetryingEvent(executionID, nodeID string, attempt int, errMsg string) Event {
	return Event{
		ExecutionID: executionID,
		Type:        AgentRetrying,
		NodeID:      nodeID,
		Data: marshalData(map[string]interface{}{
			"attempt": attempt,
			"error":   errMsg,
		}),
	}
}

// AgentFallbackEvent builds the payload published when a fallback
// agent is invoked in place of nodeID after its retries are exhausted.
func AgentFallbackEvent(executionID, nodeID, fallbackAgentID, fallbackAgentName string) Event {
	return Event{
		ExecutionID: executionID,
		Type:        AgentFallback,
		NodeID:      nodeID,
		Data: marshalData(map[string]interface{}{
			"original_agent_id":   nodeID,
			"fallback_agent_id":   fallbackAgentID,
			"fallback_agent_name": fallbackAgentName,
			"reason":              "retries exhausted",
		}),
	}
}

// AgentSkippedEvent builds the payload published when a node is never
// run because an upstream dependency failed or a conditional edge did
// not match.
func AgentSkippedEvent(executionID, nodeID, reason string) Event {
	return Event{
		ExecutionID: executionID,
		Type:        AgentSkipped,
		NodeID:      nodeID,
		Data: marshalData(map[string]interface{}{
			"reason": reason,
		}),
	}
}

// BudgetWarningEvent builds the payload published the first time
// consumption crosses the warning threshold for either cap. budget is
// whichever cap (tokens or cost) tripped the warning, in the same unit
// as consumed, so percentage = consumed/budget × 100.
func BudgetWarningEvent(executionID string, consumed, budget, percentage float64) Event {
	return Event{
		ExecutionID: executionID,
		Type:        BudgetWarning,
		Data: marshalData(map[string]interface{}{
			"consumed":   consumed,
			"budget":     budget,
			"percentage": percentage,
		}),
	}
}

// BudgetExceededEvent builds the payload published when a budget cap is
// crossed, naming the agents that will never run as a result.
func BudgetExceededEvent(executionID string, consumed, budget float64, agentsNotRun []string) Event {
	return Event{
		ExecutionID: executionID,
		Type:        BudgetExceeded,
		Data: marshalData(map[string]interface{}{
			"consumed":       consumed,
			"budget":         budget,
			"agents_not_run": agentsNotRun,
		}),
	}
}

// ExecutionTotals summarizes one finished execution for
// ExecutionCompletedEvent's payload.
type ExecutionTotals struct {
	TokensPrompt     int     `json:"tokens_prompt"`
	TokensCompletion int     `json:"tokens_completion"`
	Cost             float64 `json:"cost"`
	DurationMs       int64   `json:"duration_ms"`
	AgentsCompleted  int     `json:"agents_completed"`
	AgentsFailed     int     `json:"agents_failed"`
	AgentsSkipped    int     `json:"agents_skipped"`
}

// ExecutionCompletedEvent builds the payload published once, as the
// final event on an execution's channel — after this, subscribers may
// close.
func ExecutionCompletedEvent(executionID, status string, totals ExecutionTotals) Event {
	return Event{
		ExecutionID: executionID,
		Type:        ExecutionCompleted,
		Data: marshalData(map[string]interface{}{
			"status": status,
			"totals": totals,
		}),
	}
}
