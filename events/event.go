// Package events defines the fixed catalog of execution lifecycle events
// the engine publishes as work progresses, and the ways a caller can
// receive them: a local emit.Emitter sink for logs/traces, and a
// fire-and-forget pub/sub channel a remote UI subscribes to.
package events

import "encoding/json"

// Type is one of the fixed event kinds the executor emits. Unlike
// graph/emit's free-form Msg string, Type is a closed set: a consumer
// switching on it never needs a default case for an unknown local
// message.
type Type string

const (
	AgentStarted       Type = "agent_started"
	AgentCompleted     Type = "agent_completed"
	AgentFailed        Type = "agent_failed"
	AgentRetrying      Type = "agent_retrying"
	AgentFallback      Type = "agent_fallback"
	AgentSkipped       Type = "agent_skipped"
	BudgetWarning      Type = "budget_warning"
	BudgetExceeded     Type = "budget_exceeded"
	ExecutionCompleted Type = "execution_completed"
)

// Event is one structured message about an execution's progress. Data
// is kind-specific (see the constructors in publisher.go) and carries
// only fields a consumer for that Type would need.
type Event struct {
	ExecutionID string          `json:"execution_id"`
	Type        Type            `json:"type"`
	NodeID      string          `json:"node_id,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// Channel is the pub/sub channel name an execution's events are
// published to. UIs and log tailers subscribe to this to watch one run.
func Channel(executionID string) string {
	return "execution:" + executionID
}
