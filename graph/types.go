// Package graph implements the workflow execution engine: planning a
// directed-acyclic graph of LLM-calling agents into parallel groups,
// estimating and enforcing a token/cost budget, and running the plan
// with retries, fallbacks, conditional edges and failure propagation.
package graph

import "encoding/json"

// NodeType distinguishes what a graph node does. The planner and the
// executor do not look at Type: Tool and Conditional nodes plan like any
// other node, and the executor runs every planned node as an agent call
// with its own agent run, whatever its Type.
type NodeType string

const (
	NodeTypeAgent       NodeType = "agent"
	NodeTypeTool        NodeType = "tool"
	NodeTypeConditional NodeType = "conditional"
)

// NodeConfig holds the fields the engine recognizes on a node's `data`
// configuration object. Unrecognized fields a caller puts in `data` are
// simply not looked at — the planner and executor only read what's
// listed here.
type NodeConfig struct {
	Name            string  `json:"name"`
	Provider        string  `json:"provider"`
	Model           string  `json:"model"`
	SystemPrompt    string  `json:"system_prompt"`
	Temperature     float64 `json:"temperature"`
	MaxTokens       int     `json:"max_tokens"`
	MaxRetries      int     `json:"max_retries"`
	TimeoutSeconds  int     `json:"timeout_seconds"`
	FallbackAgentID string  `json:"fallback_agent_id"`
}

// effectiveMaxTokens returns MaxTokens with the engine's default of 1000
// applied when unset.
func (c NodeConfig) effectiveMaxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}

// effectiveMaxRetries returns MaxRetries with the engine's default of 2
// applied when unset. A negative value is treated as zero retries
// rather than "unset", so callers can explicitly disable retrying.
func (c NodeConfig) effectiveMaxRetries() int {
	if c.MaxRetries == 0 {
		return 2
	}
	if c.MaxRetries < 0 {
		return 0
	}
	return c.MaxRetries
}

// Node is one vertex of the input graph.
type Node struct {
	ID   string     `json:"id"`
	Type NodeType   `json:"type"`
	Data NodeConfig `json:"data"`
}

// Edge is one directed dependency between two nodes. Condition, when
// non-empty, is evaluated against the source node's completed output
// text to decide whether the target receives live input — see
// evalConditionalEdges.
type Edge struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Condition string `json:"condition,omitempty"`
}

// Graph is the workflow as submitted: an ordered node list and an
// ordered edge list. Dangling edges (source or target not present in
// Nodes) are silently ignored by the planner — admission is responsible
// for rejecting those before a graph ever reaches here.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeByID returns the node with the given id, or false if absent.
func (g Graph) NodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// AgentPlanEntry is one planned node within a ParallelGroup.
type AgentPlanEntry struct {
	NodeID string     `json:"node_id"`
	Config NodeConfig `json:"config"`
}

// ParallelGroup is a set of agents the executor runs concurrently; every
// agent in group Index must reach a terminal state before the group at
// Index+1 starts.
type ParallelGroup struct {
	Index  int              `json:"index"`
	Agents []AgentPlanEntry `json:"agents"`
}

// ExecutionPlan is the planner's output: a DAG turned into an ordered
// sequence of parallel groups, plus a summary the budget estimator and
// the admission layer use without re-walking the graph.
type ExecutionPlan struct {
	Groups          []ParallelGroup `json:"groups"`
	TotalAgents     int             `json:"total_agents"`
	MaxParallelism  int             `json:"max_parallelism"`
	EstimatedRounds int             `json:"estimated_rounds"`
}

// ToJSON serializes the plan for the job-queue payload.
func (p ExecutionPlan) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// PlanFromJSON is the inverse of ToJSON.
func PlanFromJSON(data []byte) (ExecutionPlan, error) {
	var p ExecutionPlan
	if err := json.Unmarshal(data, &p); err != nil {
		return ExecutionPlan{}, err
	}
	return p, nil
}

// ExecutionStatus is the lifecycle state of an Execution record.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Execution is one record per submission: the immutable plan and caps it
// was admitted with, plus the mutable status and running totals the
// executor updates as it works through the plan.
type Execution struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id"`
	GraphSnapshot Graph           `json:"graph_snapshot"`
	Plan          ExecutionPlan   `json:"execution_plan"`
	MaxTokens     *int            `json:"max_tokens,omitempty"`
	MaxCost       *float64        `json:"max_cost,omitempty"`
	EstimatedCost float64         `json:"estimated_cost"`
	CreatedAt     string          `json:"created_at"`

	Status                ExecutionStatus `json:"status"`
	TotalTokensPrompt     int             `json:"total_tokens_prompt"`
	TotalTokensCompletion int             `json:"total_tokens_completion"`
	TotalCost             float64         `json:"total_cost"`
	StartedAt             *string         `json:"started_at,omitempty"`
	CompletedAt           *string         `json:"completed_at,omitempty"`
	ErrorMessage          *string         `json:"error_message,omitempty"`
}

// AgentRunStatus is the lifecycle state of a single AgentRun.
type AgentRunStatus string

const (
	AgentRunPending   AgentRunStatus = "pending"
	AgentRunRunning   AgentRunStatus = "running"
	AgentRunCompleted AgentRunStatus = "completed"
	AgentRunFailed    AgentRunStatus = "failed"
	AgentRunSkipped   AgentRunStatus = "skipped"
)

// AgentRun is one record per planned node per execution, uniquely keyed
// by (ExecutionID, AgentNodeID). Created, mutated and finalized
// exclusively by the executor running that execution.
type AgentRun struct {
	ExecutionID  string         `json:"execution_id"`
	AgentNodeID  string         `json:"agent_node_id"`
	Status       AgentRunStatus `json:"status"`
	Provider     string         `json:"provider"`
	Model        string         `json:"model"`
	TokensPrompt int            `json:"tokens_prompt"`
	TokensOutput int            `json:"tokens_completion"`
	Cost         float64        `json:"cost"`
	LatencyMs    int64          `json:"latency_ms"`
	Retries      int            `json:"retries"`
	IsFallback   bool           `json:"is_fallback"`
	FallbackFor  string         `json:"fallback_for,omitempty"`

	ExecutionOrder int             `json:"execution_order"`
	ParallelGroup  int             `json:"parallel_group"`
	InputPayload   json.RawMessage `json:"input_payload,omitempty"`
	OutputPayload  json.RawMessage `json:"output_payload,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
}
