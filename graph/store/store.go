// Package store persists Executions and their AgentRuns so a status
// poll or a crash-recovery pass can see what a running (or finished)
// execution has done so far.
package store

import (
	"context"
	"errors"

	"github.com/nexusflow/agentflow/graph"
)

// ErrNotFound is returned when a lookup by ID finds nothing.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence surface the executor and the admission API
// share. An AgentRun is uniquely identified by (ExecutionID,
// AgentNodeID); UpsertAgentRun must enforce that uniqueness rather than
// appending duplicate rows when the executor updates a run's status
// more than once.
type Store interface {
	CreateExecution(ctx context.Context, exec graph.Execution) error
	UpdateExecution(ctx context.Context, exec graph.Execution) error
	GetExecution(ctx context.Context, id string) (graph.Execution, error)

	UpsertAgentRun(ctx context.Context, run graph.AgentRun) error
	ListAgentRuns(ctx context.Context, executionID string) ([]graph.AgentRun, error)

	Close() error
}
