package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// EngineError is an error with a machine-readable Code, for the cases
// where a caller across a process boundary (the admission API, a job
// queue) needs to branch on what went wrong rather than just log it.
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrEmptyWorkflow is returned by Plan when the graph has no nodes.
var ErrEmptyWorkflow = errors.New("workflow has no nodes")

// CircularDependencyError is returned by Plan when the graph contains a
// cycle. CycleNodes holds every node still at positive in-degree once
// Kahn's algorithm stalls — the cycle witness callers need to report
// back to whoever submitted the graph.
type CircularDependencyError struct {
	CycleNodes []string
}

func (e *CircularDependencyError) Error() string {
	nodes := append([]string(nil), e.CycleNodes...)
	sort.Strings(nodes)
	return fmt.Sprintf("circular dependency among nodes: %s", strings.Join(nodes, ", "))
}

// ErrConflict is returned by admission when a non-terminal execution
// already exists for a workflow.
var ErrConflict = errors.New("a running execution already exists for this workflow")
