// Package memory implements the optional recall hook an Executor can
// consult before building a node's prompt: given a node about to run and
// the input it would otherwise see, return semantically related
// memories scoped to the execution.
//
// No vector database ships in this module, so the only concrete
// implementation here is NullRecaller — a documented extension point a
// caller wires a real embedding-backed store into by implementing
// graph.Recaller directly against whatever vector store they run.
package memory

import (
	"context"

	"github.com/nexusflow/agentflow/graph"
)

// NullRecaller implements graph.Recaller and always returns no results.
// It behaves the same as an Executor with no Recaller at all, which is
// the default.
type NullRecaller struct{}

// Recall always returns an empty, nil-error result.
func (NullRecaller) Recall(ctx context.Context, executionID, nodeID, input string) ([]graph.RecallResult, error) {
	return nil, nil
}
