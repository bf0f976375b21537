package store

import (
	"context"
	"testing"

	"github.com/nexusflow/agentflow/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreCreateAndGetExecutionRoundTripsThroughJSON(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	g := graph.Graph{Nodes: []graph.Node{{ID: "a", Type: graph.NodeTypeAgent}}}
	plan, err := graph.Plan(g)
	require.NoError(t, err)

	exec := graph.Execution{
		ID:            "exec-1",
		WorkflowID:    "wf-1",
		GraphSnapshot: g,
		Plan:          plan,
		CreatedAt:     "2026-07-29T00:00:00Z",
		Status:        graph.ExecutionPending,
	}
	require.NoError(t, s.CreateExecution(ctx, exec))

	got, err := s.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, exec.WorkflowID, got.WorkflowID)
	assert.Equal(t, exec.Plan.TotalAgents, got.Plan.TotalAgents)
	require.Len(t, got.GraphSnapshot.Nodes, 1)
	assert.Equal(t, "a", got.GraphSnapshot.Nodes[0].ID)
}

func TestSQLiteStoreGetExecutionNotFound(t *testing.T) {
	s := newTestSQLiteStore(t)
	_, err := s.GetExecution(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreUpdateExecutionRequiresExisting(t *testing.T) {
	s := newTestSQLiteStore(t)
	err := s.UpdateExecution(context.Background(), graph.Execution{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreUpsertAgentRunOverwritesOnConflict(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	run := graph.AgentRun{ExecutionID: "exec-1", AgentNodeID: "a", Status: graph.AgentRunRunning, Provider: "openai", Model: "gpt-4o-mini"}
	require.NoError(t, s.UpsertAgentRun(ctx, run))

	run.Status = graph.AgentRunCompleted
	run.TokensPrompt = 120
	require.NoError(t, s.UpsertAgentRun(ctx, run))

	runs, err := s.ListAgentRuns(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, graph.AgentRunCompleted, runs[0].Status)
	assert.Equal(t, 120, runs[0].TokensPrompt)
}

func TestSQLiteStoreListAgentRunsOrderedByExecutionOrder(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertAgentRun(ctx, graph.AgentRun{ExecutionID: "exec-1", AgentNodeID: "b", ExecutionOrder: 2}))
	require.NoError(t, s.UpsertAgentRun(ctx, graph.AgentRun{ExecutionID: "exec-1", AgentNodeID: "a", ExecutionOrder: 1}))

	runs, err := s.ListAgentRuns(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].AgentNodeID)
	assert.Equal(t, "b", runs[1].AgentNodeID)
}
