package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id string) Node { return Node{ID: id, Type: NodeTypeAgent} }

func TestPlanEmptyGraph(t *testing.T) {
	_, err := Plan(Graph{})
	assert.ErrorIs(t, err, ErrEmptyWorkflow)
}

func TestPlanSingletonNode(t *testing.T) {
	plan, err := Plan(Graph{Nodes: []Node{node("a")}})
	require.NoError(t, err)
	require.Len(t, plan.Groups, 1)
	assert.Equal(t, 1, plan.MaxParallelism)
	assert.Equal(t, 1, plan.TotalAgents)
	assert.Equal(t, 1, plan.EstimatedRounds)
}

func TestPlanDisconnectedComponents(t *testing.T) {
	plan, err := Plan(Graph{Nodes: []Node{node("a"), node("b"), node("c")}})
	require.NoError(t, err)
	require.Len(t, plan.Groups, 1)
	assert.Equal(t, 3, len(plan.Groups[0].Agents))
}

func TestPlanLinearChain(t *testing.T) {
	g := Graph{
		Nodes: []Node{node("a"), node("b"), node("c")},
		Edges: []Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "c"}},
	}
	plan, err := Plan(g)
	require.NoError(t, err)
	require.Len(t, plan.Groups, 3)
	for _, grp := range plan.Groups {
		assert.Len(t, grp.Agents, 1)
	}
	assert.Equal(t, "a", plan.Groups[0].Agents[0].NodeID)
	assert.Equal(t, "b", plan.Groups[1].Agents[0].NodeID)
	assert.Equal(t, "c", plan.Groups[2].Agents[0].NodeID)
}

func TestPlanDiamond(t *testing.T) {
	g := Graph{
		Nodes: []Node{node("a"), node("b"), node("c"), node("d")},
		Edges: []Edge{
			{Source: "a", Target: "b"},
			{Source: "a", Target: "c"},
			{Source: "b", Target: "d"},
			{Source: "c", Target: "d"},
		},
	}
	plan, err := Plan(g)
	require.NoError(t, err)
	require.Len(t, plan.Groups, 3)
	assert.ElementsMatch(t, []string{"a"}, entryIDs(plan.Groups[0]))
	assert.ElementsMatch(t, []string{"b", "c"}, entryIDs(plan.Groups[1]))
	assert.ElementsMatch(t, []string{"d"}, entryIDs(plan.Groups[2]))
}

func TestPlanCircularDependency(t *testing.T) {
	g := Graph{
		Nodes: []Node{node("a"), node("b"), node("c")},
		Edges: []Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
			{Source: "c", Target: "a"},
		},
	}
	_, err := Plan(g)
	require.Error(t, err)
	var cycleErr *CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cycleErr.CycleNodes)
}

func TestPlanDanglingEdgeIgnored(t *testing.T) {
	g := Graph{
		Nodes: []Node{node("a")},
		Edges: []Edge{{Source: "a", Target: "ghost"}, {Source: "ghost", Target: "a"}},
	}
	plan, err := Plan(g)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.TotalAgents)
}

func TestPlanEveryNodeInExactlyOneGroupAndGroupOrdering(t *testing.T) {
	g := Graph{
		Nodes: []Node{node("a"), node("b"), node("c"), node("d"), node("e")},
		Edges: []Edge{
			{Source: "a", Target: "c"},
			{Source: "b", Target: "c"},
			{Source: "c", Target: "d"},
			{Source: "a", Target: "e"},
		},
	}
	plan, err := Plan(g)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, grp := range plan.Groups {
		for _, a := range grp.Agents {
			seen[a.NodeID] = grp.Index
		}
	}
	assert.Len(t, seen, 5)

	for _, e := range g.Edges {
		assert.Less(t, seen[e.Source], seen[e.Target], "group(%s) < group(%s)", e.Source, e.Target)
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	g := Graph{
		Nodes: []Node{node("z"), node("y"), node("x")},
		Edges: nil,
	}
	p1, err := Plan(g)
	require.NoError(t, err)
	p2, err := Plan(g)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, []string{"x", "y", "z"}, entryIDs(p1.Groups[0]))
}

func TestExecutionPlanRoundTripsThroughJSON(t *testing.T) {
	g := Graph{
		Nodes: []Node{node("a"), node("b")},
		Edges: []Edge{{Source: "a", Target: "b"}},
	}
	plan, err := Plan(g)
	require.NoError(t, err)

	data, err := plan.ToJSON()
	require.NoError(t, err)

	roundTripped, err := PlanFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, plan, roundTripped)
}

func entryIDs(g ParallelGroup) []string {
	ids := make([]string, len(g.Agents))
	for i, a := range g.Agents {
		ids[i] = a.NodeID
	}
	return ids
}
