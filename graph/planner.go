package graph

import "container/heap"

// Plan turns a graph into an ExecutionPlan: a topological order grouped
// into parallel layers, with a deterministic tie-break so the same graph
// always produces the same plan.
//
// Algorithm (longest-path layering over a Kahn topological sort):
//  1. Build in-degree and dependent adjacency from the edge list.
//  2. Repeatedly pop the lexicographically smallest zero-in-degree node,
//     decrementing the in-degree of its dependents. If fewer than
//     len(nodes) nodes are ever popped, whatever remains at positive
//     in-degree is the cycle witness.
//  3. Assign each popped node to group(n) = 0 if it has no dependencies,
//     else 1 + max(group(d) for d in deps(n)). A group is a
//     synchronization barrier: every dependency is a data dependency, so
//     a downstream node's prompt can only be built once its upstream
//     groups have fully finished.
func Plan(g Graph) (ExecutionPlan, error) {
	if len(g.Nodes) == 0 {
		return ExecutionPlan{}, ErrEmptyWorkflow
	}

	deps := make(map[string][]string)
	dependents := make(map[string][]string)
	inDegree := make(map[string]int)
	nodeByID := make(map[string]Node, len(g.Nodes))

	for _, n := range g.Nodes {
		nodeByID[n.ID] = n
		if _, ok := inDegree[n.ID]; !ok {
			inDegree[n.ID] = 0
		}
	}
	for _, e := range g.Edges {
		if _, ok := nodeByID[e.Source]; !ok {
			continue // dangling edge, silently ignored per the planner's contract
		}
		if _, ok := nodeByID[e.Target]; !ok {
			continue
		}
		deps[e.Target] = append(deps[e.Target], e.Source)
		dependents[e.Source] = append(dependents[e.Source], e.Target)
		inDegree[e.Target]++
	}

	remaining := make(map[string]int, len(inDegree))
	for id, d := range inDegree {
		remaining[id] = d
	}

	ready := &stringHeap{}
	heap.Init(ready)
	for id, d := range remaining {
		if d == 0 {
			heap.Push(ready, id)
		}
	}

	order := make([]string, 0, len(g.Nodes))
	groupOf := make(map[string]int, len(g.Nodes))

	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		order = append(order, id)

		group := 0
		for _, d := range deps[id] {
			if groupOf[d]+1 > group {
				group = groupOf[d] + 1
			}
		}
		groupOf[id] = group

		for _, dep := range dependents[id] {
			remaining[dep]--
			if remaining[dep] == 0 {
				heap.Push(ready, dep)
			}
		}
	}

	if len(order) != len(g.Nodes) {
		var cycle []string
		for id, d := range remaining {
			if d > 0 {
				cycle = append(cycle, id)
			}
		}
		return ExecutionPlan{}, &CircularDependencyError{CycleNodes: cycle}
	}

	return buildPlan(order, groupOf, nodeByID), nil
}

func buildPlan(order []string, groupOf map[string]int, nodeByID map[string]Node) ExecutionPlan {
	maxGroup := 0
	for _, id := range order {
		if groupOf[id] > maxGroup {
			maxGroup = groupOf[id]
		}
	}

	groups := make([]ParallelGroup, maxGroup+1)
	for i := range groups {
		groups[i] = ParallelGroup{Index: i}
	}

	for _, id := range order {
		g := groupOf[id]
		groups[g].Agents = append(groups[g].Agents, AgentPlanEntry{
			NodeID: id,
			Config: nodeByID[id].Data,
		})
	}

	maxParallelism := 0
	for _, grp := range groups {
		if len(grp.Agents) > maxParallelism {
			maxParallelism = len(grp.Agents)
		}
	}

	return ExecutionPlan{
		Groups:          groups,
		TotalAgents:     len(order),
		MaxParallelism:  maxParallelism,
		EstimatedRounds: len(groups),
	}
}

// stringHeap is a min-heap of node ids ordered lexicographically,
// giving Kahn's algorithm a deterministic tie-break among simultaneously
// ready nodes. Adapted from the source engine's scheduler heap, which
// orders work items by a hash-derived key for replay determinism — here
// the ordering key is simply the node id itself, since the planner has
// no notion of replay, only "same graph in, same plan out".
type stringHeap []string

func (h stringHeap) Len() int            { return len(h) }
func (h stringHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h stringHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *stringHeap) Push(x interface{}) { *h = append(*h, x.(string)) }
func (h *stringHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
