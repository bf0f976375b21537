package graph

import "strings"

// evalConditionalEdges decides, for one completed source node's output,
// which of its outgoing edges actually fire. edges must all share the
// same Source; the result is indexed the same way as the input slice.
//
// Rules, applied per edge:
//   - empty Condition: always fires, regardless of any sibling edge.
//   - Condition "default" (case-insensitive): fires only if no sibling
//     edge with a non-empty, non-"default" condition fired — the
//     switch-statement default case.
//   - any other Condition: fires if it equals the output exactly, or
//     appears as a substring of it.
func evalConditionalEdges(edges []Edge, output string) []bool {
	fires := make([]bool, len(edges))

	anyExplicitMatch := false
	for i, e := range edges {
		if e.Condition == "" || strings.EqualFold(e.Condition, "default") {
			continue
		}
		if e.Condition == output || strings.Contains(output, e.Condition) {
			fires[i] = true
			anyExplicitMatch = true
		}
	}

	for i, e := range edges {
		switch {
		case e.Condition == "":
			fires[i] = true
		case strings.EqualFold(e.Condition, "default"):
			fires[i] = !anyExplicitMatch
		}
	}

	return fires
}
