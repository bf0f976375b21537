package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvalConditionalEdgesEmptyConditionAlwaysFires(t *testing.T) {
	edges := []Edge{{Source: "a", Target: "b"}}
	fires := evalConditionalEdges(edges, "anything")
	assert.Equal(t, []bool{true}, fires)
}

func TestEvalConditionalEdgesExactMatch(t *testing.T) {
	edges := []Edge{{Source: "a", Target: "b", Condition: "approved"}}
	assert.Equal(t, []bool{true}, evalConditionalEdges(edges, "approved"))
	assert.Equal(t, []bool{false}, evalConditionalEdges(edges, "rejected"))
}

func TestEvalConditionalEdgesSubstringMatch(t *testing.T) {
	edges := []Edge{{Source: "a", Target: "b", Condition: "approved"}}
	assert.Equal(t, []bool{true}, evalConditionalEdges(edges, "the request was approved today"))
}

func TestEvalConditionalEdgesDefaultFiresOnlyWhenNoSiblingMatched(t *testing.T) {
	edges := []Edge{
		{Source: "a", Target: "b", Condition: "approved"},
		{Source: "a", Target: "c", Condition: "default"},
	}

	fires := evalConditionalEdges(edges, "approved")
	assert.Equal(t, []bool{true, false}, fires)

	fires = evalConditionalEdges(edges, "pending")
	assert.Equal(t, []bool{false, true}, fires)
}

func TestEvalConditionalEdgesDefaultIsCaseInsensitive(t *testing.T) {
	edges := []Edge{{Source: "a", Target: "b", Condition: "Default"}}
	assert.Equal(t, []bool{true}, evalConditionalEdges(edges, "anything"))
}
