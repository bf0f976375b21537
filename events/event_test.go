package events

import (
	"context"
	"testing"

	"github.com/nexusflow/agentflow/graph/emit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelNaming(t *testing.T) {
	assert.Equal(t, "execution:abc-123", Channel("abc-123"))
}

func TestNullPublisherDoesNothing(t *testing.T) {
	var p Publisher = NullPublisher{}
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), AgentStartedEvent("e1", "n1", "researcher", 0, "openai", "gpt-4o-mini"))
	})
}

func TestLocalEmitterPublisherForwardsToBufferedEmitter(t *testing.T) {
	buf := emit.NewBufferedEmitter()
	p := NewLocalEmitterPublisher(buf)

	p.Publish(context.Background(), AgentCompletedEvent("exec-1", "node-a", "researcher", 100, 50, 0.002, 1200))

	history := buf.GetHistory("exec-1")
	require.Len(t, history, 1)
	assert.Equal(t, "node-a", history[0].NodeID)
	assert.Equal(t, string(AgentCompleted), history[0].Msg)
	assert.NotNil(t, history[0].Meta["data"])
}

func TestMultiPublisherFansOutToAllChildren(t *testing.T) {
	bufA := emit.NewBufferedEmitter()
	bufB := emit.NewBufferedEmitter()
	m := NewMultiPublisher(NewLocalEmitterPublisher(bufA), NewLocalEmitterPublisher(bufB))

	m.Publish(context.Background(), AgentFailedEvent("exec-1", "node-a", "boom", false, 0))

	assert.Len(t, bufA.GetHistory("exec-1"), 1)
	assert.Len(t, bufB.GetHistory("exec-1"), 1)
}

func TestMultiPublisherSkipsNilChildren(t *testing.T) {
	buf := emit.NewBufferedEmitter()
	m := NewMultiPublisher(nil, NewLocalEmitterPublisher(buf))

	assert.NotPanics(t, func() {
		m.Publish(context.Background(), AgentSkippedEvent("exec-1", "node-a", "dependency failed"))
	})
	assert.Len(t, buf.GetHistory("exec-1"), 1)
}

func TestBudgetExceededEventCarriesAgentsNotRun(t *testing.T) {
	ev := BudgetExceededEvent("exec-1", 9000, 12.5, []string{"summarize", "review"})
	require.NotNil(t, ev.Data)
	assert.Equal(t, BudgetExceeded, ev.Type)
}
