package emit

import (
	"context"
	"testing"
)

func TestNullEmitterDiscardsEventsWithoutError(t *testing.T) {
	emitter := NewNullEmitter()

	events := []Event{
		{RunID: "run-001", Step: 0, NodeID: "node1", Msg: "node_start"},
		{RunID: "run-001", Step: 0, NodeID: "node1", Msg: "node_end"},
		{RunID: "run-001", Step: 1, NodeID: "node2", Msg: "error", Meta: map[string]interface{}{"error": "test"}},
	}
	for _, event := range events {
		emitter.Emit(event)
	}
}

func TestNullEmitterHandlesNilMeta(t *testing.T) {
	emitter := NewNullEmitter()
	emitter.Emit(Event{RunID: "run-001", NodeID: "node1", Msg: "test", Meta: nil})
}

func TestNullEmitterEmitBatchAndFlushAreNoOps(t *testing.T) {
	emitter := NewNullEmitter()

	if err := emitter.EmitBatch(context.Background(), []Event{{Msg: "a"}, {Msg: "b"}}); err != nil {
		t.Fatalf("EmitBatch returned error: %v", err)
	}
	if err := emitter.Flush(context.Background()); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
}

func TestNullEmitterSatisfiesEmitterInterface(t *testing.T) {
	var _ Emitter = NewNullEmitter()
}
