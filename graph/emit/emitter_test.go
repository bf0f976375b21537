package emit

import (
	"context"
	"testing"
)

func TestEmitterInterfaceContract(t *testing.T) {
	var _ Emitter = (*mockEmitter)(nil)
}

// mockEmitter is a minimal Emitter implementation for testing the interface contract.
type mockEmitter struct {
	events []Event
}

func (m *mockEmitter) Emit(event Event) {
	m.events = append(m.events, event)
}

func (m *mockEmitter) EmitBatch(_ context.Context, events []Event) error {
	m.events = append(m.events, events...)
	return nil
}

func (m *mockEmitter) Flush(_ context.Context) error {
	return nil
}

func TestEmitterEmit(t *testing.T) {
	t.Run("emit single event", func(t *testing.T) {
		emitter := &mockEmitter{}

		event := Event{
			RunID:  "run-001",
			Step:   1,
			NodeID: "node1",
			Msg:    "Test event",
		}

		emitter.Emit(event)

		if len(emitter.events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(emitter.events))
		}
		if emitter.events[0].Msg != "Test event" {
			t.Errorf("expected Msg = 'Test event', got %q", emitter.events[0].Msg)
		}
	})

	t.Run("emit multiple events", func(t *testing.T) {
		emitter := &mockEmitter{}

		events := []Event{
			{RunID: "run-001", Step: 1, Msg: "Event 1"},
			{RunID: "run-001", Step: 2, Msg: "Event 2"},
			{RunID: "run-001", Step: 3, Msg: "Event 3"},
		}

		for _, event := range events {
			emitter.Emit(event)
		}

		if len(emitter.events) != 3 {
			t.Fatalf("expected 3 events, got %d", len(emitter.events))
		}

		for i, event := range emitter.events {
			expectedStep := i + 1
			if event.Step != expectedStep {
				t.Errorf("event %d: expected Step = %d, got %d", i, expectedStep, event.Step)
			}
		}
	})

	t.Run("emit with metadata", func(t *testing.T) {
		emitter := &mockEmitter{}

		event := Event{
			RunID:  "run-001",
			Step:   1,
			NodeID: "llm",
			Msg:    "LLM call completed",
			Meta: map[string]interface{}{
				"tokens_prompt": 150,
				"latency_ms":    250,
			},
		}

		emitter.Emit(event)

		if len(emitter.events) != 1 {
			t.Fatal("expected 1 event")
		}

		meta := emitter.events[0].Meta
		if meta["tokens_prompt"] != 150 {
			t.Errorf("expected tokens_prompt = 150, got %v", meta["tokens_prompt"])
		}
		if meta["latency_ms"] != 250 {
			t.Errorf("expected latency_ms = 250, got %v", meta["latency_ms"])
		}
	})

	t.Run("emit zero value event", func(t *testing.T) {
		emitter := &mockEmitter{}

		emitter.Emit(Event{})

		if len(emitter.events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(emitter.events))
		}
	})
}

func TestEmitterEmitBatch(t *testing.T) {
	emitter := &mockEmitter{}

	events := []Event{
		{RunID: "run-001", Step: 1, Msg: "agent_started"},
		{RunID: "run-001", Step: 1, Msg: "agent_completed"},
	}

	if err := emitter.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("EmitBatch returned error: %v", err)
	}
	if len(emitter.events) != 2 {
		t.Errorf("expected 2 events, got %d", len(emitter.events))
	}
}
