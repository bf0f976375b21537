// Package emit provides pluggable observability sinks for the execution
// engine: logs, traces, an in-memory buffer for tests, or nothing at all.
package emit

import "context"

// Emitter receives lifecycle events from a running execution. Emit must
// never block the caller and must never panic; a slow or unavailable
// backend should buffer, drop, or log the failure internally instead of
// propagating it back into the engine.
type Emitter interface {
	// Emit sends one event to the configured backend.
	Emit(event Event)

	// EmitBatch sends several events in one call, in the order given.
	// Partial failures should be logged, not returned; an error here is
	// reserved for catastrophic, non-event-specific failures.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until every buffered event has been sent or ctx
	// expires. Safe to call more than once.
	Flush(ctx context.Context) error
}
