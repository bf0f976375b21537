package emit

import "context"

// NullEmitter implements Emitter by discarding every event. Used when
// observability overhead is unwanted, such as in benchmarks.
type NullEmitter struct{}

// NewNullEmitter creates a NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

func (n *NullEmitter) Emit(event Event) {}

func (n *NullEmitter) EmitBatch(_ context.Context, _ []Event) error {
	return nil
}

func (n *NullEmitter) Flush(_ context.Context) error {
	return nil
}
