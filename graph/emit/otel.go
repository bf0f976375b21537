package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by turning each event into an
// immediately-ended OpenTelemetry span named after event.Msg, with
// event.Meta attached as span attributes under the "agentflow."
// namespace. An event whose Meta carries an "error" string marks the
// span's status as an error.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter from tracer, e.g.
// otel.Tracer("agentflow").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()
	o.annotate(span, event)
}

// EmitBatch creates and immediately ends one span per event, in order.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, event.Msg)
		o.annotate(span, event)
		span.End()
	}
	return nil
}

// Flush calls ForceFlush on the active tracer provider when it supports
// one (the SDK provider does; the no-op provider does not).
func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()

	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) annotate(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("agentflow.run_id", event.RunID),
		attribute.Int("agentflow.step", event.Step),
		attribute.String("agentflow.node_id", event.NodeID),
	)
	o.addMetadataAttributes(span, event.Meta)
	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

// addMetadataAttributes converts an event's metadata map into span
// attributes, mapping agentflow's own cost/latency keys onto a
// consistent agentflow.llm./agentflow.node. namespace and falling back to
// the bare key for everything else.
func (o *OTelEmitter) addMetadataAttributes(span trace.Span, meta map[string]interface{}) {
	if meta == nil {
		return
	}

	for key, value := range meta {
		attrKey := key
		switch key {
		case "tokens_prompt":
			attrKey = "agentflow.llm.tokens_prompt"
		case "tokens_completion":
			attrKey = "agentflow.llm.tokens_completion"
		case "cost":
			attrKey = "agentflow.llm.cost_usd"
		case "latency_ms":
			attrKey = "agentflow.node.latency_ms"
		case "model":
			attrKey = "agentflow.llm.model"
		case "provider":
			attrKey = "agentflow.llm.provider"
		}

		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
