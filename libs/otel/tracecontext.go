package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// StoredTrace is the W3C trace context persisted next to an outbox row, so a
// publish that happens later in another goroutine joins the original trace.
type StoredTrace struct {
	Parent string
	State  string
}

// CaptureTrace serializes the span context of ctx. It is empty without a span.
func CaptureTrace(ctx context.Context) StoredTrace {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return StoredTrace{Parent: carrier.Get("traceparent"), State: carrier.Get("tracestate")}
}

// Attach returns ctx carrying the stored trace as its remote parent.
func (t StoredTrace) Attach(ctx context.Context) context.Context {
	if t.Parent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": t.Parent}
	if t.State != "" {
		carrier["tracestate"] = t.State
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
