package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")

	cfg := ConfigFromEnv("scheduling-service")
	if cfg.Enabled {
		t.Fatal("expected tracing disabled")
	}
	if cfg.OTLPEndpoint != "collector:4317" || cfg.SampleRatio != 0.25 || cfg.ServiceName != "scheduling-service" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	t.Setenv("OTEL_SAMPLING_RATIO", "7")
	if got := ConfigFromEnv("x").SampleRatio; got != 1 {
		t.Fatalf("expected out-of-range ratio to fall back to 1, got %v", got)
	}
}

func TestSetup_DisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if st := CaptureTrace(context.Background()); st != (StoredTrace{}) {
		t.Fatalf("expected empty trace context without a span, got %+v", st)
	}
	ctx := context.Background()
	if got := (StoredTrace{}).Attach(ctx); got != ctx {
		t.Fatal("expected Attach of an empty trace to return ctx unchanged")
	}
}

func TestStoredTrace_RoundTrip(t *testing.T) {
	if _, err := Setup(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	st := StoredTrace{Parent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}
	ctx := st.Attach(context.Background())
	if sc := trace.SpanContextFromContext(ctx); !sc.IsRemote() || sc.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("unexpected span context %+v", sc)
	}
	if got := CaptureTrace(ctx); got.Parent != st.Parent {
		t.Fatalf("expected traceparent to survive, got %q", got.Parent)
	}
}
