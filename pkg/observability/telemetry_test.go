package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTelemetryWithoutExporter(t *testing.T) {
	ctx := context.Background()
	p, err := InitTelemetry(ctx, Config{ServiceName: "franchise-test", Environment: "test", SamplingRate: 7})
	if err != nil {
		t.Fatalf("InitTelemetry: %v", err)
	}
	t.Cleanup(func() {
		if err := p.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})

	_, span := otel.Tracer("test").Start(ctx, "distribute")
	if !span.SpanContext().IsSampled() {
		t.Error("out-of-range sampling rate should fall back to sampling everything")
	}
	span.End()

	m := Domain()
	m.RevenueDistributed(ctx, "cafe")
	m.PayoutTransfer(ctx, "succeeded")
}
