package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry holds in-memory OpenTelemetry components for tests
type TestTelemetry struct {
	tp       *sdktrace.TracerProvider
	mp       *sdkmetric.MeterProvider
	mr       *sdkmetric.ManualReader
	recorder *tracetest.SpanRecorder
}

// NewTestTelemetry creates a new TestTelemetry instance for testing
func NewTestTelemetry(t *testing.T) *TestTelemetry {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	mr := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(mr))

	return &TestTelemetry{
		tp:       tp,
		mp:       mp,
		mr:       mr,
		recorder: recorder,
	}
}

// Telemetry returns an enabled Telemetry backed by the in-memory providers.
func (tt *TestTelemetry) Telemetry(t *testing.T) *Telemetry {
	t.Helper()

	tel, err := newTelemetry(tt.tp.Tracer(instrumentationName), tt.mp.Meter(instrumentationName))
	if err != nil {
		t.Fatalf("create test telemetry: %v", err)
	}
	tel.tp = tt.tp
	tel.mp = tt.mp
	tel.enabled = true
	return tel
}

// Shutdown gracefully shuts down the test telemetry providers
func (tt *TestTelemetry) Shutdown(ctx context.Context) error {
	if err := tt.tp.Shutdown(ctx); err != nil {
		return err
	}
	if err := tt.mp.Shutdown(ctx); err != nil {
		return err
	}
	return nil
}

// GetReader returns the metric reader for testing
func (tt *TestTelemetry) GetReader() *sdkmetric.ManualReader {
	return tt.mr
}

// GetSpanRecorder returns the recorder of ended spans
func (tt *TestTelemetry) GetSpanRecorder() *tracetest.SpanRecorder {
	return tt.recorder
}
