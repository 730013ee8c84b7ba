package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/xizhibei/go-async-calc"

// Telemetry holds OpenTelemetry components
type Telemetry struct {
	tp                  *sdktrace.TracerProvider
	mp                  *sdkmetric.MeterProvider
	tracer              trace.Tracer
	meter               metric.Meter
	calculationDuration metric.Float64Histogram
	errorCounter        metric.Int64Counter
	enabled             bool
}

// Config holds configuration for telemetry setup
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string

	TraceWriter  io.Writer
	MetricWriter io.Writer
	Debug        bool
	Enabled      bool
}

// New creates a new Telemetry instance.
// A disabled config yields the same instance as NewNoop.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create resource")
	}

	if cfg.TraceWriter == nil {
		cfg.TraceWriter = os.Stderr
	}

	if cfg.MetricWriter == nil {
		cfg.MetricWriter = os.Stderr
	}

	var traceExporter sdktrace.SpanExporter
	if cfg.Debug {
		traceExporter, err = stdouttrace.New(
			stdouttrace.WithWriter(cfg.TraceWriter),
			stdouttrace.WithPrettyPrint(),
		)
	} else {
		traceExporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create trace exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	var metricExporter sdkmetric.Exporter
	if cfg.Debug {
		enc := json.NewEncoder(cfg.MetricWriter)
		enc.SetIndent("", "  ")

		metricExporter, err = stdoutmetric.New(
			stdoutmetric.WithEncoder(enc),
			stdoutmetric.WithoutTimestamps(),
		)
	} else {
		metricExporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create metric exporter")
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				metricExporter,
				sdkmetric.WithInterval(10*time.Second),
			),
		),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "calculation_duration"},
				sdkmetric.Stream{
					Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
						Boundaries: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000},
					},
				},
			),
		),
	)
	otel.SetMeterProvider(mp)

	tel, err := newTelemetry(tp.Tracer(instrumentationName), mp.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}
	tel.tp = tp
	tel.mp = mp
	tel.enabled = true

	return tel, nil
}

// NewFromEnv creates a Telemetry instance configured from environment variables.
//
//	OTEL_ENABLED                 enables telemetry, default false
//	OTEL_DEBUG                   writes traces and metrics to stderr instead of OTLP
//	OTEL_EXPORTER_OTLP_ENDPOINT  OTLP gRPC endpoint, default localhost:4317
//	OTEL_ENVIRONMENT             deployment environment, default development
func NewFromEnv(ctx context.Context, serviceName, serviceVersion string) (*Telemetry, error) {
	cfg := Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    getEnvOrDefault("OTEL_ENVIRONMENT", "development"),
		OTLPEndpoint:   getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Enabled:        envBool("OTEL_ENABLED"),
		Debug:          envBool("OTEL_DEBUG"),
	}
	return New(ctx, cfg)
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

// NewNoop creates a Telemetry instance that records nothing.
func NewNoop() *Telemetry {
	tracer := tracenoop.NewTracerProvider().Tracer(instrumentationName)
	meter := metricnoop.NewMeterProvider().Meter(instrumentationName)

	// Instruments of the noop meter never fail.
	tel, _ := newTelemetry(tracer, meter)
	return tel
}

func newTelemetry(tracer trace.Tracer, meter metric.Meter) (*Telemetry, error) {
	calculationDuration, err := meter.Float64Histogram(
		"calculation_duration",
		metric.WithDescription("Duration of calculations"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create calculation duration histogram")
	}

	errorCounter, err := meter.Int64Counter(
		"calculation_error_count",
		metric.WithDescription("Number of failed calculations"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create error counter")
	}

	return &Telemetry{
		tracer:              tracer,
		meter:               meter,
		calculationDuration: calculationDuration,
		errorCounter:        errorCounter,
	}, nil
}

// IsEnabled reports whether telemetry is exported anywhere.
func (t *Telemetry) IsEnabled() bool {
	return t.enabled
}

// Shutdown flushes and stops the telemetry providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.tp != nil {
		if err := t.tp.Shutdown(ctx); err != nil {
			return errors.Wrap(err, "failed to shutdown trace provider")
		}
	}
	if t.mp != nil {
		if err := t.mp.Shutdown(ctx); err != nil {
			return errors.Wrap(err, "failed to shutdown meter provider")
		}
	}
	return nil
}

// RecordCalculation records the duration of a calculation and counts it when err is not nil.
func (t *Telemetry) RecordCalculation(ctx context.Context, duration time.Duration, op string, status string, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("op", op),
		attribute.String("status", status),
	}

	t.calculationDuration.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(attrs...))

	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
		t.errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// StartSpan starts a new span and returns the context and span
func (t *Telemetry) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}
