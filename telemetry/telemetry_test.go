package telemetry

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type TelemetrySuite struct {
	suite.Suite
	ctx context.Context
}

func (s *TelemetrySuite) SetupTest() {
	s.ctx = context.Background()
}

func TestTelemetrySuite(t *testing.T) {
	suite.Run(t, new(TelemetrySuite))
}

func (s *TelemetrySuite) TestNewDebug() {
	tel, err := New(s.ctx, Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		Debug:          true,
		Enabled:        true,
		TraceWriter:    io.Discard,
		MetricWriter:   io.Discard,
	})
	s.NoError(err)
	s.NotNil(tel)
	s.True(tel.IsEnabled())
	s.NotNil(tel.tp)
	s.NotNil(tel.mp)
	s.NotNil(tel.calculationDuration)
	s.NotNil(tel.errorCounter)
	s.NoError(tel.Shutdown(s.ctx))
}

func (s *TelemetrySuite) TestNewDisabled() {
	tel, err := New(s.ctx, Config{
		ServiceName: "test-service",
		Enabled:     false,
	})
	s.NoError(err)
	s.NotNil(tel)
	s.False(tel.IsEnabled())
	s.Nil(tel.tp)
	s.NoError(tel.Shutdown(s.ctx))
}

func (s *TelemetrySuite) TestNewNoop() {
	tel := NewNoop()
	s.False(tel.IsEnabled())
	s.NotNil(tel.tracer)
	s.NotNil(tel.meter)

	// Must not panic.
	_, span := tel.StartSpan(s.ctx, "noop")
	span.End()
	tel.RecordCalculation(s.ctx, time.Millisecond, "add", "200", nil)
	tel.RecordCalculation(s.ctx, time.Millisecond, "div", "400", errors.New("division by zero"))
	s.NoError(tel.Shutdown(s.ctx))
}

func (s *TelemetrySuite) TestStartSpan() {
	testTel := NewTestTelemetry(s.T())
	defer testTel.Shutdown(s.ctx)

	tel := testTel.Telemetry(s.T())

	_, span := tel.StartSpan(s.ctx, "test-span")
	s.True(span.SpanContext().IsValid())
	span.End()

	ended := testTel.GetSpanRecorder().Ended()
	s.Require().Len(ended, 1)
	s.Equal("test-span", ended[0].Name())
}

func (s *TelemetrySuite) TestRecordCalculation() {
	testTel := NewTestTelemetry(s.T())
	defer testTel.Shutdown(s.ctx)

	tel := testTel.Telemetry(s.T())

	tel.RecordCalculation(s.ctx, 2*time.Millisecond, "add", "200", nil)
	tel.RecordCalculation(s.ctx, 3*time.Millisecond, "div", "400", errors.New("division by zero"))

	var rm metricdata.ResourceMetrics
	s.NoError(testTel.GetReader().Collect(s.ctx, &rm))
	s.Require().NotEmpty(rm.ScopeMetrics)

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	s.True(names["calculation_duration"])
	s.True(names["calculation_error_count"])
}

func (s *TelemetrySuite) TestNewFromEnvDisabled() {
	os.Setenv("OTEL_ENABLED", "false")
	defer os.Unsetenv("OTEL_ENABLED")

	tel, err := NewFromEnv(s.ctx, "test-service", "1.0.0")
	s.NoError(err)
	s.NotNil(tel)
	s.False(tel.IsEnabled())
}

func (s *TelemetrySuite) TestNewFromEnvDebug() {
	os.Setenv("OTEL_ENABLED", "true")
	os.Setenv("OTEL_DEBUG", "true")
	defer func() {
		os.Unsetenv("OTEL_ENABLED")
		os.Unsetenv("OTEL_DEBUG")
	}()

	tel, err := NewFromEnv(s.ctx, "test-service", "1.0.0")
	s.NoError(err)
	s.True(tel.IsEnabled())
	s.NoError(tel.Shutdown(s.ctx))
}

func (s *TelemetrySuite) TestGetEnvOrDefault() {
	os.Setenv("TEST_ENV_VAR", "test-value")
	s.Equal("test-value", getEnvOrDefault("TEST_ENV_VAR", "default-value"))

	os.Unsetenv("TEST_ENV_VAR")
	s.Equal("default-value", getEnvOrDefault("TEST_ENV_VAR", "default-value"))
}

func (s *TelemetrySuite) TestEnvBool() {
	os.Setenv("TEST_ENV_BOOL", "1")
	s.True(envBool("TEST_ENV_BOOL"))

	os.Setenv("TEST_ENV_BOOL", "nope")
	s.False(envBool("TEST_ENV_BOOL"))

	os.Unsetenv("TEST_ENV_BOOL")
	s.False(envBool("TEST_ENV_BOOL"))
}
