package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"stdout", func(c *Config) { c.ExporterType = ExporterStdout }, false},
		{"otlp", func(c *Config) { c.ExporterType = ExporterOTLP }, false},
		{"unknown exporter", func(c *Config) { c.ExporterType = "jaeger" }, true},
		{"negative sampling", func(c *Config) { c.SamplingRate = -0.1 }, true},
		{"sampling above one", func(c *Config) { c.SamplingRate = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInitializeAndShutdown(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, Initialize(ctx, DefaultConfig(), nil))
	t.Cleanup(func() { Shutdown(ctx) })

	assert.Error(t, Initialize(ctx, DefaultConfig(), nil), "second initialize")

	ctx, span := InstrumentUtterance(ctx, "push_to_talk", 32000)
	assert.True(t, span.SpanContext().IsValid())
	assert.NotEmpty(t, TraceID(ctx))
	span.End()

	require.NoError(t, Shutdown(ctx))
	require.NoError(t, Shutdown(ctx), "shutdown is idempotent")
	require.NoError(t, Initialize(ctx, DefaultConfig(), nil), "initialize after shutdown")
}

func TestRecordError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "stage")
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
}
