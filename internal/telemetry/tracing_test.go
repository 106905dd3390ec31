package telemetry

import (
	"context"
	"testing"

	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_InvalidSampleRate(t *testing.T) {
	_, err := InitTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "none", SampleRate: 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample rate")
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "jaeger", SampleRate: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported exporter")
}

func TestInitTracing_NoneExporter(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{
		Enabled:        true,
		Exporter:       "none",
		ServiceName:    "eventhub-test",
		ServiceVersion: "test",
		SampleRate:     1,
	})
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "unit")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, shutdown(context.Background()))
}
