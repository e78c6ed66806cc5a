package telemetry_test

import (
	"context"
	"testing"

	"github.com/erp/manufacturing/internal/infrastructure/config"
	"github.com/erp/manufacturing/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	tp, err := telemetry.NewTracerProvider(ctx, config.TelemetryConfig{ServiceName: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	t.Run("telemetry off", func(t *testing.T) {
		mp, err := telemetry.NewMeterProvider(ctx, config.TelemetryConfig{MetricsEnabled: true}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.False(t, mp.IsEnabled())
		assert.NotNil(t, mp.Meter("test"))
		assert.NoError(t, mp.Shutdown(ctx))
	})

	t.Run("metrics off", func(t *testing.T) {
		mp, err := telemetry.NewMeterProvider(ctx, config.TelemetryConfig{Enabled: true}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.False(t, mp.IsEnabled())
	})
}

func TestNewProfiler(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		p, err := telemetry.NewProfiler(config.TelemetryConfig{}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.False(t, p.IsEnabled())
		assert.NoError(t, p.Stop())
		assert.NoError(t, p.Stop())
	})

	t.Run("enabled without endpoint", func(t *testing.T) {
		_, err := telemetry.NewProfiler(config.TelemetryConfig{ProfilingEnabled: true}, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pyroscope_endpoint")
	})
}
