package telemetry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/manufacturing/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

func newTestBusinessMetrics(t *testing.T, provider telemetry.LedgerMetricsProvider) *telemetry.BusinessMetrics {
	t.Helper()
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:          noop.NewMeterProvider().Meter("test"),
		Logger:         zap.NewNop(),
		LedgerProvider: provider,
	})
	require.NoError(t, err)
	return bm
}

func TestNewBusinessMetrics(t *testing.T) {
	bm := newTestBusinessMetrics(t, nil)
	require.NotNil(t, bm)
}

func TestNewBusinessMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  nil,
		Logger: zap.NewNop(),
	})

	require.Error(t, err)
	assert.Nil(t, bm)
	assert.Equal(t, "NewBusinessMetrics: meter cannot be nil", err.Error())
}

func TestBusinessMetrics_LedgerRecorders(t *testing.T) {
	bm := newTestBusinessMetrics(t, nil)
	ctx := context.Background()

	// Should not panic
	bm.RecordLedgerMutation(ctx, "receipt")
	bm.RecordLedgerMutation(ctx, "transfer")
	bm.RecordLedgerRejection(ctx, "issue", "INSUFFICIENT_STOCK")
	bm.RecordIntegrityViolation(ctx, "wh-1")
}

func TestBusinessMetrics_MRPRecorders(t *testing.T) {
	bm := newTestBusinessMetrics(t, nil)
	ctx := context.Background()

	// Should not panic
	bm.RecordMRPRun(ctx, "completed", 1500*time.Millisecond)
	bm.RecordMRPRun(ctx, "failed", 20*time.Millisecond)
	bm.RecordPurchaseRequests(ctx, 3)
	bm.RecordPurchaseRequests(ctx, 0)
	bm.RecordGenerationSkipped(ctx, "item_deleted", 1)
	bm.RecordOpenShortages(ctx, 7)
	bm.RecordNegativeBalances(ctx, 0)
}

type mockLedgerProvider struct {
	shortageCalls atomic.Int32
	negativeCalls atomic.Int32
	err           error
}

func (m *mockLedgerProvider) CountOpenShortages(ctx context.Context) (int64, error) {
	m.shortageCalls.Add(1)
	if m.err != nil {
		return 0, m.err
	}
	return 4, nil
}

func (m *mockLedgerProvider) CountNegativeBalances(ctx context.Context) (int64, error) {
	m.negativeCalls.Add(1)
	if m.err != nil {
		return 0, m.err
	}
	return 1, nil
}

func TestBusinessMetrics_PeriodicCollection(t *testing.T) {
	provider := &mockLedgerProvider{}
	bm := newTestBusinessMetrics(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bm.StartPeriodicCollection(ctx, 50*time.Millisecond)

	assert.Eventually(t, func() bool {
		return provider.shortageCalls.Load() >= 2 && provider.negativeCalls.Load() >= 2
	}, time.Second, 10*time.Millisecond)

	bm.Stop()
}

func TestBusinessMetrics_PeriodicCollection_ProviderError(t *testing.T) {
	provider := &mockLedgerProvider{err: errors.New("db down")}
	bm := newTestBusinessMetrics(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bm.StartPeriodicCollection(ctx, time.Hour)

	assert.Eventually(t, func() bool {
		return provider.shortageCalls.Load() == 1 && provider.negativeCalls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	bm.Stop()
}

func TestBusinessMetrics_PeriodicCollection_NoProvider(t *testing.T) {
	bm := newTestBusinessMetrics(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Should not panic with no provider
	bm.StartPeriodicCollection(ctx, 50*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	bm.Stop()
}

func TestBusinessMetrics_Stop_Idempotent(t *testing.T) {
	bm := newTestBusinessMetrics(t, nil)

	bm.Stop()
	bm.Stop()
	bm.Stop()
}

func TestBusinessMetrics_StartPeriodicCollection_OnlyOnce(t *testing.T) {
	provider := &mockLedgerProvider{}
	bm := newTestBusinessMetrics(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bm.StartPeriodicCollection(ctx, time.Hour)
	bm.StartPeriodicCollection(ctx, time.Hour)
	bm.StartPeriodicCollection(ctx, time.Hour)

	assert.Eventually(t, func() bool {
		return provider.shortageCalls.Load() == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), provider.shortageCalls.Load())

	bm.Stop()
}

func TestMetricsError_Error(t *testing.T) {
	err := &telemetry.MetricsError{
		Op:  "TestOperation",
		Err: "test error message",
	}

	assert.Equal(t, "TestOperation: test error message", err.Error())
}
