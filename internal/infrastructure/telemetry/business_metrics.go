// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics provides business metrics for the ledger and MRP engine.
// It tracks ledger mutations, integrity violations, run outcomes and
// purchase request generation.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	ledgerMutationsTotal     *Counter
	ledgerRejectionsTotal    *Counter
	integrityViolationsTotal *Counter
	mrpRunsTotal             *Counter
	purchaseRequestsTotal    *Counter
	generationSkippedTotal   *Counter

	// Histogram metrics
	mrpRunDuration *Histogram

	// Gauge metrics (point-in-time values)
	openShortageCount    *Gauge
	negativeBalanceCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	ledgerProvider LedgerMetricsProvider
}

// LedgerMetricsProvider provides ledger and planning state for periodic
// metrics collection without tying telemetry to the domain packages.
type LedgerMetricsProvider interface {
	// CountOpenShortages returns requirement rows still in shortage status
	CountOpenShortages(ctx context.Context) (int64, error)

	// CountNegativeBalances returns balance rows holding a negative bucket
	CountNegativeBalances(ctx context.Context) (int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter          metric.Meter
	Logger         *zap.Logger
	LedgerProvider LedgerMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:          cfg.Meter,
		logger:         logger,
		stopChan:       make(chan struct{}),
		ledgerProvider: cfg.LedgerProvider,
	}

	var err error

	bm.ledgerMutationsTotal, err = NewCounter(cfg.Meter,
		"erp_ledger_mutations_total",
		"Total number of committed ledger mutations",
		"{mutations}",
	)
	if err != nil {
		return nil, err
	}

	bm.ledgerRejectionsTotal, err = NewCounter(cfg.Meter,
		"erp_ledger_rejections_total",
		"Total number of ledger mutations rejected by a domain rule",
		"{mutations}",
	)
	if err != nil {
		return nil, err
	}

	bm.integrityViolationsTotal, err = NewCounter(cfg.Meter,
		"ledger_integrity_violations_total",
		"Total number of balances found violating ledger integrity",
		"{violations}",
	)
	if err != nil {
		return nil, err
	}

	bm.mrpRunsTotal, err = NewCounter(cfg.Meter,
		"erp_mrp_runs_total",
		"Total number of MRP runs by terminal status",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	bm.purchaseRequestsTotal, err = NewCounter(cfg.Meter,
		"erp_mrp_purchase_requests_total",
		"Total number of purchase requests generated from MRP runs",
		"{requests}",
	)
	if err != nil {
		return nil, err
	}

	bm.generationSkippedTotal, err = NewCounter(cfg.Meter,
		"erp_mrp_generation_skipped_total",
		"Total number of shortage groups skipped during purchase request generation",
		"{groups}",
	)
	if err != nil {
		return nil, err
	}

	bm.mrpRunDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "erp_mrp_run_duration_seconds",
		Description: "Duration of MRP runs",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	bm.openShortageCount, err = NewGauge(cfg.Meter,
		"erp_mrp_open_shortages",
		"Number of requirement rows still waiting for a purchase request",
		"{requirements}",
	)
	if err != nil {
		return nil, err
	}

	bm.negativeBalanceCount, err = NewGauge(cfg.Meter,
		"erp_ledger_negative_balances",
		"Number of balance rows holding a negative bucket",
		"{balances}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Ledger Metrics
// =============================================================================

// RecordLedgerMutation records a committed balance change.
func (bm *BusinessMetrics) RecordLedgerMutation(ctx context.Context, transactionType string) {
	bm.ledgerMutationsTotal.Inc(ctx, AttrTransactionType.String(transactionType))
}

// RecordLedgerRejection records a mutation refused by a domain rule such as
// insufficient stock.
func (bm *BusinessMetrics) RecordLedgerRejection(ctx context.Context, transactionType, code string) {
	bm.ledgerRejectionsTotal.Inc(ctx,
		AttrTransactionType.String(transactionType),
		AttrErrorCode.String(code),
	)
}

// RecordIntegrityViolation records a balance found with a negative bucket or
// a log that does not replay to the stored balance.
func (bm *BusinessMetrics) RecordIntegrityViolation(ctx context.Context, warehouseID string) {
	bm.integrityViolationsTotal.Inc(ctx, AttrWarehouseID.String(warehouseID))
}

// =============================================================================
// MRP Metrics
// =============================================================================

// RecordMRPRun records a run reaching a terminal status.
func (bm *BusinessMetrics) RecordMRPRun(ctx context.Context, status string, d time.Duration) {
	bm.mrpRunsTotal.Inc(ctx, AttrRunStatus.String(status))
	bm.mrpRunDuration.RecordDuration(ctx, d, AttrRunStatus.String(status))
}

// RecordPurchaseRequests records generated purchase requests.
func (bm *BusinessMetrics) RecordPurchaseRequests(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	bm.purchaseRequestsTotal.Add(ctx, int64(count))
}

// RecordGenerationSkipped records shortage groups skipped during generation.
func (bm *BusinessMetrics) RecordGenerationSkipped(ctx context.Context, reason string, count int) {
	if count <= 0 {
		return
	}
	bm.generationSkippedTotal.Add(ctx, int64(count), AttrErrorCode.String(reason))
}

// RecordOpenShortages records the number of unresolved shortage rows.
func (bm *BusinessMetrics) RecordOpenShortages(ctx context.Context, count int64) {
	bm.openShortageCount.Record(ctx, count)
}

// RecordNegativeBalances records the number of balances holding a negative bucket.
func (bm *BusinessMetrics) RecordNegativeBalances(ctx context.Context, count int64) {
	bm.negativeBalanceCount.Record(ctx, count)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectLedgerMetrics(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectLedgerMetrics(ctx)
		}
	}
}

func (bm *BusinessMetrics) collectLedgerMetrics(ctx context.Context) {
	if bm.ledgerProvider == nil {
		bm.logger.Debug("No ledger provider configured, skipping ledger metrics collection")
		return
	}

	shortages, err := bm.ledgerProvider.CountOpenShortages(ctx)
	if err != nil {
		bm.logger.Warn("Failed to count open shortages", zap.Error(err))
	} else {
		bm.RecordOpenShortages(ctx, shortages)
	}

	negative, err := bm.ledgerProvider.CountNegativeBalances(ctx)
	if err != nil {
		bm.logger.Warn("Failed to count negative balances", zap.Error(err))
		return
	}
	if negative > 0 {
		bm.logger.Error("Balances with negative buckets found", zap.Int64("count", negative))
	}
	bm.RecordNegativeBalances(ctx, negative)
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
