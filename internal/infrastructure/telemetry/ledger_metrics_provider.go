// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormLedgerMetricsProvider implements LedgerMetricsProvider using GORM.
// It queries the ledger and planning tables directly for aggregated metrics.
type GormLedgerMetricsProvider struct {
	db *gorm.DB
}

// NewGormLedgerMetricsProvider creates a new GormLedgerMetricsProvider.
func NewGormLedgerMetricsProvider(db *gorm.DB) *GormLedgerMetricsProvider {
	return &GormLedgerMetricsProvider{db: db}
}

// CountOpenShortages returns requirement rows of completed runs still in shortage status.
func (p *GormLedgerMetricsProvider) CountOpenShortages(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("mrp_requirements AS r").
		Joins("JOIN mrp_runs AS m ON m.id = r.mrp_run_id").
		Where("r.status = ? AND m.status = ?", "shortage", "completed").
		Count(&count).Error

	return count, err
}

// CountNegativeBalances returns balance rows holding a negative bucket.
func (p *GormLedgerMetricsProvider) CountNegativeBalances(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("inventory_balances").
		Where("quantity_available < 0 OR quantity_reserved < 0 OR quantity_under_inspection < 0 OR quantity_rejected < 0").
		Count(&count).Error

	return count, err
}
