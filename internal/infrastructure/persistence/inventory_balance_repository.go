package persistence

import (
	"context"
	"errors"

	"github.com/erp/manufacturing/internal/domain/inventory"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInventoryBalanceRepository implements InventoryBalanceRepository using GORM
type GormInventoryBalanceRepository struct {
	db *gorm.DB
}

// NewGormInventoryBalanceRepository creates a new GormInventoryBalanceRepository
func NewGormInventoryBalanceRepository(db *gorm.DB) *GormInventoryBalanceRepository {
	return &GormInventoryBalanceRepository{db: db}
}

// FindByItemAndWarehouse finds the balance of an item in a warehouse
func (r *GormInventoryBalanceRepository) FindByItemAndWarehouse(ctx context.Context, itemID, warehouseID uuid.UUID) (*inventory.InventoryBalance, error) {
	return r.find(r.db.WithContext(ctx), itemID, warehouseID)
}

// FindByItemAndWarehouseForUpdate finds the balance and holds a row lock
// (SELECT ... FOR UPDATE) until the surrounding transaction ends
func (r *GormInventoryBalanceRepository) FindByItemAndWarehouseForUpdate(ctx context.Context, itemID, warehouseID uuid.UUID) (*inventory.InventoryBalance, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), itemID, warehouseID)
}

func (r *GormInventoryBalanceRepository) find(query *gorm.DB, itemID, warehouseID uuid.UUID) (*inventory.InventoryBalance, error) {
	var balance inventory.InventoryBalance
	if err := query.
		Where("item_id = ? AND warehouse_id = ?", itemID, warehouseID).
		First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &balance, nil
}

// GetOrCreate gets the existing balance or inserts an empty one
func (r *GormInventoryBalanceRepository) GetOrCreate(ctx context.Context, itemID, warehouseID uuid.UUID) (*inventory.InventoryBalance, bool, error) {
	balance, err := r.FindByItemAndWarehouse(ctx, itemID, warehouseID)
	if err == nil {
		return balance, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}

	balance, err = inventory.NewInventoryBalance(itemID, warehouseID)
	if err != nil {
		return nil, false, err
	}

	// Use ON CONFLICT to handle two writers creating the same pair
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}, {Name: "warehouse_id"}},
			DoNothing: true,
		}).
		Create(balance)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 0 {
		existing, err := r.FindByItemAndWarehouse(ctx, itemID, warehouseID)
		return existing, false, err
	}
	return balance, true, nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormInventoryBalanceRepository) SaveWithLock(ctx context.Context, balance *inventory.InventoryBalance) error {
	result := r.db.WithContext(ctx).
		Model(&inventory.InventoryBalance{}).
		Where("id = ? AND version = ?", balance.ID, balance.Version-1).
		Updates(map[string]any{
			"quantity_available":        balance.QuantityAvailable,
			"quantity_reserved":         balance.QuantityReserved,
			"quantity_under_inspection": balance.QuantityUnderInspection,
			"quantity_rejected":         balance.QuantityRejected,
			"last_updated":              balance.LastUpdated,
			"version":                   balance.Version,
			"updated_at":                balance.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "Inventory balance was modified by another transaction")
	}
	return nil
}

// SumAvailableByItems totals quantity_available per item across warehouses
func (r *GormInventoryBalanceRepository) SumAvailableByItems(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ItemID uuid.UUID
		Total  decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&inventory.InventoryBalance{}).
		Select("item_id, COALESCE(SUM(quantity_available), 0) AS total").
		Where("item_id IN ?", itemIDs).
		Group("item_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ItemID] = row.Total
	}
	return out, nil
}

// Ensure GormInventoryBalanceRepository implements InventoryBalanceRepository
var _ inventory.InventoryBalanceRepository = (*GormInventoryBalanceRepository)(nil)
