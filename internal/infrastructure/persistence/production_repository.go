package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/manufacturing/internal/domain/production"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProductionOrderRepository implements ProductionOrderRepository using GORM
type GormProductionOrderRepository struct {
	db *gorm.DB
}

// NewGormProductionOrderRepository creates a new GormProductionOrderRepository
func NewGormProductionOrderRepository(db *gorm.DB) *GormProductionOrderRepository {
	return &GormProductionOrderRepository{db: db}
}

// FindOpenDueBy returns open orders due on or before dueBy
func (r *GormProductionOrderRepository) FindOpenDueBy(ctx context.Context, dueBy time.Time) ([]production.ProductionOrder, error) {
	var orders []production.ProductionOrder
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND required_date <= ?", production.OpenOrderStatuses(), dueBy).
		Order("required_date ASC, id ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// FindByID finds a production order by its ID
func (r *GormProductionOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*production.ProductionOrder, error) {
	var order production.ProductionOrder
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// Save creates or updates a production order
func (r *GormProductionOrderRepository) Save(ctx context.Context, order *production.ProductionOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

// GormBOMRepository implements BOMRepository using GORM
type GormBOMRepository struct {
	db *gorm.DB
}

// NewGormBOMRepository creates a new GormBOMRepository
func NewGormBOMRepository(db *gorm.DB) *GormBOMRepository {
	return &GormBOMRepository{db: db}
}

// FindActiveByItem returns the active BOM of an item with its lines
func (r *GormBOMRepository) FindActiveByItem(ctx context.Context, itemID uuid.UUID) (*production.BillOfMaterials, error) {
	var bom production.BillOfMaterials
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("item_id = ? AND is_active = ?", itemID, true).
		First(&bom).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &bom, nil
}

// FindActiveByItems loads the active BOMs of several items in two queries
func (r *GormBOMRepository) FindActiveByItems(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]*production.BillOfMaterials, error) {
	out := make(map[uuid.UUID]*production.BillOfMaterials, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	var boms []production.BillOfMaterials
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("item_id IN ? AND is_active = ?", itemIDs, true).
		Find(&boms).Error; err != nil {
		return nil, err
	}
	for i := range boms {
		out[boms[i].ItemID] = &boms[i]
	}
	return out, nil
}

// Save writes a BOM and its lines
func (r *GormBOMRepository) Save(ctx context.Context, bom *production.BillOfMaterials) error {
	return r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(bom).Error
}

// Ensure repositories implement their interfaces
var (
	_ production.ProductionOrderRepository = (*GormProductionOrderRepository)(nil)
	_ production.BOMRepository             = (*GormBOMRepository)(nil)
)
