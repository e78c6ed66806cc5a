package production

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProductionOrderRepository reads production orders
type ProductionOrderRepository interface {
	// FindOpenDueBy returns open orders with a required date on or before
	// dueBy, sorted by required date then id
	FindOpenDueBy(ctx context.Context, dueBy time.Time) ([]ProductionOrder, error)
	FindByID(ctx context.Context, id uuid.UUID) (*ProductionOrder, error)
	Save(ctx context.Context, order *ProductionOrder) error
}

// BOMRepository reads bills of materials
type BOMRepository interface {
	// FindActiveByItem returns the active BOM with its lines, or
	// shared.ErrNotFound when the item has none
	FindActiveByItem(ctx context.Context, itemID uuid.UUID) (*BillOfMaterials, error)

	// FindActiveByItems batches FindActiveByItem; items without an active
	// BOM are absent from the result
	FindActiveByItems(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]*BillOfMaterials, error)

	Save(ctx context.Context, bom *BillOfMaterials) error
}
