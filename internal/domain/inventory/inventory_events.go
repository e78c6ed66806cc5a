package inventory

import (
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeInventoryBalance is the aggregate type name used in events
const AggregateTypeInventoryBalance = "InventoryBalance"

// EventTypeBalanceChanged is raised after any bucket changes
const EventTypeBalanceChanged = "InventoryBalanceChanged"

// BalanceChangedEvent carries the bucket values before and after a mutation
type BalanceChangedEvent struct {
	shared.BaseDomainEvent
	ItemID      uuid.UUID        `json:"item_id"`
	WarehouseID uuid.UUID        `json:"warehouse_id"`
	Before      BucketQuantities `json:"before"`
	After       BucketQuantities `json:"after"`
}

// NewBalanceChangedEvent creates a new BalanceChangedEvent
func NewBalanceChangedEvent(b *InventoryBalance, before, after BucketQuantities) *BalanceChangedEvent {
	return &BalanceChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBalanceChanged, AggregateTypeInventoryBalance, b.ID),
		ItemID:          b.ItemID,
		WarehouseID:     b.WarehouseID,
		Before:          before,
		After:           after,
	}
}

// Changes returns the non-zero per-bucket differences
func (e *BalanceChangedEvent) Changes() []BucketEffect {
	var out []BucketEffect
	for _, b := range AllBuckets() {
		d := e.After.Get(b).Sub(e.Before.Get(b))
		if !d.IsZero() {
			out = append(out, BucketEffect{Bucket: b, Delta: d})
		}
	}
	return out
}
