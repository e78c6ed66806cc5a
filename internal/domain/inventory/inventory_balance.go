package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryBalance is the current stock of one item in one warehouse, split
// into four buckets. It is a denormalized view of the transaction log and is
// changed only together with a log append.
type InventoryBalance struct {
	shared.BaseAggregateRoot
	ItemID                  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_balance_item_warehouse,priority:1"`
	WarehouseID             uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_balance_item_warehouse,priority:2"`
	QuantityAvailable       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QuantityReserved        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QuantityUnderInspection decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QuantityRejected        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LastUpdated             time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InventoryBalance) TableName() string {
	return "inventory_balances"
}

// NewInventoryBalance creates an empty balance for an item/warehouse pair
func NewInventoryBalance(itemID, warehouseID uuid.UUID) (*InventoryBalance, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Item ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Warehouse ID cannot be empty")
	}
	b := &InventoryBalance{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ItemID:            itemID,
		WarehouseID:       warehouseID,
	}
	b.setQuantities(ZeroQuantities())
	b.LastUpdated = b.CreatedAt
	return b, nil
}

// Quantities returns the four buckets as a value
func (b *InventoryBalance) Quantities() BucketQuantities {
	return BucketQuantities{
		Available:       b.QuantityAvailable,
		Reserved:        b.QuantityReserved,
		UnderInspection: b.QuantityUnderInspection,
		Rejected:        b.QuantityRejected,
	}
}

func (b *InventoryBalance) setQuantities(q BucketQuantities) {
	b.QuantityAvailable = q.Available
	b.QuantityReserved = q.Reserved
	b.QuantityUnderInspection = q.UnderInspection
	b.QuantityRejected = q.Rejected
}

// Quantity returns the quantity held in one bucket
func (b *InventoryBalance) Quantity(bucket Bucket) decimal.Decimal {
	return b.Quantities().Get(bucket)
}

// TotalQuantity returns the sum of the four buckets
func (b *InventoryBalance) TotalQuantity() decimal.Decimal {
	return b.Quantities().Total()
}

// Snapshot returns a read-only copy of the balance
func (b *InventoryBalance) Snapshot() BalanceSnapshot {
	return BalanceSnapshot{
		ItemID:      b.ItemID,
		WarehouseID: b.WarehouseID,
		Quantities:  b.Quantities(),
		Total:       b.TotalQuantity(),
		LastUpdated: b.LastUpdated,
		Exists:      true,
	}
}

// CheckIntegrity reports a negative bucket as an integrity violation. Stored
// balances never go negative through this type, so a hit means the row was
// changed outside the ledger.
func (b *InventoryBalance) CheckIntegrity() error {
	neg := b.Quantities().NegativeBuckets()
	if len(neg) == 0 {
		return nil
	}
	names := make([]string, len(neg))
	for i, bucket := range neg {
		names[i] = fmt.Sprintf("%s=%s", bucket, b.Quantity(bucket))
	}
	return shared.NewDomainError(shared.CodeIntegrityViolation,
		fmt.Sprintf("negative bucket on item %s warehouse %s: %s", b.ItemID, b.WarehouseID, strings.Join(names, ", ")))
}

// Adjust changes one bucket by a signed delta.
func (b *InventoryBalance) Adjust(bucket Bucket, delta decimal.Decimal) error {
	if !bucket.IsValid() {
		return shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("unknown bucket %q", bucket))
	}
	if delta.IsZero() {
		return shared.NewDomainError(shared.CodeValidation, "Quantity delta cannot be zero")
	}
	if err := ValidateQuantity("Quantity delta", delta); err != nil {
		return err
	}
	before := b.Quantities()
	after := before.Add(bucket, delta)
	if after.Get(bucket).IsNegative() {
		return insufficientStock(bucket, before.Get(bucket), delta.Neg())
	}
	if err := ValidateQuantity("Bucket "+bucket.String(), after.Get(bucket)); err != nil {
		return err
	}
	b.apply(before, after)
	return nil
}

// Transfer moves a positive quantity from one bucket to another.
func (b *InventoryBalance) Transfer(from, to Bucket, quantity decimal.Decimal) error {
	if !from.IsValid() || !to.IsValid() {
		return shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("unknown bucket in transfer %q -> %q", from, to))
	}
	if from == to {
		return shared.NewDomainError(shared.CodeValidation, "Source and target bucket must differ")
	}
	if !quantity.IsPositive() {
		return shared.NewDomainError(shared.CodeValidation, "Transfer quantity must be positive")
	}
	if err := ValidateQuantity("Transfer quantity", quantity); err != nil {
		return err
	}
	before := b.Quantities()
	if before.Get(from).LessThan(quantity) {
		return insufficientStock(from, before.Get(from), quantity)
	}
	after := before.Add(from, quantity.Neg()).Add(to, quantity)
	if err := ValidateQuantity("Bucket "+to.String(), after.Get(to)); err != nil {
		return err
	}
	b.apply(before, after)
	return nil
}

func (b *InventoryBalance) apply(before, after BucketQuantities) {
	b.setQuantities(after)
	b.LastUpdated = time.Now()
	b.UpdatedAt = b.LastUpdated
	b.IncrementVersion()
	b.AddDomainEvent(NewBalanceChangedEvent(b, before, after))
}

func insufficientStock(bucket Bucket, held, needed decimal.Decimal) error {
	return shared.NewDomainError(shared.CodeInsufficientStock,
		fmt.Sprintf("Insufficient stock in bucket %s: holds %s, needs %s", bucket, held.String(), needed.String()))
}

// BalanceSnapshot is a point-in-time read of a balance. Exists is false when
// no balance row has been created for the pair yet.
type BalanceSnapshot struct {
	ItemID      uuid.UUID        `json:"item_id"`
	WarehouseID uuid.UUID        `json:"warehouse_id"`
	Quantities  BucketQuantities `json:"quantities"`
	Total       decimal.Decimal  `json:"total"`
	LastUpdated time.Time        `json:"last_updated"`
	Exists      bool             `json:"exists"`
}

// EmptySnapshot returns the all-zero snapshot for a pair with no balance row.
func EmptySnapshot(itemID, warehouseID uuid.UUID) BalanceSnapshot {
	return BalanceSnapshot{
		ItemID:      itemID,
		WarehouseID: warehouseID,
		Quantities:  ZeroQuantities(),
		Total:       decimal.Zero,
	}
}
