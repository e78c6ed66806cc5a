package inventory

import (
	"context"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryBalanceRepository persists balances. Writes are only legal inside
// a transaction that also appends to the InventoryTransactionRepository.
type InventoryBalanceRepository interface {
	// FindByItemAndWarehouse reads without locking
	FindByItemAndWarehouse(ctx context.Context, itemID, warehouseID uuid.UUID) (*InventoryBalance, error)

	// FindByItemAndWarehouseForUpdate reads and row-locks the balance until
	// the enclosing transaction ends
	FindByItemAndWarehouseForUpdate(ctx context.Context, itemID, warehouseID uuid.UUID) (*InventoryBalance, error)

	// GetOrCreate inserts an empty balance if none exists. created reports
	// whether this call inserted the row.
	GetOrCreate(ctx context.Context, itemID, warehouseID uuid.UUID) (balance *InventoryBalance, created bool, err error)

	// SaveWithLock writes bucket values if the stored version still matches
	// the version the balance was read at
	SaveWithLock(ctx context.Context, balance *InventoryBalance) error

	// SumAvailableByItems totals quantity_available across warehouses
	SumAvailableByItems(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}

// TransactionFilter narrows a transaction log query
type TransactionFilter struct {
	shared.Filter
	ItemID          *uuid.UUID
	WarehouseID     *uuid.UUID
	TransactionType TransactionType
	ReferenceType   ReferenceType
	ReferenceID     string
	From            *time.Time
	To              *time.Time
}

// InventoryTransactionRepository is append-only: there is no update or delete.
type InventoryTransactionRepository interface {
	Create(ctx context.Context, tx *InventoryTransaction) error
	CreateBatch(ctx context.Context, txs []*InventoryTransaction) error

	// FindByItemAndWarehouse returns the full log of a pair in the order it was written
	FindByItemAndWarehouse(ctx context.Context, itemID, warehouseID uuid.UUID) ([]InventoryTransaction, error)

	FindAll(ctx context.Context, filter TransactionFilter) ([]InventoryTransaction, int64, error)
}
