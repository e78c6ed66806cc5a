package inventory

import (
	"fmt"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the type of inventory transaction
type TransactionType string

const (
	TransactionTypeReceipt       TransactionType = "receipt"
	TransactionTypeIssue         TransactionType = "issue"
	TransactionTypeAdjustment    TransactionType = "adjustment"
	TransactionTypeTransfer      TransactionType = "transfer"
	TransactionTypeReservation   TransactionType = "reservation"
	TransactionTypeUnreservation TransactionType = "unreservation"
)

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsValid returns true if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeReceipt,
		TransactionTypeIssue,
		TransactionTypeAdjustment,
		TransactionTypeTransfer,
		TransactionTypeReservation,
		TransactionTypeUnreservation:
		return true
	}
	return false
}

// IsStatusMove returns true for types that move quantity between two buckets
func (t TransactionType) IsStatusMove() bool {
	switch t {
	case TransactionTypeTransfer, TransactionTypeReservation, TransactionTypeUnreservation:
		return true
	}
	return false
}

// ReferenceType names the kind of document that caused a transaction
type ReferenceType string

const (
	ReferenceGoodsReceipt      ReferenceType = "goods_receipt"
	ReferenceGoodsIssue        ReferenceType = "goods_issue"
	ReferenceManualAdjustment  ReferenceType = "manual_adjustment"
	ReferenceStatusTransfer    ReferenceType = "status_transfer"
	ReferenceProductionOrder   ReferenceType = "production_order"
	ReferenceQualityInspection ReferenceType = "quality_inspection"
	ReferenceSalesOrder        ReferenceType = "sales_order"
	ReferencePurchaseOrder     ReferenceType = "purchase_order"
	ReferenceInitialBalance    ReferenceType = "initial_balance"
)

// IsValid returns true for the declared document kinds
func (r ReferenceType) IsValid() bool {
	switch r {
	case ReferenceGoodsReceipt, ReferenceGoodsIssue, ReferenceManualAdjustment,
		ReferenceStatusTransfer, ReferenceProductionOrder, ReferenceQualityInspection,
		ReferenceSalesOrder, ReferencePurchaseOrder, ReferenceInitialBalance:
		return true
	}
	return false
}

// Reference points at the source document of a transaction
type Reference struct {
	Type ReferenceType
	ID   string
}

// Validate checks that both parts of the reference are set
func (r Reference) Validate() error {
	if r.Type == "" || r.ID == "" {
		return shared.NewDomainError(shared.CodeValidation, "Reference type and ID are required")
	}
	if !r.Type.IsValid() {
		return shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("Unknown reference type %q", r.Type))
	}
	return nil
}

// InventoryTransaction is an immutable ledger entry. Exactly one is written
// for every balance mutation, in the same database transaction.
//
// Single-bucket movements carry a signed Quantity and name the bucket in
// StatusTo (increase) or StatusFrom (decrease). Status moves carry a positive
// Quantity with both StatusFrom and StatusTo set.
type InventoryTransaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TransactionDate time.Time       `gorm:"not null;index:idx_inv_tx_item_wh_date,priority:3"`
	TransactionType TransactionType `gorm:"type:varchar(20);not null;index:idx_inv_tx_type"`
	ItemID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_inv_tx_item_wh_date,priority:1"`
	WarehouseID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_inv_tx_item_wh_date,priority:2"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	StatusFrom      *Bucket         `gorm:"type:varchar(20)"`
	StatusTo        *Bucket         `gorm:"type:varchar(20)"`
	ReferenceType   ReferenceType   `gorm:"type:varchar(40);not null;index:idx_inv_tx_reference,priority:1"`
	ReferenceID     string          `gorm:"type:varchar(64);not null;index:idx_inv_tx_reference,priority:2"`
	Notes           string          `gorm:"type:varchar(500)"`
	Actor           string          `gorm:"type:varchar(100)"`
	CreatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InventoryTransaction) TableName() string {
	return "inventory_transactions"
}

// NewBucketMovement creates a transaction for a signed change to one bucket
func NewBucketMovement(
	txType TransactionType,
	itemID, warehouseID uuid.UUID,
	bucket Bucket,
	delta decimal.Decimal,
	ref Reference,
) (*InventoryTransaction, error) {
	if !txType.IsValid() || txType.IsStatusMove() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Invalid transaction type for a bucket movement")
	}
	if !bucket.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Invalid bucket")
	}
	if delta.IsZero() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Quantity delta cannot be zero")
	}
	tx, err := newTransaction(txType, itemID, warehouseID, delta, ref)
	if err != nil {
		return nil, err
	}
	b := bucket
	if delta.IsPositive() {
		tx.StatusTo = &b
	} else {
		tx.StatusFrom = &b
	}
	return tx, nil
}

// NewStatusMove creates a transaction moving quantity between two buckets
func NewStatusMove(
	txType TransactionType,
	itemID, warehouseID uuid.UUID,
	from, to Bucket,
	quantity decimal.Decimal,
	ref Reference,
) (*InventoryTransaction, error) {
	if !txType.IsStatusMove() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Invalid transaction type for a status move")
	}
	if !from.IsValid() || !to.IsValid() || from == to {
		return nil, shared.NewDomainError(shared.CodeValidation, "Status move needs two different valid buckets")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Transfer quantity must be positive")
	}
	tx, err := newTransaction(txType, itemID, warehouseID, quantity, ref)
	if err != nil {
		return nil, err
	}
	f, t := from, to
	tx.StatusFrom = &f
	tx.StatusTo = &t
	return tx, nil
}

func newTransaction(txType TransactionType, itemID, warehouseID uuid.UUID, qty decimal.Decimal, ref Reference) (*InventoryTransaction, error) {
	if itemID == uuid.Nil || warehouseID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Item ID and warehouse ID are required")
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	return &InventoryTransaction{
		ID:              uuid.New(),
		TransactionDate: now,
		TransactionType: txType,
		ItemID:          itemID,
		WarehouseID:     warehouseID,
		Quantity:        qty,
		ReferenceType:   ref.Type,
		ReferenceID:     ref.ID,
		CreatedAt:       now,
	}, nil
}

// WithNotes sets free-text notes
func (t *InventoryTransaction) WithNotes(notes string) *InventoryTransaction {
	t.Notes = notes
	return t
}

// WithActor sets who performed the operation
func (t *InventoryTransaction) WithActor(actor string) *InventoryTransaction {
	t.Actor = actor
	return t
}

// WithTransactionDate sets the business date of the transaction
func (t *InventoryTransaction) WithTransactionDate(date time.Time) *InventoryTransaction {
	if !date.IsZero() {
		t.TransactionDate = date
	}
	return t
}

// BucketEffect is the signed change one transaction made to one bucket
type BucketEffect struct {
	Bucket Bucket          `json:"bucket"`
	Delta  decimal.Decimal `json:"delta"`
}

// Effects returns the per-bucket deltas this transaction applied
func (t *InventoryTransaction) Effects() []BucketEffect {
	switch {
	case t.StatusFrom != nil && t.StatusTo != nil:
		return []BucketEffect{
			{Bucket: *t.StatusFrom, Delta: t.Quantity.Neg()},
			{Bucket: *t.StatusTo, Delta: t.Quantity},
		}
	case t.StatusTo != nil:
		return []BucketEffect{{Bucket: *t.StatusTo, Delta: t.Quantity}}
	case t.StatusFrom != nil:
		return []BucketEffect{{Bucket: *t.StatusFrom, Delta: t.Quantity}}
	}
	return nil
}
