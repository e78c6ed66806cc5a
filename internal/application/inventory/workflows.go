package inventory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/erp/manufacturing/internal/domain/inventory"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func commandValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// validateCommand runs struct tag validation and folds the failures into one
// VALIDATION error.
func validateCommand(cmd any) error {
	err := commandValidator().Struct(cmd)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return shared.NewDomainError(shared.CodeValidation, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return shared.NewDomainError(shared.CodeValidation, strings.Join(msgs, "; "))
}

func requirePositive(field string, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return shared.NewDomainError(shared.CodeValidation, field+" must be positive")
	}
	return inventory.ValidateQuantity(field, qty)
}

// CommandHeader is carried by every ledger workflow command
type CommandHeader struct {
	ItemID          uuid.UUID               `validate:"required"`
	WarehouseID     uuid.UUID               `validate:"required"`
	ReferenceType   inventory.ReferenceType `validate:"omitempty,oneof=goods_receipt goods_issue manual_adjustment status_transfer production_order quality_inspection sales_order purchase_order initial_balance"`
	ReferenceID     string                  `validate:"required,max=64"`
	Actor           string                  `validate:"required,max=100"`
	Notes           string                  `validate:"max=500"`
	TransactionDate time.Time
}

func (h CommandHeader) input(txType inventory.TransactionType, defaultRef inventory.ReferenceType) TransactionInput {
	refType := h.ReferenceType
	if refType == "" {
		refType = defaultRef
	}
	return TransactionInput{
		Type:            txType,
		Reference:       inventory.Reference{Type: refType, ID: h.ReferenceID},
		Notes:           h.Notes,
		Actor:           h.Actor,
		TransactionDate: h.TransactionDate,
	}
}

// ReceiveGoodsCommand books incoming stock. Receipts that need quality
// inspection land in under_inspection instead of available.
type ReceiveGoodsCommand struct {
	CommandHeader
	Quantity          decimal.Decimal
	RequireInspection bool
}

// IssueGoodsCommand removes available stock
type IssueGoodsCommand struct {
	CommandHeader
	Quantity decimal.Decimal
}

// AdjustStockCommand corrects one bucket by a signed delta
type AdjustStockCommand struct {
	CommandHeader
	Bucket inventory.Bucket
	Delta  decimal.Decimal
	Reason string `validate:"required,max=500"`
}

// TransferStatusCommand moves stock between buckets
type TransferStatusCommand struct {
	CommandHeader
	From     inventory.Bucket `validate:"required"`
	To       inventory.Bucket `validate:"required"`
	Quantity decimal.Decimal
}

// RecordProductionOutputCommand books finished goods from a production order.
// Output always waits for inspection.
type RecordProductionOutputCommand struct {
	CommandHeader
	ProductionOrderID uuid.UUID `validate:"required"`
	Quantity          decimal.Decimal
}

// ReserveStockCommand earmarks available stock for a demand
type ReserveStockCommand struct {
	CommandHeader
	Quantity decimal.Decimal
}

// Workflows exposes the business operations that move stock. Each one is a
// thin rule layer over a single LedgerService mutation.
type Workflows struct {
	ledger *LedgerService
}

// NewWorkflows creates a new Workflows
func NewWorkflows(ledger *LedgerService) *Workflows {
	return &Workflows{ledger: ledger}
}

// ReceiveGoods adds quantity to available, or to under_inspection when the
// receipt needs inspection, and logs a receipt.
func (w *Workflows) ReceiveGoods(ctx context.Context, cmd ReceiveGoodsCommand) (*MutationResult, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	if err := requirePositive("Quantity", cmd.Quantity); err != nil {
		return nil, err
	}
	bucket := inventory.BucketAvailable
	if cmd.RequireInspection {
		bucket = inventory.BucketUnderInspection
	}
	in := cmd.input(inventory.TransactionTypeReceipt, inventory.ReferenceGoodsReceipt)
	return w.ledger.AdjustQuantity(ctx, cmd.ItemID, cmd.WarehouseID, bucket, cmd.Quantity, in)
}

// IssueGoods removes quantity from available and logs an issue.
func (w *Workflows) IssueGoods(ctx context.Context, cmd IssueGoodsCommand) (*MutationResult, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	if err := requirePositive("Quantity", cmd.Quantity); err != nil {
		return nil, err
	}
	in := cmd.input(inventory.TransactionTypeIssue, inventory.ReferenceGoodsIssue)
	return w.ledger.AdjustQuantity(ctx, cmd.ItemID, cmd.WarehouseID, inventory.BucketAvailable, cmd.Quantity.Neg(), in)
}

// AdjustStock applies a signed correction to a bucket, available when none is
// given. The reason is stored in the log notes.
func (w *Workflows) AdjustStock(ctx context.Context, cmd AdjustStockCommand) (*MutationResult, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	if cmd.Delta.IsZero() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Delta cannot be zero")
	}
	if err := inventory.ValidateQuantity("Delta", cmd.Delta); err != nil {
		return nil, err
	}
	bucket := cmd.Bucket
	if bucket == "" {
		bucket = inventory.BucketAvailable
	}
	in := cmd.input(inventory.TransactionTypeAdjustment, inventory.ReferenceManualAdjustment)
	in.Notes = joinNotes(cmd.Reason, cmd.Notes)
	return w.ledger.AdjustQuantity(ctx, cmd.ItemID, cmd.WarehouseID, bucket, cmd.Delta, in)
}

// TransferStatus moves quantity between two buckets and logs a transfer.
func (w *Workflows) TransferStatus(ctx context.Context, cmd TransferStatusCommand) (*MutationResult, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	if _, err := inventory.ParseBucket(cmd.From.String()); err != nil {
		return nil, err
	}
	if _, err := inventory.ParseBucket(cmd.To.String()); err != nil {
		return nil, err
	}
	if cmd.From == cmd.To {
		return nil, shared.NewDomainError(shared.CodeValidation, "Source and target bucket must differ")
	}
	if err := requirePositive("Quantity", cmd.Quantity); err != nil {
		return nil, err
	}
	in := cmd.input(inventory.TransactionTypeTransfer, inventory.ReferenceStatusTransfer)
	return w.ledger.TransferStatus(ctx, cmd.ItemID, cmd.WarehouseID, cmd.From, cmd.To, cmd.Quantity, in)
}

// RecordProductionOutput books finished goods into under_inspection with the
// production order as reference.
func (w *Workflows) RecordProductionOutput(ctx context.Context, cmd RecordProductionOutputCommand) (*MutationResult, error) {
	if cmd.ReferenceID == "" && cmd.ProductionOrderID != uuid.Nil {
		cmd.ReferenceID = cmd.ProductionOrderID.String()
	}
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	if err := requirePositive("Quantity", cmd.Quantity); err != nil {
		return nil, err
	}
	in := cmd.input(inventory.TransactionTypeReceipt, inventory.ReferenceProductionOrder)
	in.Reference = inventory.Reference{Type: inventory.ReferenceProductionOrder, ID: cmd.ProductionOrderID.String()}
	return w.ledger.AdjustQuantity(ctx, cmd.ItemID, cmd.WarehouseID, inventory.BucketUnderInspection, cmd.Quantity, in)
}

// ReserveStock moves quantity from available to reserved.
func (w *Workflows) ReserveStock(ctx context.Context, cmd ReserveStockCommand) (*MutationResult, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	if err := requirePositive("Quantity", cmd.Quantity); err != nil {
		return nil, err
	}
	in := cmd.input(inventory.TransactionTypeReservation, inventory.ReferenceSalesOrder)
	return w.ledger.TransferStatus(ctx, cmd.ItemID, cmd.WarehouseID,
		inventory.BucketAvailable, inventory.BucketReserved, cmd.Quantity, in)
}

// UnreserveStock returns reserved quantity to available.
func (w *Workflows) UnreserveStock(ctx context.Context, cmd ReserveStockCommand) (*MutationResult, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	if err := requirePositive("Quantity", cmd.Quantity); err != nil {
		return nil, err
	}
	in := cmd.input(inventory.TransactionTypeUnreservation, inventory.ReferenceSalesOrder)
	return w.ledger.TransferStatus(ctx, cmd.ItemID, cmd.WarehouseID,
		inventory.BucketReserved, inventory.BucketAvailable, cmd.Quantity, in)
}

// maxNotesLength matches the width of inventory_transactions.notes
const maxNotesLength = 500

func joinNotes(reason, notes string) string {
	joined := reason
	if notes != "" {
		joined = reason + ": " + notes
	}
	if r := []rune(joined); len(r) > maxNotesLength {
		return string(r[:maxNotesLength])
	}
	return joined
}
