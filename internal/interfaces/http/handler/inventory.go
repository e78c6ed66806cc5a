package handler

import (
	"context"
	"time"

	inventoryapp "github.com/erp/manufacturing/internal/application/inventory"
	"github.com/erp/manufacturing/internal/domain/inventory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerQueries reads balances and the transaction log
type LedgerQueries interface {
	GetBalance(ctx context.Context, itemID, warehouseID uuid.UUID) (inventory.BalanceSnapshot, error)
	Reconcile(ctx context.Context, itemID, warehouseID uuid.UUID) (*inventory.ReconciliationReport, error)
	ListTransactions(ctx context.Context, filter inventory.TransactionFilter) ([]inventory.InventoryTransaction, int64, error)
}

// StockWorkflows are the business operations that move stock
type StockWorkflows interface {
	ReceiveGoods(ctx context.Context, cmd inventoryapp.ReceiveGoodsCommand) (*inventoryapp.MutationResult, error)
	IssueGoods(ctx context.Context, cmd inventoryapp.IssueGoodsCommand) (*inventoryapp.MutationResult, error)
	AdjustStock(ctx context.Context, cmd inventoryapp.AdjustStockCommand) (*inventoryapp.MutationResult, error)
	TransferStatus(ctx context.Context, cmd inventoryapp.TransferStatusCommand) (*inventoryapp.MutationResult, error)
	RecordProductionOutput(ctx context.Context, cmd inventoryapp.RecordProductionOutputCommand) (*inventoryapp.MutationResult, error)
	ReserveStock(ctx context.Context, cmd inventoryapp.ReserveStockCommand) (*inventoryapp.MutationResult, error)
	UnreserveStock(ctx context.Context, cmd inventoryapp.ReserveStockCommand) (*inventoryapp.MutationResult, error)
}

// InventoryHandler serves the ledger endpoints
type InventoryHandler struct {
	BaseHandler
	ledger    LedgerQueries
	workflows StockWorkflows
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(ledger LedgerQueries, workflows StockWorkflows) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, workflows: workflows}
}

// RegisterRoutes mounts the ledger routes under /inventory
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	inv := rg.Group("/inventory")
	inv.GET("/balances/:itemId/:warehouseId", h.GetBalance)
	inv.GET("/balances/:itemId/:warehouseId/reconcile", h.Reconcile)
	inv.GET("/transactions", h.ListTransactions)
	inv.POST("/receipts", h.ReceiveGoods)
	inv.POST("/issues", h.IssueGoods)
	inv.POST("/adjustments", h.AdjustStock)
	inv.POST("/transfers", h.TransferStatus)
	inv.POST("/production-output", h.RecordProductionOutput)
	inv.POST("/reservations", h.ReserveStock)
	inv.POST("/unreservations", h.UnreserveStock)
}

// StockRequestHeader is the part shared by every stock movement request
type StockRequestHeader struct {
	ItemID          string     `json:"item_id" binding:"required,uuid"`
	WarehouseID     string     `json:"warehouse_id" binding:"required,uuid"`
	ReferenceType   string     `json:"reference_type" binding:"max=40"`
	ReferenceID     string     `json:"reference_id" binding:"max=64"`
	Actor           string     `json:"actor" binding:"required,max=100"`
	Notes           string     `json:"notes" binding:"max=500"`
	TransactionDate *time.Time `json:"transaction_date"`
}

func (r StockRequestHeader) command() inventoryapp.CommandHeader {
	// ids were validated by binding
	h := inventoryapp.CommandHeader{
		ItemID:        uuid.MustParse(r.ItemID),
		WarehouseID:   uuid.MustParse(r.WarehouseID),
		ReferenceType: inventory.ReferenceType(r.ReferenceType),
		ReferenceID:   r.ReferenceID,
		Actor:         r.Actor,
		Notes:         r.Notes,
	}
	if r.TransactionDate != nil {
		h.TransactionDate = *r.TransactionDate
	}
	return h
}

// ReceiveGoodsRequest is the body of POST /inventory/receipts
type ReceiveGoodsRequest struct {
	StockRequestHeader
	Quantity          decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	RequireInspection bool            `json:"require_inspection"`
}

// QuantityRequest is the body of issues, reservations and unreservations
type QuantityRequest struct {
	StockRequestHeader
	Quantity decimal.Decimal `json:"quantity" binding:"required,gt=0"`
}

// AdjustStockRequest is the body of POST /inventory/adjustments
type AdjustStockRequest struct {
	StockRequestHeader
	Bucket string          `json:"bucket" binding:"omitempty,oneof=available reserved under_inspection rejected"`
	Delta  decimal.Decimal `json:"delta" binding:"required"`
	Reason string          `json:"reason" binding:"required,max=500"`
}

// TransferStatusRequest is the body of POST /inventory/transfers
type TransferStatusRequest struct {
	StockRequestHeader
	From     string          `json:"from" binding:"required,oneof=available reserved under_inspection rejected"`
	To       string          `json:"to" binding:"required,oneof=available reserved under_inspection rejected"`
	Quantity decimal.Decimal `json:"quantity" binding:"required,gt=0"`
}

// ProductionOutputRequest is the body of POST /inventory/production-output
type ProductionOutputRequest struct {
	StockRequestHeader
	ProductionOrderID string          `json:"production_order_id" binding:"required,uuid"`
	Quantity          decimal.Decimal `json:"quantity" binding:"required,gt=0"`
}

// GetBalance returns the four buckets of one item in one warehouse. A pair
// with no balance row reads as all zero.
func (h *InventoryHandler) GetBalance(c *gin.Context) {
	itemID, ok := h.uuidParam(c, "itemId")
	if !ok {
		return
	}
	warehouseID, ok := h.uuidParam(c, "warehouseId")
	if !ok {
		return
	}
	snapshot, err := h.ledger.GetBalance(c.Request.Context(), itemID, warehouseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snapshot)
}

// Reconcile replays the log of one pair and reports per-bucket drift
func (h *InventoryHandler) Reconcile(c *gin.Context) {
	itemID, ok := h.uuidParam(c, "itemId")
	if !ok {
		return
	}
	warehouseID, ok := h.uuidParam(c, "warehouseId")
	if !ok {
		return
	}
	report, err := h.ledger.Reconcile(c.Request.Context(), itemID, warehouseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// ListTransactions pages through the transaction log
func (h *InventoryHandler) ListTransactions(c *gin.Context) {
	var query inventoryapp.TransactionListFilter
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}
	filter, err := query.ToDomainFilter()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	txs, total, err := h.ledger.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, inventoryapp.ToTransactionResponses(txs), total, filter.Page, filter.PageSize)
}

// ReceiveGoods books a receipt into available or under_inspection
func (h *InventoryHandler) ReceiveGoods(c *gin.Context) {
	var req ReceiveGoodsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	h.respond(c)(h.workflows.ReceiveGoods(c.Request.Context(), inventoryapp.ReceiveGoodsCommand{
		CommandHeader:     req.command(),
		Quantity:          req.Quantity,
		RequireInspection: req.RequireInspection,
	}))
}

// IssueGoods removes available stock
func (h *InventoryHandler) IssueGoods(c *gin.Context) {
	var req QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	h.respond(c)(h.workflows.IssueGoods(c.Request.Context(), inventoryapp.IssueGoodsCommand{
		CommandHeader: req.command(),
		Quantity:      req.Quantity,
	}))
}

// AdjustStock applies a signed correction to one bucket
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	h.respond(c)(h.workflows.AdjustStock(c.Request.Context(), inventoryapp.AdjustStockCommand{
		CommandHeader: req.command(),
		Bucket:        inventory.Bucket(req.Bucket),
		Delta:         req.Delta,
		Reason:        req.Reason,
	}))
}

// TransferStatus moves stock between two buckets
func (h *InventoryHandler) TransferStatus(c *gin.Context) {
	var req TransferStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	h.respond(c)(h.workflows.TransferStatus(c.Request.Context(), inventoryapp.TransferStatusCommand{
		CommandHeader: req.command(),
		From:          inventory.Bucket(req.From),
		To:            inventory.Bucket(req.To),
		Quantity:      req.Quantity,
	}))
}

// RecordProductionOutput books finished goods into under_inspection
func (h *InventoryHandler) RecordProductionOutput(c *gin.Context) {
	var req ProductionOutputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	h.respond(c)(h.workflows.RecordProductionOutput(c.Request.Context(), inventoryapp.RecordProductionOutputCommand{
		CommandHeader:     req.command(),
		ProductionOrderID: uuid.MustParse(req.ProductionOrderID),
		Quantity:          req.Quantity,
	}))
}

// ReserveStock moves available stock to reserved
func (h *InventoryHandler) ReserveStock(c *gin.Context) {
	var req QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	h.respond(c)(h.workflows.ReserveStock(c.Request.Context(), inventoryapp.ReserveStockCommand{
		CommandHeader: req.command(),
		Quantity:      req.Quantity,
	}))
}

// UnreserveStock returns reserved stock to available
func (h *InventoryHandler) UnreserveStock(c *gin.Context) {
	var req QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	h.respond(c)(h.workflows.UnreserveStock(c.Request.Context(), inventoryapp.ReserveStockCommand{
		CommandHeader: req.command(),
		Quantity:      req.Quantity,
	}))
}

// respond writes a workflow result as 201 with the new balance and log entry
func (h *InventoryHandler) respond(c *gin.Context) func(*inventoryapp.MutationResult, error) {
	return func(result *inventoryapp.MutationResult, err error) {
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Created(c, inventoryapp.ToMutationResponse(result))
	}
}
