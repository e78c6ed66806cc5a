package inventory

import (
	"time"

	"github.com/erp/manufacturing/internal/domain/inventory"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionResponse represents a ledger entry in API responses
type TransactionResponse struct {
	ID              uuid.UUID       `json:"id"`
	TransactionDate time.Time       `json:"transaction_date"`
	TransactionType string          `json:"transaction_type"`
	ItemID          uuid.UUID       `json:"item_id"`
	WarehouseID     uuid.UUID       `json:"warehouse_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	StatusFrom      string          `json:"status_from,omitempty"`
	StatusTo        string          `json:"status_to,omitempty"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceID     string          `json:"reference_id"`
	Notes           string          `json:"notes,omitempty"`
	Actor           string          `json:"actor,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ToTransactionResponse converts a domain InventoryTransaction to a response
func ToTransactionResponse(tx *inventory.InventoryTransaction) TransactionResponse {
	resp := TransactionResponse{
		ID:              tx.ID,
		TransactionDate: tx.TransactionDate,
		TransactionType: tx.TransactionType.String(),
		ItemID:          tx.ItemID,
		WarehouseID:     tx.WarehouseID,
		Quantity:        tx.Quantity,
		ReferenceType:   string(tx.ReferenceType),
		ReferenceID:     tx.ReferenceID,
		Notes:           tx.Notes,
		Actor:           tx.Actor,
		CreatedAt:       tx.CreatedAt,
	}
	if tx.StatusFrom != nil {
		resp.StatusFrom = tx.StatusFrom.String()
	}
	if tx.StatusTo != nil {
		resp.StatusTo = tx.StatusTo.String()
	}
	return resp
}

// ToTransactionResponses converts a slice of transactions
func ToTransactionResponses(txs []inventory.InventoryTransaction) []TransactionResponse {
	out := make([]TransactionResponse, len(txs))
	for i := range txs {
		out[i] = ToTransactionResponse(&txs[i])
	}
	return out
}

// MutationResponse is returned by every ledger workflow
type MutationResponse struct {
	Balance     inventory.BalanceSnapshot `json:"balance"`
	Transaction TransactionResponse       `json:"transaction"`
}

// ToMutationResponse converts a MutationResult to a response
func ToMutationResponse(r *MutationResult) MutationResponse {
	return MutationResponse{
		Balance:     r.Balance,
		Transaction: ToTransactionResponse(r.Transaction),
	}
}

// TransactionListFilter represents filter options for the transaction log
type TransactionListFilter struct {
	ItemID          string     `form:"item_id" binding:"omitempty,uuid"`
	WarehouseID     string     `form:"warehouse_id" binding:"omitempty,uuid"`
	TransactionType string     `form:"transaction_type" binding:"omitempty,oneof=receipt issue adjustment transfer reservation unreservation"`
	ReferenceType   string     `form:"reference_type"`
	ReferenceID     string     `form:"reference_id"`
	From            *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To              *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page            int        `form:"page" binding:"omitempty,min=1"`
	PageSize        int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ToDomainFilter converts the request filter to a repository filter
func (f TransactionListFilter) ToDomainFilter() (inventory.TransactionFilter, error) {
	itemID, err := optionalUUID("item_id", f.ItemID)
	if err != nil {
		return inventory.TransactionFilter{}, err
	}
	warehouseID, err := optionalUUID("warehouse_id", f.WarehouseID)
	if err != nil {
		return inventory.TransactionFilter{}, err
	}

	base := shared.DefaultFilter()
	base.OrderBy = "transaction_date"
	if f.Page > 0 {
		base.Page = f.Page
	}
	if f.PageSize > 0 {
		base.PageSize = f.PageSize
	}
	return inventory.TransactionFilter{
		Filter:          base,
		ItemID:          itemID,
		WarehouseID:     warehouseID,
		TransactionType: inventory.TransactionType(f.TransactionType),
		ReferenceType:   inventory.ReferenceType(f.ReferenceType),
		ReferenceID:     f.ReferenceID,
		From:            f.From,
		To:              f.To,
	}, nil
}

func optionalUUID(field, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, shared.NewDomainError(shared.CodeValidation, field+" is not a valid UUID")
	}
	return &id, nil
}
