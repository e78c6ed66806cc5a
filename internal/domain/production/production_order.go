package production

import (
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of a production order
type OrderStatus string

const (
	OrderStatusDraft      OrderStatus = "draft"
	OrderStatusScheduled  OrderStatus = "scheduled"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OpenOrderStatuses are the statuses whose orders still generate demand
func OpenOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusDraft, OrderStatusScheduled, OrderStatusInProgress}
}

// IsOpen returns true while the order can still consume components
func (s OrderStatus) IsOpen() bool {
	switch s {
	case OrderStatusDraft, OrderStatusScheduled, OrderStatusInProgress:
		return true
	}
	return false
}

// ProductionOrder is an order to manufacture a quantity of an item by a date.
// It is owned by the production workflow; this service only reads it.
type ProductionOrder struct {
	shared.BaseEntity
	OrderNumber     string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	ItemID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	QuantityOrdered decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RequiredDate    time.Time       `gorm:"not null;index"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;index"`
}

// TableName returns the table name for GORM
func (ProductionOrder) TableName() string {
	return "production_orders"
}

// NewProductionOrder creates a draft production order
func NewProductionOrder(orderNumber string, itemID uuid.UUID, quantity decimal.Decimal, requiredDate time.Time) (*ProductionOrder, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Order number cannot be empty")
	}
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Item ID cannot be empty")
	}
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Quantity ordered must be positive")
	}
	return &ProductionOrder{
		BaseEntity:      shared.NewBaseEntity(),
		OrderNumber:     orderNumber,
		ItemID:          itemID,
		QuantityOrdered: quantity,
		RequiredDate:    requiredDate,
		Status:          OrderStatusDraft,
	}, nil
}
