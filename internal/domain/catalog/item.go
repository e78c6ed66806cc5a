package catalog

import (
	"strings"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ItemStatus represents the lifecycle status of an item
type ItemStatus string

const (
	ItemStatusActive       ItemStatus = "active"
	ItemStatusInactive     ItemStatus = "inactive"
	ItemStatusDiscontinued ItemStatus = "discontinued"
)

// MaxUoMPrecision bounds the decimal places a unit of measure may carry; it
// matches the scale of the quantity columns.
const MaxUoMPrecision = 4

// Item is a stockable material, component or finished good.
type Item struct {
	shared.BaseEntity
	Code          string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name          string     `gorm:"type:varchar(200);not null"`
	UnitOfMeasure string     `gorm:"type:varchar(20);not null"`
	UoMPrecision  int32      `gorm:"column:uom_precision;not null;default:0"` // decimal places kept when rounding quantities
	Status        ItemStatus `gorm:"type:varchar(20);not null;default:'active'"`
	DeletedAt     *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (Item) TableName() string {
	return "items"
}

// NewItem creates a new active item
func NewItem(code, name, uom string, precision int32) (*Item, error) {
	if strings.TrimSpace(code) == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Item code cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Item name cannot be empty")
	}
	if strings.TrimSpace(uom) == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Unit of measure cannot be empty")
	}
	if precision < 0 || precision > MaxUoMPrecision {
		return nil, shared.NewDomainError(shared.CodeValidation, "Unit of measure precision must be between 0 and 4")
	}
	return &Item{
		BaseEntity:    shared.NewBaseEntity(),
		Code:          strings.ToUpper(code),
		Name:          name,
		UnitOfMeasure: uom,
		UoMPrecision:  precision,
		Status:        ItemStatusActive,
	}, nil
}

// IsDeleted returns true once the item has been soft-deleted
func (i *Item) IsDeleted() bool {
	return i.DeletedAt != nil
}

// Delete soft-deletes the item
func (i *Item) Delete() {
	now := time.Now()
	i.DeletedAt = &now
	i.UpdatedAt = now
}

// RoundQuantity rounds q half-up to the item's unit-of-measure precision
func (i *Item) RoundQuantity(q decimal.Decimal) decimal.Decimal {
	return q.Round(i.UoMPrecision)
}
