package production

import (
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillOfMaterials is one version of the component list for a parent item.
// At most one version per item is active.
type BillOfMaterials struct {
	shared.BaseEntity
	ItemID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Version  string    `gorm:"type:varchar(20);not null"`
	IsActive bool      `gorm:"not null;default:false"`
	Items    []BOMItem `gorm:"foreignKey:BOMID;references:ID"`
}

// TableName returns the table name for GORM
func (BillOfMaterials) TableName() string {
	return "bills_of_materials"
}

// BOMItem is one direct component line of a bill of materials
type BOMItem struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BOMID           uuid.UUID       `gorm:"column:bom_id;type:uuid;not null;index"`
	ComponentItemID uuid.UUID       `gorm:"type:uuid;not null"`
	QuantityPerUnit decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	ScrapPercentage decimal.Decimal `gorm:"type:decimal(9,6);not null;default:0"` // fraction: 0.05 is 5%
}

// TableName returns the table name for GORM
func (BOMItem) TableName() string {
	return "bom_items"
}

// NewBillOfMaterials creates an inactive BOM version with no lines
func NewBillOfMaterials(itemID uuid.UUID, version string) (*BillOfMaterials, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Item ID cannot be empty")
	}
	if version == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "BOM version cannot be empty")
	}
	return &BillOfMaterials{
		BaseEntity: shared.NewBaseEntity(),
		ItemID:     itemID,
		Version:    version,
	}, nil
}

// AddComponent appends a component line
func (b *BillOfMaterials) AddComponent(componentID uuid.UUID, qtyPerUnit, scrap decimal.Decimal) error {
	if componentID == uuid.Nil {
		return shared.NewDomainError(shared.CodeValidation, "Component item ID cannot be empty")
	}
	if componentID == b.ItemID {
		return shared.NewDomainError(shared.CodeValidation, "An item cannot be its own component")
	}
	if !qtyPerUnit.IsPositive() {
		return shared.NewDomainError(shared.CodeValidation, "Quantity per unit must be positive")
	}
	if scrap.IsNegative() {
		return shared.NewDomainError(shared.CodeValidation, "Scrap percentage cannot be negative")
	}
	b.Items = append(b.Items, BOMItem{
		ID:              uuid.New(),
		BOMID:           b.ID,
		ComponentItemID: componentID,
		QuantityPerUnit: qtyPerUnit,
		ScrapPercentage: scrap,
	})
	return nil
}

// ComponentDemand returns the unrounded gross demand for a component:
// quantityOrdered × quantityPerUnit × (1 + scrapPercentage).
func ComponentDemand(quantityOrdered decimal.Decimal, line BOMItem) decimal.Decimal {
	return quantityOrdered.Mul(line.QuantityPerUnit).Mul(decimal.NewFromInt(1).Add(line.ScrapPercentage))
}

// Explode returns the direct component demand of one order, one entry per
// component item in first-seen order. Duplicate lines for the same component
// are summed.
func (b *BillOfMaterials) Explode(quantityOrdered decimal.Decimal) []ComponentDemandLine {
	idx := make(map[uuid.UUID]int, len(b.Items))
	var out []ComponentDemandLine
	for _, line := range b.Items {
		d := ComponentDemand(quantityOrdered, line)
		if i, ok := idx[line.ComponentItemID]; ok {
			out[i].Quantity = out[i].Quantity.Add(d)
			continue
		}
		idx[line.ComponentItemID] = len(out)
		out = append(out, ComponentDemandLine{ItemID: line.ComponentItemID, Quantity: d})
	}
	return out
}

// ComponentDemandLine is the gross demand for one component item
type ComponentDemandLine struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
}
