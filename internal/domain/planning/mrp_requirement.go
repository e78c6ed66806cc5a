package planning

import (
	"fmt"
	"sort"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequirementStatus represents the netting outcome of a requirement
type RequirementStatus string

const (
	RequirementStatusSufficient RequirementStatus = "sufficient"
	RequirementStatusShortage   RequirementStatus = "shortage"
	RequirementStatusPRCreated  RequirementStatus = "pr_created"
)

// IsValid returns true if the status is valid
func (s RequirementStatus) IsValid() bool {
	switch s {
	case RequirementStatusSufficient, RequirementStatusShortage, RequirementStatusPRCreated:
		return true
	}
	return false
}

// MRPRequirement is the netting result for one component of one production
// order within a run.
type MRPRequirement struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey"`
	MRPRunID          uuid.UUID         `gorm:"column:mrp_run_id;type:uuid;not null;uniqueIndex:idx_mrp_req_run_order_item,priority:1"`
	ProductionOrderID uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_mrp_req_run_order_item,priority:2"`
	ItemID            uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_mrp_req_run_order_item,priority:3;index"`
	RequiredQuantity  decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	AvailableQuantity decimal.Decimal   `gorm:"type:decimal(18,4);not null"` // snapshot at netting time
	ShortageQuantity  decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	RequiredDate      time.Time         `gorm:"not null"`
	Status            RequirementStatus `gorm:"type:varchar(20);not null;index"`
	PRID              *uuid.UUID        `gorm:"column:pr_id;type:uuid;index"`
	CreatedAt         time.Time         `gorm:"not null"`
	UpdatedAt         time.Time         `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MRPRequirement) TableName() string {
	return "mrp_requirements"
}

// NewMRPRequirement nets required against available and classifies the row
func NewMRPRequirement(
	runID, orderID, itemID uuid.UUID,
	required, available decimal.Decimal,
	requiredDate time.Time,
) (*MRPRequirement, error) {
	if runID == uuid.Nil || orderID == uuid.Nil || itemID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Run, order and item IDs are required")
	}
	if required.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Required quantity cannot be negative")
	}
	shortage := decimal.Max(decimal.Zero, required.Sub(available))
	status := RequirementStatusSufficient
	if shortage.IsPositive() {
		status = RequirementStatusShortage
	}
	now := time.Now()
	return &MRPRequirement{
		ID:                uuid.New(),
		MRPRunID:          runID,
		ProductionOrderID: orderID,
		ItemID:            itemID,
		RequiredQuantity:  required,
		AvailableQuantity: available,
		ShortageQuantity:  shortage,
		RequiredDate:      requiredDate,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// IsShortage returns true if the row still carries unresolved demand
func (r *MRPRequirement) IsShortage() bool {
	return r.Status == RequirementStatusShortage
}

// MarkPRCreated links the row to the purchase request that covers it
func (r *MRPRequirement) MarkPRCreated(prID uuid.UUID) error {
	if r.Status != RequirementStatusShortage {
		return shared.NewDomainError(shared.CodeStateConflict,
			fmt.Sprintf("requirement %s is %s; only shortage rows can be consumed", r.ID, r.Status))
	}
	r.Status = RequirementStatusPRCreated
	r.PRID = &prID
	r.UpdatedAt = time.Now()
	return nil
}

// ShortageGroup is the unresolved demand for one item across every order of
// a run
type ShortageGroup struct {
	ItemID         uuid.UUID
	TotalShortage  decimal.Decimal
	RequiredByDate time.Time
	RequirementIDs []uuid.UUID
}

// GroupShortages aggregates rows in shortage status by item. Rows in any other
// status are ignored. The earliest required date of a group wins. Groups are
// ordered by item ID so repeated calls process items in the same order.
func GroupShortages(reqs []MRPRequirement) []ShortageGroup {
	byItem := make(map[uuid.UUID]*ShortageGroup)
	for i := range reqs {
		r := &reqs[i]
		if !r.IsShortage() {
			continue
		}
		g, ok := byItem[r.ItemID]
		if !ok {
			g = &ShortageGroup{
				ItemID:         r.ItemID,
				TotalShortage:  decimal.Zero,
				RequiredByDate: r.RequiredDate,
			}
			byItem[r.ItemID] = g
		}
		g.TotalShortage = g.TotalShortage.Add(r.ShortageQuantity)
		if r.RequiredDate.Before(g.RequiredByDate) {
			g.RequiredByDate = r.RequiredDate
		}
		g.RequirementIDs = append(g.RequirementIDs, r.ID)
	}

	groups := make([]ShortageGroup, 0, len(byItem))
	for _, g := range byItem {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].ItemID.String() < groups[j].ItemID.String()
	})
	return groups
}
