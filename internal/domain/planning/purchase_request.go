package planning

import (
	"fmt"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseRequestStatus represents the approval status of a purchase request
type PurchaseRequestStatus string

const (
	PurchaseRequestStatusDraft           PurchaseRequestStatus = "draft"
	PurchaseRequestStatusPendingApproval PurchaseRequestStatus = "pending_approval"
)

// PurchaseRequest asks purchasing to buy an item. Requests generated from MRP
// carry exactly one line and point back at their source run. Approval and
// conversion to purchase orders belong to the purchasing workflow.
type PurchaseRequest struct {
	shared.BaseAggregateRoot
	PRNumber       string                `gorm:"column:pr_number;type:varchar(30);not null;uniqueIndex"`
	Status         PurchaseRequestStatus `gorm:"type:varchar(20);not null;index"`
	SourceRunID    *uuid.UUID            `gorm:"type:uuid;index"`
	Justification  string                `gorm:"type:text"`
	RequiredByDate time.Time             `gorm:"not null"`
	RequestedBy    string                `gorm:"type:varchar(100)"`
	Lines          []PurchaseRequestLine `gorm:"foreignKey:PurchaseRequestID;references:ID"`
}

// TableName returns the table name for GORM
func (PurchaseRequest) TableName() string {
	return "purchase_requests"
}

// PurchaseRequestLine is one item line of a purchase request
type PurchaseRequestLine struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PurchaseRequestID uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNumber        int             `gorm:"not null"`
	ItemID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RequiredDate      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PurchaseRequestLine) TableName() string {
	return "purchase_request_lines"
}

// NewPurchaseRequestFromShortage creates a pending request covering one
// shortage group of a run
func NewPurchaseRequestFromShortage(prNumber string, run *MRPRun, group ShortageGroup, requestedBy string) (*PurchaseRequest, error) {
	if prNumber == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Purchase request number cannot be empty")
	}
	if run == nil {
		return nil, shared.NewDomainError(shared.CodeValidation, "Source run is required")
	}
	if !group.TotalShortage.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeValidation, "Purchase request quantity must be positive")
	}
	runID := run.ID
	pr := &PurchaseRequest{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PRNumber:          prNumber,
		Status:            PurchaseRequestStatusPendingApproval,
		SourceRunID:       &runID,
		Justification: fmt.Sprintf("Generated from MRP run %s: shortage of %s across %d requirement(s)",
			run.RunNumber, group.TotalShortage.String(), len(group.RequirementIDs)),
		RequiredByDate: group.RequiredByDate,
		RequestedBy:    requestedBy,
	}
	pr.Lines = []PurchaseRequestLine{{
		ID:                uuid.New(),
		PurchaseRequestID: pr.ID,
		LineNumber:        1,
		ItemID:            group.ItemID,
		Quantity:          group.TotalShortage,
		RequiredDate:      group.RequiredByDate,
	}}
	pr.AddDomainEvent(NewPurchaseRequestGeneratedEvent(pr, run, group))
	return pr, nil
}
