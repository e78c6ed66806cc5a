package planning

import (
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeMRPRun          = "MRPRun"
	AggregateTypePurchaseRequest = "PurchaseRequest"
)

// Event type constants
const (
	EventTypeMRPRunCompleted          = "MRPRunCompleted"
	EventTypeMRPRunFailed             = "MRPRunFailed"
	EventTypePurchaseRequestGenerated = "PurchaseRequestGenerated"
)

// MRPRunCompletedEvent is raised when a run finishes netting
type MRPRunCompletedEvent struct {
	shared.BaseDomainEvent
	RunNumber         string `json:"run_number"`
	TotalRequirements int    `json:"total_requirements"`
	TotalShortages    int    `json:"total_shortages"`
}

// NewMRPRunCompletedEvent creates a new MRPRunCompletedEvent
func NewMRPRunCompletedEvent(r *MRPRun) *MRPRunCompletedEvent {
	return &MRPRunCompletedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeMRPRunCompleted, AggregateTypeMRPRun, r.ID),
		RunNumber:         r.RunNumber,
		TotalRequirements: r.TotalRequirements,
		TotalShortages:    r.TotalShortages,
	}
}

// MRPRunFailedEvent is raised when a run terminates with an error
type MRPRunFailedEvent struct {
	shared.BaseDomainEvent
	RunNumber string `json:"run_number"`
	Cause     string `json:"cause"`
}

// NewMRPRunFailedEvent creates a new MRPRunFailedEvent
func NewMRPRunFailedEvent(r *MRPRun, cause string) *MRPRunFailedEvent {
	return &MRPRunFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMRPRunFailed, AggregateTypeMRPRun, r.ID),
		RunNumber:       r.RunNumber,
		Cause:           cause,
	}
}

// PurchaseRequestGeneratedEvent is raised for every request created from a run
type PurchaseRequestGeneratedEvent struct {
	shared.BaseDomainEvent
	PRNumber       string          `json:"pr_number"`
	SourceRunID    uuid.UUID       `json:"source_run_id"`
	ItemID         uuid.UUID       `json:"item_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	RequirementIDs []uuid.UUID     `json:"requirement_ids"`
}

// NewPurchaseRequestGeneratedEvent creates a new PurchaseRequestGeneratedEvent
func NewPurchaseRequestGeneratedEvent(pr *PurchaseRequest, run *MRPRun, group ShortageGroup) *PurchaseRequestGeneratedEvent {
	return &PurchaseRequestGeneratedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchaseRequestGenerated, AggregateTypePurchaseRequest, pr.ID),
		PRNumber:        pr.PRNumber,
		SourceRunID:     run.ID,
		ItemID:          group.ItemID,
		Quantity:        group.TotalShortage,
		RequirementIDs:  group.RequirementIDs,
	}
}
