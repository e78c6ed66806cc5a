package planning

import (
	"time"

	"github.com/erp/manufacturing/internal/domain/planning"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExecuteMRPRequest starts a run. A zero horizon uses the configured default.
type ExecuteMRPRequest struct {
	PlanningHorizonDays int    `json:"planning_horizon_days" binding:"omitempty,min=1"`
	Notes               string `json:"notes" binding:"max=500"`
}

// GeneratePurchaseRequestsRequest names who asked for generation
type GeneratePurchaseRequestsRequest struct {
	RequestedBy string `json:"requested_by" binding:"max=100"`
}

// RunResponse represents an MRP run in API responses
type RunResponse struct {
	ID                  uuid.UUID  `json:"id"`
	RunNumber           string     `json:"run_number"`
	RunDate             time.Time  `json:"run_date"`
	PlanningHorizonDays int        `json:"planning_horizon_days"`
	Status              string     `json:"status"`
	TotalRequirements   int        `json:"total_requirements"`
	TotalShortages      int        `json:"total_shortages"`
	Notes               string     `json:"notes,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	Version             int        `json:"version"`
}

// ToRunResponse converts a domain MRPRun to a response
func ToRunResponse(r *planning.MRPRun) RunResponse {
	return RunResponse{
		ID:                  r.ID,
		RunNumber:           r.RunNumber,
		RunDate:             r.RunDate,
		PlanningHorizonDays: r.PlanningHorizonDays,
		Status:              string(r.Status),
		TotalRequirements:   r.TotalRequirements,
		TotalShortages:      r.TotalShortages,
		Notes:               r.Notes,
		CompletedAt:         r.CompletedAt,
		CreatedAt:           r.CreatedAt,
		Version:             r.Version,
	}
}

// RequirementResponse represents a requirement row in API responses
type RequirementResponse struct {
	ID                uuid.UUID       `json:"id"`
	MRPRunID          uuid.UUID       `json:"mrp_run_id"`
	ProductionOrderID uuid.UUID       `json:"production_order_id"`
	ItemID            uuid.UUID       `json:"item_id"`
	RequiredQuantity  decimal.Decimal `json:"required_quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	ShortageQuantity  decimal.Decimal `json:"shortage_quantity"`
	RequiredDate      time.Time       `json:"required_date"`
	Status            string          `json:"status"`
	PRID              *uuid.UUID      `json:"pr_id,omitempty"`
}

// ToRequirementResponse converts a domain MRPRequirement to a response
func ToRequirementResponse(r *planning.MRPRequirement) RequirementResponse {
	return RequirementResponse{
		ID:                r.ID,
		MRPRunID:          r.MRPRunID,
		ProductionOrderID: r.ProductionOrderID,
		ItemID:            r.ItemID,
		RequiredQuantity:  r.RequiredQuantity,
		AvailableQuantity: r.AvailableQuantity,
		ShortageQuantity:  r.ShortageQuantity,
		RequiredDate:      r.RequiredDate,
		Status:            string(r.Status),
		PRID:              r.PRID,
	}
}

// ToRequirementResponses converts a slice of requirements
func ToRequirementResponses(reqs []planning.MRPRequirement) []RequirementResponse {
	out := make([]RequirementResponse, len(reqs))
	for i := range reqs {
		out[i] = ToRequirementResponse(&reqs[i])
	}
	return out
}

// RunListFilter represents filter options for the run list
type RunListFilter struct {
	Status   string `form:"status" binding:"omitempty,oneof=running completed failed"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ToDomainFilter converts the request filter to a repository filter. Runs are
// always listed newest first.
func (f RunListFilter) ToDomainFilter() planning.RunFilter {
	base := shared.DefaultFilter()
	base.OrderBy = "run_date"
	base.OrderDir = "desc"
	if f.Page > 0 {
		base.Page = f.Page
	}
	if f.PageSize > 0 {
		base.PageSize = f.PageSize
	}
	return planning.RunFilter{Filter: base, Status: planning.RunStatus(f.Status)}
}

// ItemShortage is the unresolved demand for one item in a run summary
type ItemShortage struct {
	ItemID           uuid.UUID       `json:"item_id"`
	TotalShortage    decimal.Decimal `json:"total_shortage"`
	RequiredByDate   time.Time       `json:"required_by_date"`
	RequirementCount int             `json:"requirement_count"`
}

// RunSummary condenses a run into per-status counts and per-item shortages
type RunSummary struct {
	Run                 RunResponse    `json:"run"`
	SufficientCount     int            `json:"sufficient_count"`
	ShortageCount       int            `json:"shortage_count"`
	PRCreatedCount      int            `json:"pr_created_count"`
	UnresolvedShortages []ItemShortage `json:"unresolved_shortages"`
}

// RunSnapshot is the archived form of a completed run
type RunSnapshot struct {
	Run          RunResponse           `json:"run"`
	Requirements []RequirementResponse `json:"requirements"`
	ArchivedAt   time.Time             `json:"archived_at"`
}
