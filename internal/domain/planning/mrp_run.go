package planning

import (
	"fmt"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
)

// RunStatus represents the status of an MRP run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsValid returns true if the status is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true for statuses a run cannot leave
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// DefaultPlanningHorizonDays is used when a caller does not pick a horizon
const DefaultPlanningHorizonDays = 30

// MRPRun is one auditable invocation of the requirement calculator. It starts
// running and terminates exactly once.
type MRPRun struct {
	shared.BaseAggregateRoot
	RunNumber           string    `gorm:"type:varchar(30);not null;uniqueIndex"`
	RunDate             time.Time `gorm:"not null;index"`
	PlanningHorizonDays int       `gorm:"not null"`
	Status              RunStatus `gorm:"type:varchar(20);not null;index"`
	TotalRequirements   int       `gorm:"not null;default:0"`
	TotalShortages      int       `gorm:"not null;default:0"`
	Notes               string    `gorm:"type:text"`
	CompletedAt         *time.Time
}

// TableName returns the table name for GORM
func (MRPRun) TableName() string {
	return "mrp_runs"
}

// NewMRPRun creates a run in running status
func NewMRPRun(runNumber string, horizonDays int, runDate time.Time) (*MRPRun, error) {
	if runNumber == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "Run number cannot be empty")
	}
	if horizonDays <= 0 {
		return nil, shared.NewDomainError(shared.CodeValidation, "Planning horizon must be at least one day")
	}
	run := &MRPRun{
		BaseAggregateRoot:   shared.NewBaseAggregateRoot(),
		RunNumber:           runNumber,
		RunDate:             runDate,
		PlanningHorizonDays: horizonDays,
		Status:              RunStatusRunning,
	}
	return run, nil
}

// HorizonEnd returns the last instant an order's required date may fall on
// to be included in this run
func (r *MRPRun) HorizonEnd() time.Time {
	return r.RunDate.AddDate(0, 0, r.PlanningHorizonDays)
}

// IsStale reports whether the run is still running more than after past its
// start, which only happens when the process executing it died
func (r *MRPRun) IsStale(now time.Time, after time.Duration) bool {
	return r.Status == RunStatusRunning && now.Sub(r.RunDate) > after
}

// Complete records totals and marks the run completed
func (r *MRPRun) Complete(totalRequirements, totalShortages int) error {
	if r.Status != RunStatusRunning {
		return shared.NewDomainError(shared.CodeStateConflict,
			fmt.Sprintf("MRP run %s is %s and cannot be completed", r.RunNumber, r.Status))
	}
	now := time.Now()
	r.Status = RunStatusCompleted
	r.TotalRequirements = totalRequirements
	r.TotalShortages = totalShortages
	r.CompletedAt = &now
	r.UpdatedAt = now
	r.IncrementVersion()
	r.AddDomainEvent(NewMRPRunCompletedEvent(r))
	return nil
}

// Fail marks the run failed with the cause in its notes
func (r *MRPRun) Fail(cause string) error {
	if r.Status != RunStatusRunning {
		return shared.NewDomainError(shared.CodeStateConflict,
			fmt.Sprintf("MRP run %s is %s and cannot be failed", r.RunNumber, r.Status))
	}
	now := time.Now()
	r.Status = RunStatusFailed
	r.Notes = cause
	r.CompletedAt = &now
	r.UpdatedAt = now
	r.IncrementVersion()
	r.AddDomainEvent(NewMRPRunFailedEvent(r, cause))
	return nil
}

// EnsureGeneratable returns an error unless purchase requests may be
// generated from this run
func (r *MRPRun) EnsureGeneratable() error {
	if r.Status != RunStatusCompleted {
		return shared.NewDomainError(shared.CodeStateConflict,
			fmt.Sprintf("MRP run %s is %s; only completed runs can generate purchase requests", r.RunNumber, r.Status))
	}
	return nil
}

// FormatDocumentNumber builds numbers such as MRP-20260115-0003
func FormatDocumentNumber(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), seq)
}

// Document number prefixes
const (
	RunNumberPrefix             = "MRP"
	PurchaseRequestNumberPrefix = "PR"
)
