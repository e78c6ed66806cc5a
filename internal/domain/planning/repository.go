package planning

import (
	"context"
	"time"

	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
)

// RunFilter narrows a run listing
type RunFilter struct {
	shared.Filter
	Status RunStatus
}

// MRPRunRepository persists runs
type MRPRunRepository interface {
	Create(ctx context.Context, run *MRPRun) error

	// SaveWithLock writes the run if its stored version still matches
	SaveWithLock(ctx context.Context, run *MRPRun) error

	FindByID(ctx context.Context, id uuid.UUID) (*MRPRun, error)
	FindAll(ctx context.Context, filter RunFilter) ([]MRPRun, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// NextSequence returns the next free daily sequence for run numbers
	NextSequence(ctx context.Context, day time.Time) (int, error)
}

// MRPRequirementRepository persists requirement rows
type MRPRequirementRepository interface {
	CreateBatch(ctx context.Context, reqs []*MRPRequirement) error

	// FindByRun returns the rows of a run, all statuses when none are given,
	// ordered by item then production order
	FindByRun(ctx context.Context, runID uuid.UUID, statuses ...RequirementStatus) ([]MRPRequirement, error)

	// CountWithPR counts rows of a run that reference a purchase request
	CountWithPR(ctx context.Context, runID uuid.UUID) (int64, error)

	// MarkPRCreated flips rows from shortage to pr_created. Rows already
	// consumed are left alone, so the affected count tells the caller whether
	// it won the race for every row.
	MarkPRCreated(ctx context.Context, ids []uuid.UUID, prID uuid.UUID) (int64, error)

	DeleteByRun(ctx context.Context, runID uuid.UUID) error
}

// PurchaseRequestRepository persists generated purchase requests
type PurchaseRequestRepository interface {
	// Create inserts the request together with its lines
	Create(ctx context.Context, pr *PurchaseRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*PurchaseRequest, error)
	FindBySourceRun(ctx context.Context, runID uuid.UUID) ([]PurchaseRequest, error)

	// NextSequence returns the next free daily sequence for request numbers
	NextSequence(ctx context.Context, day time.Time) (int, error)
}
