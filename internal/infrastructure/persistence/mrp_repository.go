package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/erp/manufacturing/internal/domain/planning"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// requirementBatchSize bounds the rows of one multi-row INSERT
const requirementBatchSize = 500

// GormMRPRunRepository implements MRPRunRepository using GORM
type GormMRPRunRepository struct {
	db *gorm.DB
}

// NewGormMRPRunRepository creates a new GormMRPRunRepository
func NewGormMRPRunRepository(db *gorm.DB) *GormMRPRunRepository {
	return &GormMRPRunRepository{db: db}
}

// Create inserts a new run
func (r *GormMRPRunRepository) Create(ctx context.Context, run *planning.MRPRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormMRPRunRepository) SaveWithLock(ctx context.Context, run *planning.MRPRun) error {
	result := r.db.WithContext(ctx).
		Model(&planning.MRPRun{}).
		Where("id = ? AND version = ?", run.ID, run.Version-1).
		Updates(map[string]any{
			"status":             run.Status,
			"total_requirements": run.TotalRequirements,
			"total_shortages":    run.TotalShortages,
			"notes":              run.Notes,
			"completed_at":       run.CompletedAt,
			"version":            run.Version,
			"updated_at":         run.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "MRP run was modified by another transaction")
	}
	return nil
}

// FindByID finds a run by its ID
func (r *GormMRPRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*planning.MRPRun, error) {
	var run planning.MRPRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

// FindAll returns one page of runs and the number of matching runs
func (r *GormMRPRunRepository) FindAll(ctx context.Context, filter planning.RunFilter) ([]planning.MRPRun, int64, error) {
	query := r.db.WithContext(ctx).Model(&planning.MRPRun{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []planning.MRPRun
	if err := applyPage(query, filter.Filter, RunSortFields, "run_date").Find(&runs).Error; err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// Delete deletes a run
func (r *GormMRPRunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&planning.MRPRun{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// NextSequence returns the next run number sequence for day
func (r *GormMRPRunRepository) NextSequence(ctx context.Context, day time.Time) (int, error) {
	return nextDocumentSequence(ctx, r.db, &planning.MRPRun{}, "run_number", planning.RunNumberPrefix, day)
}

// GormMRPRequirementRepository implements MRPRequirementRepository using GORM
type GormMRPRequirementRepository struct {
	db *gorm.DB
}

// NewGormMRPRequirementRepository creates a new GormMRPRequirementRepository
func NewGormMRPRequirementRepository(db *gorm.DB) *GormMRPRequirementRepository {
	return &GormMRPRequirementRepository{db: db}
}

// CreateBatch inserts the requirement rows of a run
func (r *GormMRPRequirementRepository) CreateBatch(ctx context.Context, reqs []*planning.MRPRequirement) error {
	if len(reqs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(reqs, requirementBatchSize).Error
}

// FindByRun returns the rows of a run ordered by item then production order
func (r *GormMRPRequirementRepository) FindByRun(ctx context.Context, runID uuid.UUID, statuses ...planning.RequirementStatus) ([]planning.MRPRequirement, error) {
	query := r.db.WithContext(ctx).Where("mrp_run_id = ?", runID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var reqs []planning.MRPRequirement
	if err := query.
		Order("item_id ASC, production_order_id ASC").
		Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

// CountWithPR counts rows of a run linked to a purchase request
func (r *GormMRPRequirementRepository) CountWithPR(ctx context.Context, runID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&planning.MRPRequirement{}).
		Where("mrp_run_id = ? AND pr_id IS NOT NULL", runID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// MarkPRCreated flips rows still in shortage status to pr_created. The status
// guard makes the UPDATE a check-and-set: rows consumed by another writer are
// not counted in the result.
func (r *GormMRPRequirementRepository) MarkPRCreated(ctx context.Context, ids []uuid.UUID, prID uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&planning.MRPRequirement{}).
		Where("id IN ? AND status = ?", ids, planning.RequirementStatusShortage).
		Updates(map[string]any{
			"status":     planning.RequirementStatusPRCreated,
			"pr_id":      prID,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// DeleteByRun deletes every row of a run
func (r *GormMRPRequirementRepository) DeleteByRun(ctx context.Context, runID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("mrp_run_id = ?", runID).
		Delete(&planning.MRPRequirement{}).Error
}

// GormPurchaseRequestRepository implements PurchaseRequestRepository using GORM
type GormPurchaseRequestRepository struct {
	db *gorm.DB
}

// NewGormPurchaseRequestRepository creates a new GormPurchaseRequestRepository
func NewGormPurchaseRequestRepository(db *gorm.DB) *GormPurchaseRequestRepository {
	return &GormPurchaseRequestRepository{db: db}
}

// Create inserts the request and its lines
func (r *GormPurchaseRequestRepository) Create(ctx context.Context, pr *planning.PurchaseRequest) error {
	return r.db.WithContext(ctx).Create(pr).Error
}

// FindByID finds a purchase request with its lines
func (r *GormPurchaseRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*planning.PurchaseRequest, error) {
	var pr planning.PurchaseRequest
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_number ASC") }).
		First(&pr, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &pr, nil
}

// FindBySourceRun returns the requests generated from a run
func (r *GormPurchaseRequestRepository) FindBySourceRun(ctx context.Context, runID uuid.UUID) ([]planning.PurchaseRequest, error) {
	var prs []planning.PurchaseRequest
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("source_run_id = ?", runID).
		Order("pr_number ASC").
		Find(&prs).Error; err != nil {
		return nil, err
	}
	return prs, nil
}

// NextSequence returns the next request number sequence for day
func (r *GormPurchaseRequestRepository) NextSequence(ctx context.Context, day time.Time) (int, error) {
	return nextDocumentSequence(ctx, r.db, &planning.PurchaseRequest{}, "pr_number", planning.PurchaseRequestNumberPrefix, day)
}

// nextDocumentSequence reads the highest number issued for day and returns
// the one after it. Numbers are fixed-width, so the lexical maximum is the
// numeric maximum.
func nextDocumentSequence(ctx context.Context, db *gorm.DB, model any, column, prefix string, day time.Time) (int, error) {
	dayPrefix := planning.FormatDocumentNumber(prefix, day, 0)
	dayPrefix = strings.TrimSuffix(dayPrefix, "0000")

	var last string
	err := db.WithContext(ctx).
		Model(model).
		Select(column).
		Where(column+" LIKE ?", dayPrefix+"%").
		Order(column + " DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return 0, err
	}
	if last == "" {
		return 1, nil
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(last, dayPrefix))
	if err != nil {
		return 0, fmt.Errorf("malformed document number %q: %w", last, err)
	}
	return seq + 1, nil
}

// Ensure repositories implement their interfaces
var (
	_ planning.MRPRunRepository          = (*GormMRPRunRepository)(nil)
	_ planning.MRPRequirementRepository  = (*GormMRPRequirementRepository)(nil)
	_ planning.PurchaseRequestRepository = (*GormPurchaseRequestRepository)(nil)
)
