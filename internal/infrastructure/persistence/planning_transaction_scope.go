package persistence

import (
	"context"

	appplan "github.com/erp/manufacturing/internal/application/planning"
	"github.com/erp/manufacturing/internal/domain/catalog"
	"github.com/erp/manufacturing/internal/domain/inventory"
	"github.com/erp/manufacturing/internal/domain/planning"
	"github.com/erp/manufacturing/internal/domain/production"
	"gorm.io/gorm"
)

// GormPlanningTransactionScope implements the planning TransactionScope using GORM transactions.
type GormPlanningTransactionScope struct {
	db *gorm.DB
}

// NewGormPlanningTransactionScope creates a new GormPlanningTransactionScope.
func NewGormPlanningTransactionScope(db *gorm.DB) *GormPlanningTransactionScope {
	return &GormPlanningTransactionScope{db: db}
}

// Execute runs fn within a database transaction.
func (s *GormPlanningTransactionScope) Execute(ctx context.Context, fn func(repos appplan.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormPlanningRepositories{tx: tx})
	})
}

type gormPlanningRepositories struct {
	tx *gorm.DB
}

func (r *gormPlanningRepositories) RunRepo() planning.MRPRunRepository {
	return NewGormMRPRunRepository(r.tx)
}

func (r *gormPlanningRepositories) RequirementRepo() planning.MRPRequirementRepository {
	return NewGormMRPRequirementRepository(r.tx)
}

func (r *gormPlanningRepositories) PurchaseRequestRepo() planning.PurchaseRequestRepository {
	return NewGormPurchaseRequestRepository(r.tx)
}

func (r *gormPlanningRepositories) OrderRepo() production.ProductionOrderRepository {
	return NewGormProductionOrderRepository(r.tx)
}

func (r *gormPlanningRepositories) BOMRepo() production.BOMRepository {
	return NewGormBOMRepository(r.tx)
}

func (r *gormPlanningRepositories) ItemRepo() catalog.ItemRepository {
	return NewGormItemRepository(r.tx)
}

func (r *gormPlanningRepositories) BalanceRepo() inventory.InventoryBalanceRepository {
	return NewGormInventoryBalanceRepository(r.tx)
}

var _ appplan.TransactionScope = (*GormPlanningTransactionScope)(nil)
var _ appplan.TransactionalRepositories = (*gormPlanningRepositories)(nil)
