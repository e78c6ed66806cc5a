package planning

import (
	"context"

	"github.com/erp/manufacturing/internal/domain/catalog"
	"github.com/erp/manufacturing/internal/domain/inventory"
	"github.com/erp/manufacturing/internal/domain/planning"
	"github.com/erp/manufacturing/internal/domain/production"
)

// TransactionScope provides transactional access to the planning repositories.
// fn runs inside one database transaction that commits when fn returns nil.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories groups the repositories an MRP step needs.
//
// Orders, BOMs, items and balances are read-only here: they are written by
// other workflows and the ledger. Runs, requirements and purchase requests
// are owned by planning.
type TransactionalRepositories interface {
	RunRepo() planning.MRPRunRepository
	RequirementRepo() planning.MRPRequirementRepository
	PurchaseRequestRepo() planning.PurchaseRequestRepository

	OrderRepo() production.ProductionOrderRepository
	BOMRepo() production.BOMRepository
	ItemRepo() catalog.ItemRepository
	BalanceRepo() inventory.InventoryBalanceRepository
}

// Repositories is a plain set of repositories. Wrapped in
// NoOpTransactionScope it serves tests that do not need a database.
type Repositories struct {
	Runs             planning.MRPRunRepository
	Requirements     planning.MRPRequirementRepository
	PurchaseRequests planning.PurchaseRequestRepository
	Orders           production.ProductionOrderRepository
	BOMs             production.BOMRepository
	Items            catalog.ItemRepository
	Balances         inventory.InventoryBalanceRepository
}

func (r Repositories) RunRepo() planning.MRPRunRepository                 { return r.Runs }
func (r Repositories) RequirementRepo() planning.MRPRequirementRepository { return r.Requirements }
func (r Repositories) PurchaseRequestRepo() planning.PurchaseRequestRepository {
	return r.PurchaseRequests
}
func (r Repositories) OrderRepo() production.ProductionOrderRepository   { return r.Orders }
func (r Repositories) BOMRepo() production.BOMRepository                 { return r.BOMs }
func (r Repositories) ItemRepo() catalog.ItemRepository                  { return r.Items }
func (r Repositories) BalanceRepo() inventory.InventoryBalanceRepository { return r.Balances }

// NoOpTransactionScope runs fn against fixed repositories without a
// database transaction.
type NoOpTransactionScope struct {
	repos Repositories
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(repos Repositories) *NoOpTransactionScope {
	return &NoOpTransactionScope{repos: repos}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s.repos)
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = Repositories{}
