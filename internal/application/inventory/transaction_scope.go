package inventory

import (
	"context"

	"github.com/erp/manufacturing/internal/domain/inventory"
)

// TransactionScope provides transactional access to the ledger repositories.
// Every repository handed to fn shares one database transaction, which is
// committed when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the ledger repositories within a transaction.
//
//   - BalanceRepo: the InventoryBalance aggregate. Reads made through
//     FindByItemAndWarehouseForUpdate hold a row lock until the scope ends.
//   - TransactionRepo: the append-only log. Each balance write in a scope must
//     be paired with exactly one append here.
type TransactionalRepositories interface {
	BalanceRepo() inventory.InventoryBalanceRepository
	TransactionRepo() inventory.InventoryTransactionRepository
}

// NoOpTransactionScope runs fn against the given repositories without a
// database transaction. It is used in tests where repositories are mocks.
type NoOpTransactionScope struct {
	balanceRepo     inventory.InventoryBalanceRepository
	transactionRepo inventory.InventoryTransactionRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	balanceRepo inventory.InventoryBalanceRepository,
	transactionRepo inventory.InventoryTransactionRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		balanceRepo:     balanceRepo,
		transactionRepo: transactionRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// BalanceRepo returns the balance repository.
func (s *NoOpTransactionScope) BalanceRepo() inventory.InventoryBalanceRepository {
	return s.balanceRepo
}

// TransactionRepo returns the transaction log repository.
func (s *NoOpTransactionScope) TransactionRepo() inventory.InventoryTransactionRepository {
	return s.transactionRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
