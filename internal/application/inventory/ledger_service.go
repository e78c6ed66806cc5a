package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/manufacturing/internal/domain/inventory"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/erp/manufacturing/internal/infrastructure/logger"
	"github.com/erp/manufacturing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TransactionInput describes the log entry written together with a mutation.
type TransactionInput struct {
	Type            inventory.TransactionType
	Reference       inventory.Reference
	Notes           string
	Actor           string
	TransactionDate time.Time
}

// MutationResult is the outcome of one committed ledger mutation.
type MutationResult struct {
	Balance     inventory.BalanceSnapshot
	Transaction *inventory.InventoryTransaction
}

// LedgerService is the balance mutator. It is the only code path that writes
// inventory_balances, and every write appends to inventory_transactions in the
// same database transaction.
type LedgerService struct {
	balanceRepo     inventory.InventoryBalanceRepository
	transactionRepo inventory.InventoryTransactionRepository
	txScope         TransactionScope
	logger          *zap.Logger
	eventPublisher  shared.EventPublisher
	metrics         *telemetry.BusinessMetrics
}

// NewLedgerService creates a new LedgerService. The repositories are used for
// reads outside a transaction; writes always go through txScope.
func NewLedgerService(
	balanceRepo inventory.InventoryBalanceRepository,
	transactionRepo inventory.InventoryTransactionRepository,
	txScope TransactionScope,
	log *zap.Logger,
) *LedgerService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LedgerService{
		balanceRepo:     balanceRepo,
		transactionRepo: transactionRepo,
		txScope:         txScope,
		logger:          log.Named("ledger"),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *LedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetBusinessMetrics sets the metrics recorder
func (s *LedgerService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.metrics = bm
}

// publishDomainEvents publishes the events raised on a balance after commit
func (s *LedgerService) publishDomainEvents(ctx context.Context, balance *inventory.InventoryBalance) {
	if s.eventPublisher == nil {
		return
	}
	events := balance.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	// Publish errors are logged by the event bus, not propagated
	_ = s.eventPublisher.Publish(ctx, events...)
	balance.ClearDomainEvents()
}

// GetBalance returns the four-bucket snapshot of a pair. A pair that was
// never touched reads as all zero.
func (s *LedgerService) GetBalance(ctx context.Context, itemID, warehouseID uuid.UUID) (inventory.BalanceSnapshot, error) {
	balance, err := s.balanceRepo.FindByItemAndWarehouse(ctx, itemID, warehouseID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return inventory.EmptySnapshot(itemID, warehouseID), nil
		}
		return inventory.BalanceSnapshot{}, err
	}
	return balance.Snapshot(), nil
}

// AdjustQuantity changes one bucket by a signed delta and appends one
// transaction. It fails with INSUFFICIENT_STOCK instead of letting the bucket
// go negative, leaving neither the balance nor the log changed.
func (s *LedgerService) AdjustQuantity(
	ctx context.Context,
	itemID, warehouseID uuid.UUID,
	bucket inventory.Bucket,
	delta decimal.Decimal,
	in TransactionInput,
) (*MutationResult, error) {
	return s.mutate(ctx, itemID, warehouseID, in.Type, func(balance *inventory.InventoryBalance) (*inventory.InventoryTransaction, error) {
		entry, err := inventory.NewBucketMovement(in.Type, itemID, warehouseID, bucket, delta, in.Reference)
		if err != nil {
			return nil, err
		}
		if err := balance.Adjust(bucket, delta); err != nil {
			return nil, err
		}
		return decorate(entry, in), nil
	})
}

// TransferStatus moves quantity between two buckets of the same pair and
// writes a single log row carrying both statuses.
func (s *LedgerService) TransferStatus(
	ctx context.Context,
	itemID, warehouseID uuid.UUID,
	from, to inventory.Bucket,
	quantity decimal.Decimal,
	in TransactionInput,
) (*MutationResult, error) {
	if in.Type == "" {
		in.Type = inventory.TransactionTypeTransfer
	}
	return s.mutate(ctx, itemID, warehouseID, in.Type, func(balance *inventory.InventoryBalance) (*inventory.InventoryTransaction, error) {
		entry, err := inventory.NewStatusMove(in.Type, itemID, warehouseID, from, to, quantity, in.Reference)
		if err != nil {
			return nil, err
		}
		if err := balance.Transfer(from, to, quantity); err != nil {
			return nil, err
		}
		return decorate(entry, in), nil
	})
}

// CreateOrUpdateBalance makes sure a balance row exists and returns it. When
// this call creates the row, a non-zero seed is written as one receipt per
// bucket so the log replays to the seeded values. An existing row is returned
// unchanged.
func (s *LedgerService) CreateOrUpdateBalance(
	ctx context.Context,
	itemID, warehouseID uuid.UUID,
	seed inventory.BucketQuantities,
	actor string,
) (inventory.BalanceSnapshot, error) {
	if neg := seed.NegativeBuckets(); len(neg) > 0 {
		return inventory.BalanceSnapshot{}, shared.NewDomainError(shared.CodeValidation,
			fmt.Sprintf("Seed quantity for bucket %s cannot be negative", neg[0]))
	}
	if err := seed.Validate(); err != nil {
		return inventory.BalanceSnapshot{}, err
	}

	var result *inventory.InventoryBalance
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		_, created, err := repos.BalanceRepo().GetOrCreate(ctx, itemID, warehouseID)
		if err != nil {
			return err
		}
		balance, err := repos.BalanceRepo().FindByItemAndWarehouseForUpdate(ctx, itemID, warehouseID)
		if err != nil {
			return err
		}
		if !created || seed.IsZero() {
			result = balance
			return nil
		}

		ref := inventory.Reference{Type: inventory.ReferenceInitialBalance, ID: balance.ID.String()}
		version := balance.GetVersion()
		var entries []*inventory.InventoryTransaction
		for _, bucket := range inventory.AllBuckets() {
			qty := seed.Get(bucket)
			if qty.IsZero() {
				continue
			}
			entry, err := inventory.NewBucketMovement(inventory.TransactionTypeReceipt, itemID, warehouseID, bucket, qty, ref)
			if err != nil {
				return err
			}
			if err := balance.Adjust(bucket, qty); err != nil {
				return err
			}
			entries = append(entries, entry.WithActor(actor).WithNotes("initial balance"))
		}
		// Several buckets changed in one write; the stored version moves by one.
		balance.Version = version + 1
		if err := repos.BalanceRepo().SaveWithLock(ctx, balance); err != nil {
			return err
		}
		if err := repos.TransactionRepo().CreateBatch(ctx, entries); err != nil {
			return err
		}
		result = balance
		return nil
	})
	if err != nil {
		return inventory.BalanceSnapshot{}, err
	}

	s.publishDomainEvents(ctx, result)
	return result.Snapshot(), nil
}

// Reconcile replays the log of a pair from zero and compares it with the
// stored balance. Both are read in one transaction under the balance row
// lock, so a mutation committing mid-read cannot show up as drift. Drift is
// reported as an integrity violation but the report itself is always
// returned.
func (s *LedgerService) Reconcile(ctx context.Context, itemID, warehouseID uuid.UUID) (*inventory.ReconciliationReport, error) {
	var (
		snapshot inventory.BalanceSnapshot
		txs      []inventory.InventoryTransaction
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		snapshot, txs, err = readLedgerLocked(ctx, repos, itemID, warehouseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	report := inventory.Reconcile(snapshot, txs)
	if !report.Balanced {
		fields := []zap.Field{
			zap.String("item_id", itemID.String()),
			zap.String("warehouse_id", warehouseID.String()),
			zap.Int("transaction_count", report.TransactionCount),
		}
		for _, d := range report.Buckets {
			if !d.Drift.IsZero() {
				fields = append(fields, zap.String("drift_"+d.Bucket.String(), d.Drift.String()))
			}
		}
		logger.WithTraceContext(ctx, s.logger).Error("Ledger does not replay to stored balance", fields...)
		if s.metrics != nil {
			s.metrics.RecordIntegrityViolation(ctx, warehouseID.String())
		}
	}
	return &report, nil
}

// readLedgerLocked reads the balance with a row lock, then its log. With no
// row there is nothing to lock; if log entries turn up anyway, a first
// mutation committed in between and the read is repeated now that the row
// exists.
func readLedgerLocked(
	ctx context.Context,
	repos TransactionalRepositories,
	itemID, warehouseID uuid.UUID,
) (inventory.BalanceSnapshot, []inventory.InventoryTransaction, error) {
	for attempt := 0; ; attempt++ {
		snapshot := inventory.EmptySnapshot(itemID, warehouseID)
		balance, err := repos.BalanceRepo().FindByItemAndWarehouseForUpdate(ctx, itemID, warehouseID)
		switch {
		case err == nil:
			snapshot = balance.Snapshot()
		case !errors.Is(err, shared.ErrNotFound):
			return inventory.BalanceSnapshot{}, nil, err
		}
		txs, err := repos.TransactionRepo().FindByItemAndWarehouse(ctx, itemID, warehouseID)
		if err != nil {
			return inventory.BalanceSnapshot{}, nil, err
		}
		if snapshot.Exists || len(txs) == 0 || attempt > 0 {
			return snapshot, txs, nil
		}
	}
}

// ListTransactions returns a page of the transaction log
func (s *LedgerService) ListTransactions(ctx context.Context, filter inventory.TransactionFilter) ([]inventory.InventoryTransaction, int64, error) {
	return s.transactionRepo.FindAll(ctx, filter)
}

type mutationFunc func(balance *inventory.InventoryBalance) (*inventory.InventoryTransaction, error)

// mutate runs one balance change under a row lock. The row is created by
// upsert first so the lock always has something to hold.
func (s *LedgerService) mutate(
	ctx context.Context,
	itemID, warehouseID uuid.UUID,
	txType inventory.TransactionType,
	fn mutationFunc,
) (_ *MutationResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "mutate",
		attribute.String(telemetry.SpanAttrItemID, itemID.String()),
		attribute.String(telemetry.SpanAttrWarehouseID, warehouseID.String()),
		attribute.String(telemetry.SpanAttrTransactionType, txType.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	var (
		balance *inventory.InventoryBalance
		entry   *inventory.InventoryTransaction
	)
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, _, err := repos.BalanceRepo().GetOrCreate(ctx, itemID, warehouseID); err != nil {
			return err
		}
		locked, err := repos.BalanceRepo().FindByItemAndWarehouseForUpdate(ctx, itemID, warehouseID)
		if err != nil {
			return err
		}
		if err := locked.CheckIntegrity(); err != nil {
			s.reportIntegrityViolation(ctx, locked)
			return err
		}

		entry, err = fn(locked)
		if err != nil {
			return err
		}
		if err := repos.BalanceRepo().SaveWithLock(ctx, locked); err != nil {
			return err
		}
		if err := repos.TransactionRepo().Create(ctx, entry); err != nil {
			return fmt.Errorf("append inventory transaction: %w", err)
		}
		balance = locked
		return nil
	})
	if err != nil {
		s.recordRejection(ctx, txType, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordLedgerMutation(ctx, txType.String())
	}
	s.publishDomainEvents(ctx, balance)
	return &MutationResult{Balance: balance.Snapshot(), Transaction: entry}, nil
}

func (s *LedgerService) reportIntegrityViolation(ctx context.Context, balance *inventory.InventoryBalance) {
	q := balance.Quantities()
	logger.WithTraceContext(ctx, s.logger).Error("Negative bucket on locked balance",
		zap.String("item_id", balance.ItemID.String()),
		zap.String("warehouse_id", balance.WarehouseID.String()),
		zap.String("available", q.Available.String()),
		zap.String("reserved", q.Reserved.String()),
		zap.String("under_inspection", q.UnderInspection.String()),
		zap.String("rejected", q.Rejected.String()),
		zap.Int("version", balance.GetVersion()),
	)
	if s.metrics != nil {
		s.metrics.RecordIntegrityViolation(ctx, balance.WarehouseID.String())
	}
}

func (s *LedgerService) recordRejection(ctx context.Context, txType inventory.TransactionType, err error) {
	code := shared.ErrorCode(err)
	if code == "" {
		logger.WithTraceContext(ctx, s.logger).Error("Ledger mutation failed",
			zap.String("transaction_type", txType.String()),
			zap.Error(err),
		)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordLedgerRejection(ctx, txType.String(), code)
	}
}

func decorate(entry *inventory.InventoryTransaction, in TransactionInput) *inventory.InventoryTransaction {
	return entry.WithNotes(in.Notes).WithActor(in.Actor).WithTransactionDate(in.TransactionDate)
}
