package integration

import (
	"context"
	"sync"
	"testing"

	appinv "github.com/erp/manufacturing/internal/application/inventory"
	"github.com/erp/manufacturing/internal/domain/inventory"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/erp/manufacturing/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newLedger(db *gorm.DB) (*appinv.LedgerService, *appinv.Workflows) {
	ledger := appinv.NewLedgerService(
		persistence.NewGormInventoryBalanceRepository(db),
		persistence.NewGormInventoryTransactionRepository(db),
		persistence.NewGormTransactionScope(db),
		nil,
	)
	return ledger, appinv.NewWorkflows(ledger)
}

func TestLedger_ConcurrentIssuesNeverOversell(t *testing.T) {
	testDB := NewTestDB(t)
	ledger, workflows := newLedger(testDB.DB)
	ctx := context.Background()

	itemID, warehouseID := uuid.New(), uuid.New()
	header := appinv.CommandHeader{ItemID: itemID, WarehouseID: warehouseID, ReferenceID: "GR-1", Actor: "receiver"}
	_, err := workflows.ReceiveGoods(ctx, appinv.ReceiveGoodsCommand{CommandHeader: header, Quantity: qty(100)})
	require.NoError(t, err)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		codes     = map[string]int{}
	)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			issue := header
			issue.ReferenceID = "GI-" + uuid.NewString()[:8]
			_, err := workflows.IssueGoods(ctx, appinv.IssueGoodsCommand{CommandHeader: issue, Quantity: qty(10)})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			codes[shared.ErrorCode(err)]++
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, map[string]int{shared.CodeInsufficientStock: 10}, codes)

	snapshot, err := ledger.GetBalance(ctx, itemID, warehouseID)
	require.NoError(t, err)
	assert.True(t, snapshot.Quantities.Available.IsZero(), "available: %s", snapshot.Quantities.Available)

	report, err := ledger.Reconcile(ctx, itemID, warehouseID)
	require.NoError(t, err)
	assert.True(t, report.Balanced)
	assert.Equal(t, 11, report.TransactionCount)
}

func TestLedger_WorkflowsReconcile(t *testing.T) {
	testDB := NewTestDB(t)
	ledger, workflows := newLedger(testDB.DB)
	ctx := context.Background()

	itemID, warehouseID := uuid.New(), uuid.New()
	header := appinv.CommandHeader{ItemID: itemID, WarehouseID: warehouseID, ReferenceID: "DOC-1", Actor: "tester"}

	steps := []struct {
		name string
		run  func() (*appinv.MutationResult, error)
	}{
		{"receive into inspection", func() (*appinv.MutationResult, error) {
			return workflows.ReceiveGoods(ctx, appinv.ReceiveGoodsCommand{CommandHeader: header, Quantity: qty(50), RequireInspection: true})
		}},
		{"release from inspection", func() (*appinv.MutationResult, error) {
			return workflows.TransferStatus(ctx, appinv.TransferStatusCommand{
				CommandHeader: header, From: inventory.BucketUnderInspection, To: inventory.BucketAvailable, Quantity: qty(45),
			})
		}},
		{"reject the rest", func() (*appinv.MutationResult, error) {
			return workflows.TransferStatus(ctx, appinv.TransferStatusCommand{
				CommandHeader: header, From: inventory.BucketUnderInspection, To: inventory.BucketRejected, Quantity: qty(5),
			})
		}},
		{"reserve", func() (*appinv.MutationResult, error) {
			return workflows.ReserveStock(ctx, appinv.ReserveStockCommand{CommandHeader: header, Quantity: qty(20)})
		}},
		{"unreserve part", func() (*appinv.MutationResult, error) {
			return workflows.UnreserveStock(ctx, appinv.ReserveStockCommand{CommandHeader: header, Quantity: qty(5)})
		}},
		{"scrap rejected", func() (*appinv.MutationResult, error) {
			return workflows.AdjustStock(ctx, appinv.AdjustStockCommand{
				CommandHeader: header, Bucket: inventory.BucketRejected, Delta: qty(-5), Reason: "scrapped",
			})
		}},
	}
	for _, step := range steps {
		_, err := step.run()
		require.NoError(t, err, step.name)
	}

	snapshot, err := ledger.GetBalance(ctx, itemID, warehouseID)
	require.NoError(t, err)
	assert.True(t, snapshot.Quantities.Available.Equal(qty(30)))
	assert.True(t, snapshot.Quantities.Reserved.Equal(qty(15)))
	assert.True(t, snapshot.Quantities.UnderInspection.IsZero())
	assert.True(t, snapshot.Quantities.Rejected.IsZero())

	report, err := ledger.Reconcile(ctx, itemID, warehouseID)
	require.NoError(t, err)
	assert.True(t, report.Balanced)
	assert.Equal(t, len(steps), report.TransactionCount)

	filter := inventory.TransactionFilter{Filter: shared.DefaultFilter(), ItemID: &itemID, TransactionType: inventory.TransactionTypeTransfer}
	txs, total, err := ledger.ListTransactions(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, txs, 2)
}

func TestLedger_SchemaGuards(t *testing.T) {
	testDB := NewTestDB(t)
	_, workflows := newLedger(testDB.DB)
	ctx := context.Background()

	itemID, warehouseID := uuid.New(), uuid.New()
	_, err := workflows.ReceiveGoods(ctx, appinv.ReceiveGoodsCommand{
		CommandHeader: appinv.CommandHeader{ItemID: itemID, WarehouseID: warehouseID, ReferenceID: "GR-1", Actor: "receiver"},
		Quantity:      qty(10),
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		sql     string
		wantErr string
	}{
		{name: "log rows cannot be updated", sql: "UPDATE inventory_transactions SET quantity = 99", wantErr: "append-only"},
		{name: "log rows cannot be deleted", sql: "DELETE FROM inventory_transactions", wantErr: "append-only"},
		{name: "buckets cannot go negative", sql: "UPDATE inventory_balances SET quantity_available = -1", wantErr: "check constraint"},
		{
			name:    "one balance row per pair",
			sql:     "INSERT INTO inventory_balances (id, item_id, warehouse_id) VALUES ('" + uuid.NewString() + "', '" + itemID.String() + "', '" + warehouseID.String() + "')",
			wantErr: "idx_inventory_balance_item_warehouse",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testDB.DB.Exec(tt.sql).Error
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
