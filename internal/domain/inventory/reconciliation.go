package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Replay folds a transaction log from zero into bucket quantities.
func Replay(txs []InventoryTransaction) BucketQuantities {
	q := ZeroQuantities()
	for i := range txs {
		for _, eff := range txs[i].Effects() {
			q = q.Add(eff.Bucket, eff.Delta)
		}
	}
	return q
}

// BucketDrift compares the replayed and stored value of one bucket
type BucketDrift struct {
	Bucket   Bucket          `json:"bucket"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
	Drift    decimal.Decimal `json:"drift"`
}

// ReconciliationReport is the result of replaying the log of one pair
type ReconciliationReport struct {
	ItemID           uuid.UUID     `json:"item_id"`
	WarehouseID      uuid.UUID     `json:"warehouse_id"`
	TransactionCount int           `json:"transaction_count"`
	Buckets          []BucketDrift `json:"buckets"`
	Balanced         bool          `json:"balanced"`
}

// Reconcile replays txs and compares the result with the stored snapshot.
func Reconcile(snapshot BalanceSnapshot, txs []InventoryTransaction) ReconciliationReport {
	expected := Replay(txs)
	report := ReconciliationReport{
		ItemID:           snapshot.ItemID,
		WarehouseID:      snapshot.WarehouseID,
		TransactionCount: len(txs),
		Balanced:         true,
	}
	for _, b := range AllBuckets() {
		exp := expected.Get(b)
		act := snapshot.Quantities.Get(b)
		drift := act.Sub(exp)
		if !drift.IsZero() {
			report.Balanced = false
		}
		report.Buckets = append(report.Buckets, BucketDrift{Bucket: b, Expected: exp, Actual: act, Drift: drift})
	}
	return report
}
