package planning

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/manufacturing/internal/domain/catalog"
	"github.com/erp/manufacturing/internal/domain/planning"
	"github.com/erp/manufacturing/internal/domain/production"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockEventPublisher collects published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) count(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// plant is a small item master with one finished good built from components
type plant struct {
	store     *memStore
	locker    *memLocker
	service   *MRPService
	publisher *MockEventPublisher
	now       time.Time

	product uuid.UUID
}

func newPlant(t *testing.T) *plant {
	t.Helper()
	store := newMemStore()
	locker := newMemLocker()
	scope := NewNoOpTransactionScope(store.repositories())
	lock := NewRunLock(locker, time.Minute, zap.NewNop())
	generator := NewProcurementGenerator(scope, lock, zap.NewNop())
	svc := NewMRPService(scope, NewRequirementCalculator(zap.NewNop()), generator, lock, DefaultServiceConfig(), zap.NewNop())
	publisher := &MockEventPublisher{}
	svc.SetEventPublisher(publisher)

	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	generator.now = svc.now

	p := &plant{store: store, locker: locker, service: svc, publisher: publisher, now: now}
	p.product = p.item(t, "FG-100", 0)
	return p
}

func (p *plant) item(t *testing.T, code string, precision int32) uuid.UUID {
	t.Helper()
	item, err := catalog.NewItem(code, code, "EA", precision)
	require.NoError(t, err)
	p.store.items[item.ID] = *item
	return item.ID
}

func (p *plant) bom(t *testing.T, parent uuid.UUID, lines ...production.BOMItem) {
	t.Helper()
	bom, err := production.NewBillOfMaterials(parent, "v1")
	require.NoError(t, err)
	bom.IsActive = true
	for _, l := range lines {
		require.NoError(t, bom.AddComponent(l.ComponentItemID, l.QuantityPerUnit, l.ScrapPercentage))
	}
	p.store.boms[parent] = bom
}

func (p *plant) order(t *testing.T, number string, item uuid.UUID, qty string, dueInDays int) uuid.UUID {
	t.Helper()
	o, err := production.NewProductionOrder(number, item, dec(qty), p.now.AddDate(0, 0, dueInDays))
	require.NoError(t, err)
	p.store.orders = append(p.store.orders, *o)
	return o.ID
}

func line(component uuid.UUID, perUnit, scrap string) production.BOMItem {
	return production.BOMItem{ComponentItemID: component, QuantityPerUnit: dec(perUnit), ScrapPercentage: dec(scrap)}
}

func (p *plant) rows(runID uuid.UUID) []planning.MRPRequirement {
	rows, _ := (&memRequirementRepo{p.store}).FindByRun(context.Background(), runID)
	return rows
}

func TestExecuteMRP_SharedSupplySnapshot(t *testing.T) {
	p := newPlant(t)
	comp := p.item(t, "C-1", 2)
	p.bom(t, p.product, line(comp, "1", "0"))
	first := p.order(t, "PO-1", p.product, "30", 5)
	second := p.order(t, "PO-2", p.product, "20", 10)
	p.store.available[comp] = dec("10")

	run, err := p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{PlanningHorizonDays: 30})
	require.NoError(t, err)

	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, "MRP-20260302-0001", run.RunNumber)
	assert.Equal(t, 2, run.TotalRequirements)
	assert.Equal(t, 2, run.TotalShortages)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, 1, p.publisher.count(planning.EventTypeMRPRunCompleted))

	byOrder := make(map[uuid.UUID]planning.MRPRequirement)
	for _, r := range p.rows(run.ID) {
		byOrder[r.ProductionOrderID] = r
	}
	require.Len(t, byOrder, 2)
	for id, want := range map[uuid.UUID]string{first: "20", second: "10"} {
		r := byOrder[id]
		assert.True(t, r.AvailableQuantity.Equal(dec("10")), "both orders see the same supply")
		assert.True(t, r.ShortageQuantity.Equal(dec(want)), "shortage %s, want %s", r.ShortageQuantity, want)
		assert.Equal(t, planning.RequirementStatusShortage, r.Status)
	}

	result, err := p.service.GeneratePurchaseRequests(context.Background(), run.ID, GeneratePurchaseRequestsRequest{RequestedBy: "planner"})
	require.NoError(t, err)
	require.Len(t, result.Generated, 1)
	assert.Empty(t, result.Skipped)

	gen := result.Generated[0]
	assert.True(t, gen.Quantity.Equal(dec("30")))
	assert.Equal(t, p.now.AddDate(0, 0, 5), gen.RequiredByDate, "earliest required date wins")
	assert.Len(t, gen.RequirementIDs, 2)
	assert.Equal(t, "PR-20260302-0001", gen.PRNumber)

	pr := p.store.prs[gen.PurchaseRequestID]
	assert.Equal(t, planning.PurchaseRequestStatusPendingApproval, pr.Status)
	require.Len(t, pr.Lines, 1)
	assert.Equal(t, comp, pr.Lines[0].ItemID)
	assert.Equal(t, 1, p.publisher.count(planning.EventTypePurchaseRequestGenerated))
}

func TestExecuteMRP_SufficientStockAndHorizon(t *testing.T) {
	p := newPlant(t)
	comp := p.item(t, "C-1", 0)
	p.bom(t, p.product, line(comp, "2", "0"))
	p.order(t, "PO-1", p.product, "5", 3)
	p.order(t, "PO-LATE", p.product, "100", 60)
	p.store.available[comp] = dec("50")

	run, err := p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{PlanningHorizonDays: 30})
	require.NoError(t, err)

	assert.Equal(t, 1, run.TotalRequirements, "orders past the horizon are ignored")
	assert.Equal(t, 0, run.TotalShortages)
	rows := p.rows(run.ID)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].RequiredQuantity.Equal(dec("10")))
	assert.True(t, rows[0].ShortageQuantity.IsZero())
	assert.Equal(t, planning.RequirementStatusSufficient, rows[0].Status)

	_, err = p.service.GeneratePurchaseRequests(context.Background(), run.ID, GeneratePurchaseRequestsRequest{})
	assert.Equal(t, shared.CodeNoShortages, shared.ErrorCode(err))
}

func TestExecuteMRP_DefaultHorizon(t *testing.T) {
	p := newPlant(t)
	run, err := p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{})
	require.NoError(t, err)
	assert.Equal(t, planning.DefaultPlanningHorizonDays, run.PlanningHorizonDays)
	assert.Equal(t, 0, run.TotalRequirements)
}

func TestExecuteMRP_RejectsHorizon(t *testing.T) {
	tests := []struct {
		name    string
		horizon int
	}{
		{"negative", -1},
		{"past maximum", 366},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPlant(t)
			_, err := p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{PlanningHorizonDays: tt.horizon})
			assert.Equal(t, shared.CodeValidation, shared.ErrorCode(err))
			assert.Empty(t, p.store.runs, "no run is recorded")
		})
	}
}

func TestExecuteMRP_LockHeld(t *testing.T) {
	p := newPlant(t)
	_, ok, err := p.locker.TryLock(context.Background(), RunLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{PlanningHorizonDays: 7})
	assert.Equal(t, shared.CodeStateConflict, shared.ErrorCode(err))
	assert.Empty(t, p.store.runs)
}

func TestExecuteMRP_ReleasesLock(t *testing.T) {
	p := newPlant(t)
	_, err := p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{PlanningHorizonDays: 7})
	require.NoError(t, err)
	_, err = p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{PlanningHorizonDays: 7})
	require.NoError(t, err)
	assert.Len(t, p.store.runs, 2)
	assert.Empty(t, p.locker.owner)
}

func TestExecuteMRP_FailureMarksRunFailed(t *testing.T) {
	p := newPlant(t)
	comp := p.item(t, "C-1", 0)
	p.bom(t, p.product, line(comp, "1", "0"))
	p.order(t, "PO-1", p.product, "5", 3)
	p.store.createBatchErr = errors.New("disk full")

	_, err := p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{PlanningHorizonDays: 7})
	require.Error(t, err)

	require.Len(t, p.store.runs, 1)
	for _, run := range p.store.runs {
		assert.Equal(t, planning.RunStatusFailed, run.Status)
		assert.Contains(t, run.Notes, "disk full")
		assert.NotNil(t, run.CompletedAt)
	}
	assert.Equal(t, 1, p.publisher.count(planning.EventTypeMRPRunFailed))
	assert.Equal(t, 0, p.publisher.count(planning.EventTypeMRPRunCompleted))
	assert.Empty(t, p.locker.owner, "lock released after failure")
}

func TestExecuteMRP_FailsAbandonedRuns(t *testing.T) {
	p := newPlant(t)
	abandoned, err := planning.NewMRPRun("MRP-20260302-0007", 7, p.now.Add(-90*time.Second))
	require.NoError(t, err)
	live, err := planning.NewMRPRun("MRP-20260302-0008", 7, p.now.Add(-30*time.Second))
	require.NoError(t, err)
	p.store.runs[abandoned.ID] = *abandoned
	p.store.runs[live.ID] = *live

	run, err := p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{PlanningHorizonDays: 7})
	require.NoError(t, err)

	tests := []struct {
		name string
		id   uuid.UUID
		want planning.RunStatus
	}{
		{"older than lock ttl", abandoned.ID, planning.RunStatusFailed},
		{"within lock ttl", live.ID, planning.RunStatusRunning},
		{"new run", run.ID, planning.RunStatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.store.runs[tt.id].Status)
		})
	}
	assert.Contains(t, p.store.runs[abandoned.ID].Notes, "abandoned")
	assert.NotNil(t, p.store.runs[abandoned.ID].CompletedAt)
	assert.Equal(t, 1, p.publisher.count(planning.EventTypeMRPRunFailed))
	assert.Empty(t, p.locker.owner)
}

func TestDeleteMRPRun(t *testing.T) {
	t.Run("removes run and rows", func(t *testing.T) {
		p := newPlant(t)
		comp := p.item(t, "C-1", 0)
		p.bom(t, p.product, line(comp, "1", "0"))
		p.order(t, "PO-1", p.product, "5", 3)

		run, err := p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{PlanningHorizonDays: 7})
		require.NoError(t, err)
		require.NotEmpty(t, p.rows(run.ID))

		require.NoError(t, p.service.DeleteMRPRun(context.Background(), run.ID))
		assert.Empty(t, p.store.runs)
		assert.Empty(t, p.rows(run.ID))

		_, err = p.service.GetMRPRun(context.Background(), run.ID)
		assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
	})

	t.Run("rejected once purchase requests exist", func(t *testing.T) {
		p := newPlant(t)
		comp := p.item(t, "C-1", 0)
		p.bom(t, p.product, line(comp, "1", "0"))
		p.order(t, "PO-1", p.product, "5", 3)

		run, err := p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{PlanningHorizonDays: 7})
		require.NoError(t, err)
		_, err = p.service.GeneratePurchaseRequests(context.Background(), run.ID, GeneratePurchaseRequestsRequest{})
		require.NoError(t, err)

		err = p.service.DeleteMRPRun(context.Background(), run.ID)
		assert.Equal(t, shared.CodeStateConflict, shared.ErrorCode(err))
		assert.Len(t, p.store.runs, 1)
	})

	t.Run("rejected while running", func(t *testing.T) {
		p := newPlant(t)
		run, err := planning.NewMRPRun("MRP-20260302-0009", 7, p.now)
		require.NoError(t, err)
		p.store.runs[run.ID] = *run

		err = p.service.DeleteMRPRun(context.Background(), run.ID)
		assert.Equal(t, shared.CodeStateConflict, shared.ErrorCode(err))
	})

	t.Run("abandoned running run can be removed", func(t *testing.T) {
		p := newPlant(t)
		run, err := planning.NewMRPRun("MRP-20260302-0009", 7, p.now.Add(-2*time.Minute))
		require.NoError(t, err)
		p.store.runs[run.ID] = *run

		require.NoError(t, p.service.DeleteMRPRun(context.Background(), run.ID))
		assert.Empty(t, p.store.runs)
	})

	t.Run("unknown run", func(t *testing.T) {
		p := newPlant(t)
		err := p.service.DeleteMRPRun(context.Background(), uuid.New())
		assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
	})
}

func TestListRequirementsAndSummary(t *testing.T) {
	p := newPlant(t)
	short := p.item(t, "C-SHORT", 0)
	plenty := p.item(t, "C-PLENTY", 0)
	p.bom(t, p.product, line(short, "1", "0"), line(plenty, "1", "0"))
	p.order(t, "PO-1", p.product, "5", 3)
	p.order(t, "PO-2", p.product, "10", 4)
	p.store.available[plenty] = dec("100")

	run, err := p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{PlanningHorizonDays: 7})
	require.NoError(t, err)

	all, err := p.service.ListRequirements(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	shortages, err := p.service.ListRequirements(context.Background(), run.ID, planning.RequirementStatusShortage)
	require.NoError(t, err)
	assert.Len(t, shortages, 2)

	_, err = p.service.ListRequirements(context.Background(), run.ID, "bogus")
	assert.Equal(t, shared.CodeValidation, shared.ErrorCode(err))

	_, err = p.service.ListRequirements(context.Background(), uuid.New())
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))

	summary, err := p.service.GetRunSummary(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SufficientCount)
	assert.Equal(t, 2, summary.ShortageCount)
	assert.Equal(t, 0, summary.PRCreatedCount)
	require.Len(t, summary.UnresolvedShortages, 1)
	assert.Equal(t, short, summary.UnresolvedShortages[0].ItemID)
	assert.True(t, summary.UnresolvedShortages[0].TotalShortage.Equal(dec("15")))
	assert.Equal(t, 2, summary.UnresolvedShortages[0].RequirementCount)

	_, err = p.service.GeneratePurchaseRequests(context.Background(), run.ID, GeneratePurchaseRequestsRequest{})
	require.NoError(t, err)
	summary, err = p.service.GetRunSummary(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PRCreatedCount)
	assert.Empty(t, summary.UnresolvedShortages)
}

func TestListMRPRuns(t *testing.T) {
	p := newPlant(t)
	for i := 0; i < 3; i++ {
		_, err := p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{PlanningHorizonDays: 7})
		require.NoError(t, err)
	}

	page, err := p.service.ListMRPRuns(context.Background(), RunListFilter{Status: "completed", PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
}

func TestExecuteMRP_ArchivesSnapshot(t *testing.T) {
	p := newPlant(t)
	comp := p.item(t, "C-1", 0)
	p.bom(t, p.product, line(comp, "1", "0"))
	p.order(t, "PO-1", p.product, "5", 3)
	store := &memObjectStore{}
	p.service.SetArchiver(NewRunArchiver(store, ""))

	run, err := p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{PlanningHorizonDays: 7})
	require.NoError(t, err)

	body, ok := store.objects["mrp-runs/2026/03/02/"+run.RunNumber+".json"]
	require.True(t, ok)
	var snapshot RunSnapshot
	require.NoError(t, json.Unmarshal(body, &snapshot))
	assert.Equal(t, run.ID, snapshot.Run.ID)
	assert.Len(t, snapshot.Requirements, 1)
}

func TestExecuteMRP_ArchiveFailureKeepsRun(t *testing.T) {
	p := newPlant(t)
	p.service.SetArchiver(NewRunArchiver(&memObjectStore{err: errors.New("bucket gone")}, "archive"))

	run, err := p.service.ExecuteMRP(context.Background(), ExecuteMRPRequest{PlanningHorizonDays: 7})
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
}
