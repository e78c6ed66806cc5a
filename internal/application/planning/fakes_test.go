package planning

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/erp/manufacturing/internal/domain/catalog"
	"github.com/erp/manufacturing/internal/domain/inventory"
	"github.com/erp/manufacturing/internal/domain/planning"
	"github.com/erp/manufacturing/internal/domain/production"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore backs every in-memory repository of a test
type memStore struct {
	mu           sync.Mutex
	runs         map[uuid.UUID]planning.MRPRun
	requirements map[uuid.UUID]planning.MRPRequirement
	prs          map[uuid.UUID]planning.PurchaseRequest
	orders       []production.ProductionOrder
	boms         map[uuid.UUID]*production.BillOfMaterials
	items        map[uuid.UUID]catalog.Item
	available    map[uuid.UUID]decimal.Decimal

	// hooks for failure injection
	createBatchErr error
	markHook       func(ids []uuid.UUID)
}

func newMemStore() *memStore {
	return &memStore{
		runs:         make(map[uuid.UUID]planning.MRPRun),
		requirements: make(map[uuid.UUID]planning.MRPRequirement),
		prs:          make(map[uuid.UUID]planning.PurchaseRequest),
		boms:         make(map[uuid.UUID]*production.BillOfMaterials),
		items:        make(map[uuid.UUID]catalog.Item),
		available:    make(map[uuid.UUID]decimal.Decimal),
	}
}

func (s *memStore) repositories() Repositories {
	return Repositories{
		Runs:             &memRunRepo{s},
		Requirements:     &memRequirementRepo{s},
		PurchaseRequests: &memPRRepo{s},
		Orders:           &memOrderRepo{s},
		BOMs:             &memBOMRepo{s},
		Items:            &memItemRepo{s},
		Balances:         &memBalanceRepo{s},
	}
}

type memRunRepo struct{ s *memStore }

func (r *memRunRepo) Create(ctx context.Context, run *planning.MRPRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.runs[run.ID] = *run
	return nil
}

func (r *memRunRepo) SaveWithLock(ctx context.Context, run *planning.MRPRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.runs[run.ID]
	if !ok || stored.Version != run.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	cp := *run
	cp.ClearDomainEvents()
	r.s.runs[run.ID] = cp
	return nil
}

func (r *memRunRepo) FindByID(ctx context.Context, id uuid.UUID) (*planning.MRPRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run, ok := r.s.runs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	run.ClearDomainEvents()
	return &run, nil
}

func (r *memRunRepo) FindAll(ctx context.Context, filter planning.RunFilter) ([]planning.MRPRun, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []planning.MRPRun
	for _, run := range r.s.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunDate.After(out[j].RunDate) })
	return out, int64(len(out)), nil
}

func (r *memRunRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.runs[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.s.runs, id)
	return nil
}

func (r *memRunRepo) NextSequence(ctx context.Context, day time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.runs) + 1, nil
}

type memRequirementRepo struct{ s *memStore }

func (r *memRequirementRepo) CreateBatch(ctx context.Context, reqs []*planning.MRPRequirement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createBatchErr != nil {
		return r.s.createBatchErr
	}
	for _, req := range reqs {
		r.s.requirements[req.ID] = *req
	}
	return nil
}

func (r *memRequirementRepo) FindByRun(ctx context.Context, runID uuid.UUID, statuses ...planning.RequirementStatus) ([]planning.MRPRequirement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []planning.MRPRequirement
	for _, req := range r.s.requirements {
		if req.MRPRunID != runID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, req.Status) {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID.String() < out[j].ItemID.String()
		}
		return out[i].ProductionOrderID.String() < out[j].ProductionOrderID.String()
	})
	return out, nil
}

func (r *memRequirementRepo) CountWithPR(ctx context.Context, runID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, req := range r.s.requirements {
		if req.MRPRunID == runID && req.PRID != nil {
			n++
		}
	}
	return n, nil
}

func (r *memRequirementRepo) MarkPRCreated(ctx context.Context, ids []uuid.UUID, prID uuid.UUID) (int64, error) {
	if r.s.markHook != nil {
		r.s.markHook(ids)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		req, ok := r.s.requirements[id]
		if !ok || req.Status != planning.RequirementStatusShortage {
			continue
		}
		if err := req.MarkPRCreated(prID); err != nil {
			return n, err
		}
		r.s.requirements[id] = req
		n++
	}
	return n, nil
}

func (r *memRequirementRepo) DeleteByRun(ctx context.Context, runID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, req := range r.s.requirements {
		if req.MRPRunID == runID {
			delete(r.s.requirements, id)
		}
	}
	return nil
}

type memPRRepo struct{ s *memStore }

func (r *memPRRepo) Create(ctx context.Context, pr *planning.PurchaseRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.prs[pr.ID] = *pr
	return nil
}

func (r *memPRRepo) FindByID(ctx context.Context, id uuid.UUID) (*planning.PurchaseRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pr, ok := r.s.prs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &pr, nil
}

func (r *memPRRepo) FindBySourceRun(ctx context.Context, runID uuid.UUID) ([]planning.PurchaseRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []planning.PurchaseRequest
	for _, pr := range r.s.prs {
		if pr.SourceRunID != nil && *pr.SourceRunID == runID {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (r *memPRRepo) NextSequence(ctx context.Context, day time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.prs) + 1, nil
}

type memOrderRepo struct{ s *memStore }

func (r *memOrderRepo) FindOpenDueBy(ctx context.Context, dueBy time.Time) ([]production.ProductionOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []production.ProductionOrder
	for _, o := range r.s.orders {
		if o.Status.IsOpen() && !o.RequiredDate.After(dueBy) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequiredDate.Equal(out[j].RequiredDate) {
			return out[i].RequiredDate.Before(out[j].RequiredDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *memOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*production.ProductionOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memOrderRepo) Save(ctx context.Context, order *production.ProductionOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.orders = append(r.s.orders, *order)
	return nil
}

type memBOMRepo struct{ s *memStore }

func (r *memBOMRepo) FindActiveByItem(ctx context.Context, itemID uuid.UUID) (*production.BillOfMaterials, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bom, ok := r.s.boms[itemID]
	if !ok || !bom.IsActive {
		return nil, shared.ErrNotFound
	}
	return bom, nil
}

func (r *memBOMRepo) FindActiveByItems(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]*production.BillOfMaterials, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[uuid.UUID]*production.BillOfMaterials)
	for _, id := range itemIDs {
		if bom, ok := r.s.boms[id]; ok && bom.IsActive {
			out[id] = bom
		}
	}
	return out, nil
}

func (r *memBOMRepo) Save(ctx context.Context, bom *production.BillOfMaterials) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.boms[bom.ItemID] = bom
	return nil
}

type memItemRepo struct{ s *memStore }

func (r *memItemRepo) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &item, nil
}

func (r *memItemRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []catalog.Item
	for _, id := range ids {
		if item, ok := r.s.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memItemRepo) Save(ctx context.Context, item *catalog.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.items[item.ID] = *item
	return nil
}

// memBalanceRepo only serves the netting read
type memBalanceRepo struct{ s *memStore }

var errReadOnly = errors.New("balance repository is read-only in planning tests")

func (r *memBalanceRepo) FindByItemAndWarehouse(ctx context.Context, itemID, warehouseID uuid.UUID) (*inventory.InventoryBalance, error) {
	return nil, errReadOnly
}

func (r *memBalanceRepo) FindByItemAndWarehouseForUpdate(ctx context.Context, itemID, warehouseID uuid.UUID) (*inventory.InventoryBalance, error) {
	return nil, errReadOnly
}

func (r *memBalanceRepo) GetOrCreate(ctx context.Context, itemID, warehouseID uuid.UUID) (*inventory.InventoryBalance, bool, error) {
	return nil, false, errReadOnly
}

func (r *memBalanceRepo) SaveWithLock(ctx context.Context, balance *inventory.InventoryBalance) error {
	return errReadOnly
}

func (r *memBalanceRepo) SumAvailableByItems(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[uuid.UUID]decimal.Decimal)
	for _, id := range itemIDs {
		if q, ok := r.s.available[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func containsStatus(statuses []planning.RequirementStatus, s planning.RequirementStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// memLocker is a single-process shared.Locker
type memLocker struct {
	mu    sync.Mutex
	owner map[string]string
}

func newMemLocker() *memLocker {
	return &memLocker{owner: make(map[string]string)}
}

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.owner[key]; held {
		return "", false, nil
	}
	token := uuid.NewString()
	l.owner[key] = token
	return token, true, nil
}

func (l *memLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner[key] == token {
		delete(l.owner, key)
	}
	return nil
}

// memObjectStore records uploads
type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	return nil
}
