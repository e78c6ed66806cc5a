package planning

import (
	"context"
	"fmt"

	"github.com/erp/manufacturing/internal/domain/catalog"
	"github.com/erp/manufacturing/internal/domain/planning"
	"github.com/erp/manufacturing/internal/domain/production"
	"github.com/erp/manufacturing/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CalculationResult is the outcome of one netting pass
type CalculationResult struct {
	Requirements      []*planning.MRPRequirement
	TotalRequirements int
	TotalShortages    int
	OrdersConsidered  int
	OrdersWithoutBOM  []uuid.UUID
}

// RequirementCalculator nets component demand of open production orders
// against available stock. It never writes the ledger and never locks
// balance rows.
type RequirementCalculator struct {
	logger *zap.Logger
}

// NewRequirementCalculator creates a new RequirementCalculator
func NewRequirementCalculator(log *zap.Logger) *RequirementCalculator {
	if log == nil {
		log = zap.NewNop()
	}
	return &RequirementCalculator{logger: log.Named("mrp.calculator")}
}

type demandLine struct {
	order    production.ProductionOrder
	itemID   uuid.UUID
	required decimal.Decimal
}

// Calculate runs the netting pass for run using repos and persists one
// requirement row per (order, component).
//
// Supply is read once per component before any order is netted, so every
// order sees the same available quantity. Orders are not netted against each
// other; aggregation across orders happens when purchase requests are
// generated.
func (c *RequirementCalculator) Calculate(ctx context.Context, repos TransactionalRepositories, run *planning.MRPRun) (*CalculationResult, error) {
	log := logger.WithTraceContext(ctx, c.logger).With(zap.String("run_number", run.RunNumber))

	orders, err := repos.OrderRepo().FindOpenDueBy(ctx, run.HorizonEnd())
	if err != nil {
		return nil, fmt.Errorf("load open production orders: %w", err)
	}
	result := &CalculationResult{OrdersConsidered: len(orders)}
	if len(orders) == 0 {
		log.Info("No open production orders inside horizon")
		return result, nil
	}

	boms, err := repos.BOMRepo().FindActiveByItems(ctx, distinctOrderItems(orders))
	if err != nil {
		return nil, fmt.Errorf("load active bills of materials: %w", err)
	}

	var (
		lines      []demandLine
		components []uuid.UUID
		seen       = make(map[uuid.UUID]struct{})
	)
	for _, order := range orders {
		bom, ok := boms[order.ItemID]
		if !ok {
			log.Warn("Production order has no active BOM; contributes no demand",
				zap.String("order_number", order.OrderNumber),
				zap.String("item_id", order.ItemID.String()),
			)
			result.OrdersWithoutBOM = append(result.OrdersWithoutBOM, order.ID)
			continue
		}
		for _, d := range bom.Explode(order.QuantityOrdered) {
			lines = append(lines, demandLine{order: order, itemID: d.ItemID, required: d.Quantity})
			if _, dup := seen[d.ItemID]; !dup {
				seen[d.ItemID] = struct{}{}
				components = append(components, d.ItemID)
			}
		}
	}
	if len(lines) == 0 {
		return result, nil
	}

	precision, err := c.loadPrecision(ctx, repos, components, log)
	if err != nil {
		return nil, err
	}

	supply, err := repos.BalanceRepo().SumAvailableByItems(ctx, components)
	if err != nil {
		return nil, fmt.Errorf("read available stock: %w", err)
	}

	for _, line := range lines {
		required := line.required.Round(precisionFor(precision, line.itemID))
		available, ok := supply[line.itemID]
		if !ok {
			available = decimal.Zero
		}
		req, err := planning.NewMRPRequirement(run.ID, line.order.ID, line.itemID, required, available, line.order.RequiredDate)
		if err != nil {
			return nil, err
		}
		result.Requirements = append(result.Requirements, req)
		if req.IsShortage() {
			result.TotalShortages++
		}
	}
	result.TotalRequirements = len(result.Requirements)

	if err := repos.RequirementRepo().CreateBatch(ctx, result.Requirements); err != nil {
		return nil, fmt.Errorf("persist requirements: %w", err)
	}

	log.Info("Netting pass finished",
		zap.Int("orders", result.OrdersConsidered),
		zap.Int("requirements", result.TotalRequirements),
		zap.Int("shortages", result.TotalShortages),
		zap.Int("orders_without_bom", len(result.OrdersWithoutBOM)),
	)
	return result, nil
}

// loadPrecision maps each component to the number of decimal places its unit
// of measure keeps. Components missing from the item master round to the
// column scale.
func (c *RequirementCalculator) loadPrecision(ctx context.Context, repos TransactionalRepositories, ids []uuid.UUID, log *zap.Logger) (map[uuid.UUID]int32, error) {
	items, err := repos.ItemRepo().FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load component items: %w", err)
	}
	out := make(map[uuid.UUID]int32, len(items))
	for _, item := range items {
		out[item.ID] = item.UoMPrecision
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			log.Warn("Component missing from item master", zap.String("item_id", id.String()))
		}
	}
	return out, nil
}

func precisionFor(precision map[uuid.UUID]int32, itemID uuid.UUID) int32 {
	if p, ok := precision[itemID]; ok {
		return p
	}
	return catalog.MaxUoMPrecision
}

func distinctOrderItems(orders []production.ProductionOrder) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		if _, ok := seen[o.ItemID]; ok {
			continue
		}
		seen[o.ItemID] = struct{}{}
		ids = append(ids, o.ItemID)
	}
	return ids
}
