package planning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/manufacturing/internal/domain/catalog"
	"github.com/erp/manufacturing/internal/domain/planning"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/erp/manufacturing/internal/infrastructure/logger"
	"github.com/erp/manufacturing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Reasons a shortage group is skipped during generation
const (
	SkipReasonItemNotFound  = "item_not_found"
	SkipReasonItemDeleted   = "item_deleted"
	SkipReasonStateConflict = "state_conflict"
	SkipReasonFailed        = "failed"
)

// GeneratedRequest describes one purchase request created from a shortage group
type GeneratedRequest struct {
	PurchaseRequestID uuid.UUID       `json:"purchase_request_id"`
	PRNumber          string          `json:"pr_number"`
	ItemID            uuid.UUID       `json:"item_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	RequiredByDate    time.Time       `json:"required_by_date"`
	RequirementIDs    []uuid.UUID     `json:"requirement_ids"`
}

// SkippedItem is a shortage group that did not produce a purchase request.
// Its requirement rows stay in shortage status and are picked up by the next
// generation attempt.
type SkippedItem struct {
	ItemID   uuid.UUID       `json:"item_id"`
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason"`
	Message  string          `json:"message"`
}

// GenerationResult is the outcome of generatePRsFromMRP
type GenerationResult struct {
	RunID     uuid.UUID          `json:"run_id"`
	RunNumber string             `json:"run_number"`
	Generated []GeneratedRequest `json:"generated"`
	Skipped   []SkippedItem      `json:"skipped"`
}

// ProcurementGenerator turns the unresolved shortages of a completed run into
// purchase requests, one per item.
type ProcurementGenerator struct {
	txScope        TransactionScope
	lock           *RunLock
	logger         *zap.Logger
	eventPublisher shared.EventPublisher
	metrics        *telemetry.BusinessMetrics
	now            func() time.Time
}

// NewProcurementGenerator creates a new ProcurementGenerator
func NewProcurementGenerator(txScope TransactionScope, lock *RunLock, log *zap.Logger) *ProcurementGenerator {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProcurementGenerator{
		txScope: txScope,
		lock:    lock,
		logger:  log.Named("mrp.procurement"),
		now:     time.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (g *ProcurementGenerator) SetEventPublisher(publisher shared.EventPublisher) {
	g.eventPublisher = publisher
}

// SetBusinessMetrics sets the metrics recorder
func (g *ProcurementGenerator) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	g.metrics = bm
}

// Generate creates purchase requests for the shortage rows of a run.
//
// Rows already consumed are not seen again, so calling Generate twice on the
// same run creates no duplicates: the second call returns NO_SHORTAGES. Each
// item group is committed on its own; a failed group is reported in
// Skipped and never rolls back another group.
func (g *ProcurementGenerator) Generate(ctx context.Context, runID uuid.UUID, requestedBy string) (_ *GenerationResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "mrp", "generate_purchase_requests",
		attribute.String(telemetry.SpanAttrRunID, runID.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	release, err := g.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		run    *planning.MRPRun
		groups []planning.ShortageGroup
		items  map[uuid.UUID]catalog.Item
	)
	err = g.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		run, err = repos.RunRepo().FindByID(ctx, runID)
		if err != nil {
			return err
		}
		if err := run.EnsureGeneratable(); err != nil {
			return err
		}
		rows, err := repos.RequirementRepo().FindByRun(ctx, runID, planning.RequirementStatusShortage)
		if err != nil {
			return err
		}
		groups = planning.GroupShortages(rows)
		if len(groups) == 0 {
			return shared.NewDomainError(shared.CodeNoShortages,
				fmt.Sprintf("MRP run %s has no unresolved shortages", run.RunNumber))
		}
		items, err = loadItems(ctx, repos.ItemRepo(), groups)
		return err
	})
	if err != nil {
		return nil, err
	}

	log := logger.WithTraceContext(ctx, g.logger).With(zap.String("run_number", run.RunNumber))
	result := &GenerationResult{RunID: run.ID, RunNumber: run.RunNumber}

	for _, group := range groups {
		item, ok := items[group.ItemID]
		switch {
		case !ok:
			log.Warn("Skipping shortage for unknown item", zap.String("item_id", group.ItemID.String()))
			result.Skipped = append(result.Skipped, skipped(group, SkipReasonItemNotFound, "item does not exist"))
			continue
		case item.IsDeleted():
			log.Warn("Skipping shortage for deleted item",
				zap.String("item_id", group.ItemID.String()),
				zap.String("item_code", item.Code),
			)
			result.Skipped = append(result.Skipped, skipped(group, SkipReasonItemDeleted,
				fmt.Sprintf("item %s is deleted", item.Code)))
			continue
		}

		generated, pr, err := g.generateGroup(ctx, run, group, requestedBy)
		if err != nil {
			reason := SkipReasonFailed
			if errors.Is(err, shared.ErrStateConflict) {
				reason = SkipReasonStateConflict
			}
			log.Warn("Purchase request generation failed for item",
				zap.String("item_id", group.ItemID.String()),
				zap.String("reason", reason),
				zap.Error(err),
			)
			result.Skipped = append(result.Skipped, skipped(group, reason, err.Error()))
			continue
		}
		g.publishDomainEvents(ctx, pr)
		result.Generated = append(result.Generated, *generated)
	}

	if g.metrics != nil {
		g.metrics.RecordPurchaseRequests(ctx, len(result.Generated))
		for _, s := range result.Skipped {
			g.metrics.RecordGenerationSkipped(ctx, s.Reason, 1)
		}
	}
	span.SetAttributes(attribute.Int(telemetry.SpanAttrPurchaseReqs, len(result.Generated)))
	log.Info("Purchase request generation finished",
		zap.Int("generated", len(result.Generated)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// generateGroup writes one purchase request and consumes its requirement
// rows in a single transaction. If another writer consumed any of the rows
// first, the whole group is rolled back.
func (g *ProcurementGenerator) generateGroup(
	ctx context.Context,
	run *planning.MRPRun,
	group planning.ShortageGroup,
	requestedBy string,
) (*GeneratedRequest, *planning.PurchaseRequest, error) {
	var pr *planning.PurchaseRequest
	err := g.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		day := g.now().UTC()
		seq, err := repos.PurchaseRequestRepo().NextSequence(ctx, day)
		if err != nil {
			return err
		}
		prNumber := planning.FormatDocumentNumber(planning.PurchaseRequestNumberPrefix, day, seq)
		pr, err = planning.NewPurchaseRequestFromShortage(prNumber, run, group, requestedBy)
		if err != nil {
			return err
		}
		if err := repos.PurchaseRequestRepo().Create(ctx, pr); err != nil {
			return err
		}
		affected, err := repos.RequirementRepo().MarkPRCreated(ctx, group.RequirementIDs, pr.ID)
		if err != nil {
			return err
		}
		if affected != int64(len(group.RequirementIDs)) {
			return shared.NewDomainError(shared.CodeStateConflict,
				fmt.Sprintf("%d of %d requirements were already consumed", int64(len(group.RequirementIDs))-affected, len(group.RequirementIDs)))
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &GeneratedRequest{
		PurchaseRequestID: pr.ID,
		PRNumber:          pr.PRNumber,
		ItemID:            group.ItemID,
		Quantity:          group.TotalShortage,
		RequiredByDate:    group.RequiredByDate,
		RequirementIDs:    group.RequirementIDs,
	}, pr, nil
}

func (g *ProcurementGenerator) publishDomainEvents(ctx context.Context, pr *planning.PurchaseRequest) {
	if g.eventPublisher == nil {
		return
	}
	events := pr.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	_ = g.eventPublisher.Publish(ctx, events...)
	pr.ClearDomainEvents()
}

func loadItems(ctx context.Context, repo catalog.ItemRepository, groups []planning.ShortageGroup) (map[uuid.UUID]catalog.Item, error) {
	ids := make([]uuid.UUID, len(groups))
	for i, grp := range groups {
		ids[i] = grp.ItemID
	}
	found, err := repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load shortage items: %w", err)
	}
	out := make(map[uuid.UUID]catalog.Item, len(found))
	for _, item := range found {
		out[item.ID] = item
	}
	return out, nil
}

func skipped(group planning.ShortageGroup, reason, message string) SkippedItem {
	return SkippedItem{
		ItemID:   group.ItemID,
		Quantity: group.TotalShortage,
		Reason:   reason,
		Message:  message,
	}
}
