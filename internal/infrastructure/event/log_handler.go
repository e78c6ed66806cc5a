package event

import (
	"context"

	"github.com/erp/manufacturing/internal/domain/inventory"
	"github.com/erp/manufacturing/internal/domain/planning"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/erp/manufacturing/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LogHandler writes every domain event as one structured log line. It is
// the audit trail for balance changes, run outcomes and generated requests.
type LogHandler struct {
	logger *zap.Logger
}

// NewLogHandler creates a LogHandler
func NewLogHandler(log *zap.Logger) *LogHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogHandler{logger: log.Named("audit")}
}

// EventTypes returns nil so the handler receives all events
func (h *LogHandler) EventTypes() []string {
	return nil
}

// Handle logs event with the fields of its concrete type
func (h *LogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	level := zap.InfoLevel
	switch e := event.(type) {
	case *inventory.BalanceChangedEvent:
		fields = append(fields,
			zap.String("item_id", e.ItemID.String()),
			zap.String("warehouse_id", e.WarehouseID.String()),
		)
		for _, c := range e.Changes() {
			fields = append(fields, zap.String("delta_"+c.Bucket.String(), c.Delta.String()))
		}
	case *planning.MRPRunCompletedEvent:
		fields = append(fields,
			zap.String("run_number", e.RunNumber),
			zap.Int("total_requirements", e.TotalRequirements),
			zap.Int("total_shortages", e.TotalShortages),
		)
	case *planning.MRPRunFailedEvent:
		level = zap.WarnLevel
		fields = append(fields,
			zap.String("run_number", e.RunNumber),
			zap.String("cause", e.Cause),
		)
	case *planning.PurchaseRequestGeneratedEvent:
		fields = append(fields,
			zap.String("pr_number", e.PRNumber),
			zap.String("source_run_id", e.SourceRunID.String()),
			zap.String("item_id", e.ItemID.String()),
			zap.String("quantity", e.Quantity.String()),
			zap.Int("requirements", len(e.RequirementIDs)),
		)
	}

	logger.WithTraceContext(ctx, h.logger).Log(level, "Domain event", fields...)
	return nil
}

var _ shared.EventHandler = (*LogHandler)(nil)
