package telemetry

import (
	"context"
	"errors"

	"github.com/erp/manufacturing/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of service spans
const TracerName = "erp-manufacturing"

// Span attribute keys set by the application services.
const (
	SpanAttrRunID           = "mrp.run_id"
	SpanAttrHorizonDays     = "mrp.horizon_days"
	SpanAttrRequirements    = "mrp.requirements"
	SpanAttrShortages       = "mrp.shortages"
	SpanAttrPurchaseReqs    = "mrp.purchase_requests"
	SpanAttrItemID          = "inventory.item_id"
	SpanAttrWarehouseID     = "inventory.warehouse_id"
	SpanAttrTransactionType = "inventory.transaction_type"
	SpanAttrErrorCode       = "error.code"
)

// StartServiceSpan starts a span named {service}.{method} from the global
// tracer provider. The caller ends the span.
func StartServiceSpan(ctx context.Context, service, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, service+"."+method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records err on span, if any, and ends it. Domain errors carry
// their code as an attribute; only non-domain errors set the error status.
func EndSpan(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		span.SetAttributes(attribute.String(SpanAttrErrorCode, domainErr.Code))
		span.AddEvent("domain_rejection", trace.WithAttributes(attribute.String("message", domainErr.Message)))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
