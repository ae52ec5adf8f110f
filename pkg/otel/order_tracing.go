package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Span names
	SpanPlaceOrder    = "place_order"
	SpanCancelOrder   = "cancel_order"
	SpanSettleOrder   = "settle_order"
	SpanScanCrossings = "scan_crossings"
	SpanSendEvent     = "send_event"

	// Attribute keys
	AttributeOrderID      = "order.id"
	AttributeOrderOwner   = "order.owner"
	AttributeOrderType    = "order.type"
	AttributeOrderAmount  = "order.amount_in"
	AttributeOrderStatus  = "order.status"
	AttributeTriggerTick  = "order.trigger_tick"
	AttributePoolID       = "pool.id"
	AttributeFromTick     = "scan.from_tick"
	AttributeToTick       = "scan.to_tick"
	AttributeCrossedCount = "scan.crossed_count"
	AttributeSettler      = "settle.settler"
	AttributeDeliveredQty = "settle.delivered"
)

// StartOrderSpan starts a new span for an order lifecycle operation
func StartOrderSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	var tracer trace.Tracer

	// Use appropriate tracer based on the span name
	switch name {
	case SpanPlaceOrder, SpanCancelOrder:
		tracer = GetOrderServiceTracer()
	case SpanSettleOrder, SpanScanCrossings, SpanSendEvent:
		tracer = GetTriggerEngineTracer()
	default:
		tracer = GetOrderServiceTracer()
	}

	if tracer == nil {
		return ctx, nil
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddAttributes adds attributes to a span
func AddAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}
