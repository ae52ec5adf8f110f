package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/erain9/tickorder/pkg/otel"
)

var (
	// orderMetrics holds the singleton instance
	orderMetrics *OrderMetrics
	// meter is the global meter for order lifecycle metrics
	meter = otel.GetMeterProvider().Meter(instrumentationName)
)

// OrderMetrics holds metrics for order lifecycle operations
type OrderMetrics struct {
	placedTotal   metric.Int64Counter
	canceledTotal metric.Int64Counter
	executedTotal metric.Int64Counter
	crossedTotal  metric.Int64Counter
}

// GetOrderMetrics returns the OrderMetrics singleton
func GetOrderMetrics() *OrderMetrics {
	if orderMetrics == nil {
		placedTotal, err := meter.Int64Counter(
			"orders.placed.total",
			metric.WithDescription("Total number of orders placed"),
			metric.WithUnit("{order}"),
		)
		if err != nil {
			return &OrderMetrics{}
		}

		canceledTotal, err := meter.Int64Counter(
			"orders.canceled.total",
			metric.WithDescription("Total number of orders canceled"),
			metric.WithUnit("{order}"),
		)
		if err != nil {
			return &OrderMetrics{}
		}

		executedTotal, err := meter.Int64Counter(
			"orders.executed.total",
			metric.WithDescription("Total number of orders settled"),
			metric.WithUnit("{order}"),
		)
		if err != nil {
			return &OrderMetrics{}
		}

		crossedTotal, err := meter.Int64Counter(
			"orders.crossed.total",
			metric.WithDescription("Total number of orders surfaced by tick-crossing scans"),
			metric.WithUnit("{order}"),
		)
		if err != nil {
			return &OrderMetrics{}
		}

		orderMetrics = &OrderMetrics{
			placedTotal:   placedTotal,
			canceledTotal: canceledTotal,
			executedTotal: executedTotal,
			crossedTotal:  crossedTotal,
		}
	}

	return orderMetrics
}

// RecordPlaced increments the placed orders counter
func (m *OrderMetrics) RecordPlaced(ctx context.Context, orderType string) {
	if m.placedTotal == nil {
		return
	}
	m.placedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("order.type", orderType)))
}

// RecordCanceled increments the canceled orders counter
func (m *OrderMetrics) RecordCanceled(ctx context.Context, orderType string) {
	if m.canceledTotal == nil {
		return
	}
	m.canceledTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("order.type", orderType)))
}

// RecordExecuted increments the executed orders counter
func (m *OrderMetrics) RecordExecuted(ctx context.Context, orderType string) {
	if m.executedTotal == nil {
		return
	}
	m.executedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("order.type", orderType)))
}

// RecordCrossed adds to the crossed orders counter
func (m *OrderMetrics) RecordCrossed(ctx context.Context, count int64) {
	if m.crossedTotal == nil {
		return
	}
	m.crossedTotal.Add(ctx, count)
}
