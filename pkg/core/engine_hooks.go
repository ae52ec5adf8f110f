package core

import (
	"context"

	"github.com/erain9/tickorder/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Permissions returns the engine's capability bitmap. The engine only needs
// the after-swap callback; the host must not invoke anything else.
func (e *Engine) Permissions() HookPermissions {
	return PermissionsFor(HookAfterSwap)
}

// AfterSwap runs the tick-crossing scan once a trade's price effect is
// final. The new tick is aligned down to the pool's spacing, every bucket
// between the cursor and the aligned tick on the side opposite the trade is
// read, and the collected order ids are reported as one batch. The cursor
// advances to the aligned tick unconditionally, even when no bucket held
// orders, so the next trade's range starts from the true last-seen price.
func (e *Engine) AfterSwap(ctx context.Context, tradeZeroForOne bool, newTick int64) (*ScanReport, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanScanCrossings,
		attribute.String(otel.AttributePoolID, e.pool.ID),
		attribute.Bool("trade.zero_for_one", tradeZeroForOne),
	)
	defer func() {
		if span != nil {
			span.End()
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	curr := AlignTick(newTick, e.pool.TickSpacing)
	ids := scanCrossings(e.store, e.cursor, curr, e.pool.TickSpacing, tradeZeroForOne)

	report := &ScanReport{
		PoolID:          e.pool.ID,
		FromTick:        e.cursor,
		ToTick:          curr,
		TradeZeroForOne: tradeZeroForOne,
		OrderIDs:        ids,
	}

	e.cursor = curr

	otel.AddAttributes(span,
		attribute.Int64(otel.AttributeFromTick, report.FromTick),
		attribute.Int64(otel.AttributeToTick, report.ToTick),
		attribute.Int(otel.AttributeCrossedCount, len(ids)),
	)
	otel.GetOrderMetrics().RecordCrossed(ctx, int64(len(ids)))

	if !report.Empty() {
		e.emitCrossedEvent(ctx, report)
	}

	return report, nil
}

// Unsupported hooks. Each signals "not implemented" distinctly from a no-op
// so the host can tell a capability mismatch from deliberate silence.

// BeforeInitialize is not supported by this hook
func (e *Engine) BeforeInitialize(ctx context.Context, tick int64) error {
	return ErrNotImplemented
}

// AfterInitialize is not supported by this hook
func (e *Engine) AfterInitialize(ctx context.Context, tick int64) error {
	return ErrNotImplemented
}

// BeforeAddLiquidity is not supported by this hook
func (e *Engine) BeforeAddLiquidity(ctx context.Context) error {
	return ErrNotImplemented
}

// AfterAddLiquidity is not supported by this hook
func (e *Engine) AfterAddLiquidity(ctx context.Context) error {
	return ErrNotImplemented
}

// BeforeRemoveLiquidity is not supported by this hook
func (e *Engine) BeforeRemoveLiquidity(ctx context.Context) error {
	return ErrNotImplemented
}

// AfterRemoveLiquidity is not supported by this hook
func (e *Engine) AfterRemoveLiquidity(ctx context.Context) error {
	return ErrNotImplemented
}

// BeforeSwap is not supported by this hook
func (e *Engine) BeforeSwap(ctx context.Context, tradeZeroForOne bool) error {
	return ErrNotImplemented
}

// BeforeDonate is not supported by this hook
func (e *Engine) BeforeDonate(ctx context.Context) error {
	return ErrNotImplemented
}

// AfterDonate is not supported by this hook
func (e *Engine) AfterDonate(ctx context.Context) error {
	return ErrNotImplemented
}

var _ PoolHooks = (*Engine)(nil)
