package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erain9/tickorder/pkg/custody"
	"github.com/erain9/tickorder/pkg/messaging"
	"github.com/erain9/tickorder/pkg/otel"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SettlementCallback is the surface the engine invokes on the settling party
// during Settle. The input asset has already been forwarded to the settler
// when the callback runs; the settler is expected to have delivered the
// counter-asset to the engine account by the time it returns. The delivered
// amount is advisory: the engine forwards whatever counter-asset balance
// arrived, and the settler's own logic enforces any expected amount.
type SettlementCallback interface {
	Settle(ctx context.Context, tokenIn, tokenOut string, amountIn fpdecimal.Decimal, data []byte) error
}

// SettlementCallbackFunc adapts a function to the SettlementCallback interface
type SettlementCallbackFunc func(ctx context.Context, tokenIn, tokenOut string, amountIn fpdecimal.Decimal, data []byte) error

// Settle calls the wrapped function
func (f SettlementCallbackFunc) Settle(ctx context.Context, tokenIn, tokenOut string, amountIn fpdecimal.Decimal, data []byte) error {
	return f(ctx, tokenIn, tokenOut, amountIn, data)
}

// Engine orchestrates the conditional-order lifecycle for one pool:
// placement, cancellation, settlement and the tick-crossing scan that runs
// after every trade. Public operations are serialized by the engine mutex,
// so each one commits fully before the next observes pool state.
type Engine struct {
	mu       sync.Mutex
	pool     PoolKey
	store    OrderStoreBackend
	ledger   custody.Ledger
	sender   messaging.EventSender
	account  string
	cursor   int64
	seq      uint64
	settling map[string]bool
}

// NewEngine creates an engine for the given pool. initialTick is the pool's
// tick at registration time; it seeds the scan cursor after alignment.
func NewEngine(pool PoolKey, store OrderStoreBackend, ledger custody.Ledger, sender messaging.EventSender, initialTick int64) (*Engine, error) {
	if pool.TickSpacing <= 0 {
		return nil, ErrInvalidTickSpacing
	}

	return &Engine{
		pool:     pool,
		store:    store,
		ledger:   ledger,
		sender:   sender,
		account:  "tickorder:" + pool.ID,
		cursor:   AlignTick(initialTick, pool.TickSpacing),
		settling: make(map[string]bool),
	}, nil
}

// Pool returns the pool key the engine watches
func (e *Engine) Pool() PoolKey {
	return e.pool
}

// Account returns the custody account holding parked order inputs
func (e *Engine) Account() string {
	return e.account
}

// CurrentTick returns the scan cursor, the last pool tick the engine observed
func (e *Engine) CurrentTick() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// GetOrder returns an order by id, or nil if unknown
func (e *Engine) GetOrder(orderID string) *Order {
	return e.store.GetOrder(orderID)
}

// UserOrders returns every order the owner placed, terminal entries included
func (e *Engine) UserOrders(owner string) []*Order {
	return e.store.UserOrders(owner)
}

// Place validates and stores a new conditional order, taking custody of the
// input amount from the owner. The custodied asset is implied by the order
// type: STOP_LOSS and BUY_STOP park token0, BUY_LIMIT and TAKE_PROFIT token1.
func (e *Engine) Place(ctx context.Context, owner string, orderType OrderType, amountIn fpdecimal.Decimal, triggerTick int64) (*Order, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanPlaceOrder,
		attribute.String(otel.AttributePoolID, e.pool.ID),
		attribute.String(otel.AttributeOrderOwner, owner),
		attribute.String(otel.AttributeOrderType, string(orderType)),
		attribute.String(otel.AttributeOrderAmount, amountIn.String()),
		attribute.Int64(otel.AttributeTriggerTick, triggerTick),
	)
	defer func() {
		if span != nil {
			span.End()
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Bucket keys are canonical spacing multiples, so the requested trigger
	// level is floored to the grid the scanner walks.
	triggerTick = AlignTick(triggerTick, e.pool.TickSpacing)

	e.seq++
	orderID := fmt.Sprintf("%d-%s-%d", e.seq, owner, time.Now().UnixNano())

	order, err := NewOrder(orderID, owner, orderType, amountIn, triggerTick)
	if err != nil {
		if span != nil {
			span.SetStatus(codes.Error, "order validation failed")
		}
		return nil, err
	}

	// Custody first: take the input amount from the placer. A placer without
	// funds must not leave an order behind.
	tokenIn := e.pool.TokenIn(order.ZeroForOne())
	if err := e.ledger.Transfer(owner, e.account, tokenIn, amountIn); err != nil {
		if span != nil {
			span.SetStatus(codes.Error, "custody transfer failed")
		}
		return nil, err
	}

	if err := e.store.StoreOrder(order); err != nil {
		// Unwind the custody transfer so the failed placement has no effect
		_ = e.ledger.Transfer(e.account, owner, tokenIn, amountIn)
		if span != nil {
			span.SetStatus(codes.Error, "failed to store order")
		}
		return nil, err
	}

	otel.AddAttributes(span, attribute.String(otel.AttributeOrderID, order.ID()))
	otel.GetOrderMetrics().RecordPlaced(ctx, string(orderType))

	e.emitOrderEvent(ctx, messaging.EventOrderPlaced, order, "", fpdecimal.Zero)
	return order, nil
}

// Cancel transitions an OPEN order to CANCELED and refunds the custodied
// input to the owner. Only the owner may cancel.
func (e *Engine) Cancel(ctx context.Context, caller, orderID string) (*Order, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanCancelOrder,
		attribute.String(otel.AttributePoolID, e.pool.ID),
		attribute.String(otel.AttributeOrderID, orderID),
	)
	defer func() {
		if span != nil {
			span.End()
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	order := e.store.GetOrder(orderID)
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if order.Owner() != caller {
		if span != nil {
			span.SetStatus(codes.Error, "caller is not the owner")
		}
		return nil, ErrUnauthorized
	}

	// A settlement in flight has already handed the custodied input to the
	// settler; refunding under it would draw on other orders' custody.
	if !order.IsOpen() || e.settling[orderID] {
		return nil, ErrInvalidTransition
	}

	// Refund before the status flip. The transfer is the step that can fail,
	// and a failed cancel must leave the order OPEN with custody in place.
	tokenIn := e.pool.TokenIn(order.ZeroForOne())
	if err := e.ledger.Transfer(e.account, order.Owner(), tokenIn, order.AmountIn()); err != nil {
		if span != nil {
			span.SetStatus(codes.Error, "refund transfer failed")
		}
		return nil, err
	}

	if err := e.store.SetOrderStatus(orderID, StatusCanceled); err != nil {
		_ = e.ledger.Transfer(order.Owner(), e.account, tokenIn, order.AmountIn())
		return nil, err
	}

	otel.GetOrderMetrics().RecordCanceled(ctx, string(order.OrderType()))

	e.emitOrderEvent(ctx, messaging.EventOrderCanceled, order, "", fpdecimal.Zero)
	return order, nil
}

// Settle executes an eligible order on behalf of a settling party. The
// predicate is re-evaluated against the current cursor tick: scanning only
// flags candidates, and the pool may have moved since. On success the
// custodied input is forwarded to the settler, the settlement callback runs,
// the order closes as EXECUTED and whatever counter-asset balance the
// callback delivered is forwarded to the order owner.
func (e *Engine) Settle(ctx context.Context, settler, orderID string, data []byte, callback SettlementCallback) (fpdecimal.Decimal, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanSettleOrder,
		attribute.String(otel.AttributePoolID, e.pool.ID),
		attribute.String(otel.AttributeOrderID, orderID),
		attribute.String(otel.AttributeSettler, settler),
	)
	defer func() {
		if span != nil {
			span.End()
		}
	}()

	e.mu.Lock()

	order := e.store.GetOrder(orderID)
	if order == nil {
		e.mu.Unlock()
		return fpdecimal.Zero, ErrOrderNotFound
	}

	// The in-flight guard makes re-entrant settles on the same id observe
	// the mutation before any second custody movement.
	if !order.IsOpen() || e.settling[orderID] {
		e.mu.Unlock()
		return fpdecimal.Zero, ErrInvalidTransition
	}

	if !TriggerMet(order.OrderType(), e.cursor, order.TriggerTick()) {
		e.mu.Unlock()
		if span != nil {
			span.SetStatus(codes.Error, "trigger not met at current tick")
		}
		return fpdecimal.Zero, ErrTriggerNotMet
	}

	e.settling[orderID] = true
	e.mu.Unlock()

	release := func() {
		e.mu.Lock()
		delete(e.settling, orderID)
		e.mu.Unlock()
	}

	tokenIn := e.pool.TokenIn(order.ZeroForOne())
	tokenOut := e.pool.TokenOut(order.ZeroForOne())
	before := e.ledger.Balance(e.account, tokenOut)

	// Two-phase handoff: input asset out, callback, counter-asset back
	if err := e.ledger.Transfer(e.account, settler, tokenIn, order.AmountIn()); err != nil {
		release()
		return fpdecimal.Zero, err
	}

	if err := callback.Settle(ctx, tokenIn, tokenOut, order.AmountIn(), data); err != nil {
		// Unwind the input hand-off; the original failure reason propagates
		// unchanged inside the wrap.
		_ = e.ledger.Transfer(settler, e.account, tokenIn, order.AmountIn())
		release()
		if span != nil {
			span.SetStatus(codes.Error, "settlement callback failed")
		}
		return fpdecimal.Zero, fmt.Errorf("%w: %w", ErrCallbackFailure, err)
	}

	e.mu.Lock()
	defer func() {
		delete(e.settling, orderID)
		e.mu.Unlock()
	}()

	delivered := e.ledger.Balance(e.account, tokenOut).Sub(before)

	// Close the order before any proceeds move. The in-flight guard keeps the
	// order OPEN through the callback, so a failed transition here means the
	// store lost the order; hand everything back to the settler.
	if err := e.store.SetOrderStatus(orderID, StatusExecuted); err != nil {
		_ = e.ledger.Transfer(settler, e.account, tokenIn, order.AmountIn())
		if delivered.GreaterThan(fpdecimal.Zero) {
			_ = e.ledger.Transfer(e.account, settler, tokenOut, delivered)
		}
		return fpdecimal.Zero, err
	}

	if delivered.GreaterThan(fpdecimal.Zero) {
		if err := e.ledger.Transfer(e.account, order.Owner(), tokenOut, delivered); err != nil {
			return fpdecimal.Zero, err
		}
	}

	otel.AddAttributes(span, attribute.String(otel.AttributeDeliveredQty, delivered.String()))
	otel.GetOrderMetrics().RecordExecuted(ctx, string(order.OrderType()))

	e.emitOrderEvent(ctx, messaging.EventOrderExecuted, order, settler, delivered)
	return delivered, nil
}

// emitOrderEvent publishes a per-order audit event. Publishing is
// best-effort: a broker failure never rolls back a committed operation.
func (e *Engine) emitOrderEvent(ctx context.Context, kind messaging.OrderEventKind, order *Order, settler string, amountOut fpdecimal.Decimal) {
	if e.sender == nil {
		return
	}

	event := &messaging.OrderEventMessage{
		Kind:        kind,
		PoolID:      e.pool.ID,
		OrderID:     order.ID(),
		Owner:       order.Owner(),
		OrderType:   string(order.OrderType()),
		AmountIn:    order.AmountIn().String(),
		TriggerTick: order.TriggerTick(),
	}
	if kind == messaging.EventOrderExecuted {
		event.Settler = settler
		event.AmountOut = amountOut.String()
	}

	if err := e.sender.SendOrderEvent(event); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("order_id", order.ID()).
			Str("kind", string(kind)).
			Msg("Failed to publish order event")
	}
}

// emitCrossedEvent publishes the batch report of a scan, best-effort
func (e *Engine) emitCrossedEvent(ctx context.Context, report *ScanReport) {
	if e.sender == nil {
		return
	}

	event := &messaging.CrossedMessage{
		PoolID:          report.PoolID,
		FromTick:        report.FromTick,
		ToTick:          report.ToTick,
		TradeZeroForOne: report.TradeZeroForOne,
		OrderIDs:        report.OrderIDs,
	}

	if err := e.sender.SendCrossedEvent(event); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("pool_id", report.PoolID).
			Int("crossed", len(report.OrderIDs)).
			Msg("Failed to publish crossed event")
	}
}
