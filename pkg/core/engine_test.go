package core

import (
	"context"
	"errors"
	"testing"

	"github.com/erain9/tickorder/pkg/custody"
	"github.com/erain9/tickorder/pkg/messaging"
	"github.com/nikolaydubina/fpdecimal"
)

var testPool = PoolKey{ID: "eth-usdc", Token0: "ETH", Token1: "USDC", TickSpacing: 10}

// newTestEngine builds an engine over the in-package test store with a funded
// owner and settler.
func newTestEngine(t *testing.T, initialTick int64) (*Engine, *custody.MemoryLedger, *messaging.MockEventSender) {
	t.Helper()

	ledger := custody.NewMemoryLedger()
	sender := messaging.NewMockEventSender()

	engine, err := NewEngine(testPool, newTestStore(), ledger, sender, initialTick)
	if err != nil {
		t.Fatalf("NewEngine returned an error: %v", err)
	}

	for _, asset := range []string{"ETH", "USDC"} {
		if err := ledger.Mint("alice", asset, fpdecimal.FromFloat(1000.0)); err != nil {
			t.Fatalf("Mint returned an error: %v", err)
		}
		if err := ledger.Mint("settler", asset, fpdecimal.FromFloat(1000.0)); err != nil {
			t.Fatalf("Mint returned an error: %v", err)
		}
	}

	return engine, ledger, sender
}

// ledgerSettlerFunc pays a fixed counter amount into the engine account
func ledgerSettlerFunc(ledger custody.Ledger, engineAccount string, counterAmount fpdecimal.Decimal) SettlementCallback {
	return SettlementCallbackFunc(func(ctx context.Context, tokenIn, tokenOut string, amountIn fpdecimal.Decimal, data []byte) error {
		return ledger.Transfer("settler", engineAccount, tokenOut, counterAmount)
	})
}

func TestNewEngineValidation(t *testing.T) {
	pool := testPool
	pool.TickSpacing = 0

	if _, err := NewEngine(pool, newTestStore(), custody.NewMemoryLedger(), nil, 0); !errors.Is(err, ErrInvalidTickSpacing) {
		t.Errorf("Expected ErrInvalidTickSpacing, got %v", err)
	}
}

func TestNewEngineAlignsCursor(t *testing.T) {
	engine, _, _ := newTestEngine(t, 57)

	if got := engine.CurrentTick(); got != 50 {
		t.Errorf("Expected cursor aligned to 50, got %d", got)
	}
}

func TestPlaceTakesCustody(t *testing.T) {
	ctx := context.Background()
	engine, ledger, sender := newTestEngine(t, 100)

	order, err := engine.Place(ctx, "alice", TypeStopLoss, fpdecimal.FromFloat(2.0), 50)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}

	// STOP_LOSS parks token0
	if got := ledger.Balance("alice", "ETH"); !got.Equal(fpdecimal.FromFloat(998.0)) {
		t.Errorf("Expected alice ETH 998, got %v", got)
	}
	if got := ledger.Balance(engine.Account(), "ETH"); !got.Equal(fpdecimal.FromFloat(2.0)) {
		t.Errorf("Expected engine ETH 2, got %v", got)
	}

	stored := engine.GetOrder(order.ID())
	if stored == nil || !stored.IsOpen() {
		t.Fatalf("Expected stored OPEN order, got %v", stored)
	}

	if len(sender.OrderEvents) != 1 || sender.OrderEvents[0].Kind != messaging.EventOrderPlaced {
		t.Errorf("Expected one ORDER_PLACED event, got %v", sender.OrderEvents)
	}
}

func TestPlaceAlignsTriggerTick(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, 100)

	order, err := engine.Place(ctx, "alice", TypeBuyLimit, fpdecimal.FromFloat(1.0), 57)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}

	if order.TriggerTick() != 50 {
		t.Errorf("Expected trigger tick aligned to 50, got %d", order.TriggerTick())
	}
}

func TestPlaceRejectsInvalidAmount(t *testing.T) {
	ctx := context.Background()
	engine, ledger, _ := newTestEngine(t, 100)

	if _, err := engine.Place(ctx, "alice", TypeStopLoss, fpdecimal.Zero, 50); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}

	if got := ledger.Balance("alice", "ETH"); !got.Equal(fpdecimal.FromFloat(1000.0)) {
		t.Errorf("Rejected placement moved funds: alice ETH %v", got)
	}
}

func TestPlaceRejectsUnfundedOwner(t *testing.T) {
	ctx := context.Background()
	engine, ledger, _ := newTestEngine(t, 100)

	_, err := engine.Place(ctx, "broke", TypeStopLoss, fpdecimal.FromFloat(1.0), 50)
	if !errors.Is(err, custody.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}

	if got := ledger.Balance(engine.Account(), "ETH"); !got.Equal(fpdecimal.Zero) {
		t.Errorf("Failed placement left funds in custody: %v", got)
	}
}

func TestCancelRefundsOwner(t *testing.T) {
	ctx := context.Background()
	engine, ledger, sender := newTestEngine(t, 100)

	order, err := engine.Place(ctx, "alice", TypeTakeProfit, fpdecimal.FromFloat(5.0), 150)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}

	canceled, err := engine.Cancel(ctx, "alice", order.ID())
	if err != nil {
		t.Fatalf("Cancel returned an error: %v", err)
	}

	if canceled.Status() != StatusCanceled {
		t.Errorf("Expected status CANCELED, got %s", canceled.Status())
	}

	// TAKE_PROFIT parks token1; the full amount comes back
	if got := ledger.Balance("alice", "USDC"); !got.Equal(fpdecimal.FromFloat(1000.0)) {
		t.Errorf("Expected alice USDC restored to 1000, got %v", got)
	}
	if got := ledger.Balance(engine.Account(), "USDC"); !got.Equal(fpdecimal.Zero) {
		t.Errorf("Expected engine custody emptied, got %v", got)
	}

	kinds := []messaging.OrderEventKind{}
	for _, event := range sender.OrderEvents {
		kinds = append(kinds, event.Kind)
	}
	if len(kinds) != 2 || kinds[1] != messaging.EventOrderCanceled {
		t.Errorf("Expected [PLACED, CANCELED] events, got %v", kinds)
	}
}

func TestCancelAuthorization(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, 100)

	order, err := engine.Place(ctx, "alice", TypeStopLoss, fpdecimal.FromFloat(1.0), 50)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}

	if _, err := engine.Cancel(ctx, "mallory", order.ID()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}

	if !engine.GetOrder(order.ID()).IsOpen() {
		t.Error("Unauthorized cancel changed order status")
	}

	if _, err := engine.Cancel(ctx, "alice", "nonexistent"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestCancelTerminalOrder(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, 100)

	order, err := engine.Place(ctx, "alice", TypeStopLoss, fpdecimal.FromFloat(1.0), 50)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}

	if _, err := engine.Cancel(ctx, "alice", order.ID()); err != nil {
		t.Fatalf("Cancel returned an error: %v", err)
	}

	if _, err := engine.Cancel(ctx, "alice", order.ID()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition on double cancel, got %v", err)
	}
}

func TestCancelRefundFailureLeavesOrderOpen(t *testing.T) {
	ctx := context.Background()
	engine, ledger, _ := newTestEngine(t, 100)

	order, err := engine.Place(ctx, "alice", TypeStopLoss, fpdecimal.FromFloat(2.0), 50)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}

	// Drain the engine account so the refund cannot be paid
	if err := ledger.Transfer(engine.Account(), "sink", "ETH", fpdecimal.FromFloat(2.0)); err != nil {
		t.Fatalf("Transfer returned an error: %v", err)
	}

	if _, err := engine.Cancel(ctx, "alice", order.ID()); !errors.Is(err, custody.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}

	if !engine.GetOrder(order.ID()).IsOpen() {
		t.Error("Failed cancel changed order status")
	}
	if got := ledger.Balance("alice", "ETH"); !got.Equal(fpdecimal.FromFloat(998.0)) {
		t.Errorf("Failed cancel moved funds: alice ETH %v", got)
	}
}

func TestCancelDuringSettlementRejected(t *testing.T) {
	ctx := context.Background()
	engine, ledger, _ := newTestEngine(t, 100)

	// A second order keeps custody in the engine account that a mid-flight
	// refund would wrongly draw on.
	order, err := engine.Place(ctx, "alice", TypeStopLoss, fpdecimal.FromFloat(2.0), 50)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}
	other, err := engine.Place(ctx, "alice", TypeStopLoss, fpdecimal.FromFloat(3.0), 50)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}
	if _, err := engine.AfterSwap(ctx, false, 40); err != nil {
		t.Fatalf("AfterSwap returned an error: %v", err)
	}

	counter := fpdecimal.FromFloat(600.0)
	var cancelErr error
	callback := SettlementCallbackFunc(func(ctx context.Context, tokenIn, tokenOut string, amountIn fpdecimal.Decimal, data []byte) error {
		_, cancelErr = engine.Cancel(ctx, "alice", order.ID())
		return ledger.Transfer("settler", engine.Account(), tokenOut, counter)
	})

	delivered, err := engine.Settle(ctx, "settler", order.ID(), nil, callback)
	if err != nil {
		t.Fatalf("Settle returned an error: %v", err)
	}
	if !errors.Is(cancelErr, ErrInvalidTransition) {
		t.Errorf("Expected mid-settlement cancel to fail with ErrInvalidTransition, got %v", cancelErr)
	}
	if !delivered.Equal(counter) {
		t.Errorf("Expected delivered %v, got %v", counter, delivered)
	}

	if got := engine.GetOrder(order.ID()).Status(); got != StatusExecuted {
		t.Errorf("Expected status EXECUTED, got %s", got)
	}
	if !engine.GetOrder(other.ID()).IsOpen() {
		t.Error("Settlement of one order touched another order's status")
	}

	// Custody law: the other order's 3 ETH stays with the engine, no refund
	// was paid, the settler holds the input and the owner the counter asset.
	if got := ledger.Balance(engine.Account(), "ETH"); !got.Equal(fpdecimal.FromFloat(3.0)) {
		t.Errorf("Expected engine ETH 3, got %v", got)
	}
	if got := ledger.Balance("alice", "ETH"); !got.Equal(fpdecimal.FromFloat(995.0)) {
		t.Errorf("Expected alice ETH 995, got %v", got)
	}
	if got := ledger.Balance("settler", "ETH"); !got.Equal(fpdecimal.FromFloat(1002.0)) {
		t.Errorf("Expected settler ETH 1002, got %v", got)
	}
	if got := ledger.Balance("alice", "USDC"); !got.Equal(fpdecimal.FromFloat(1600.0)) {
		t.Errorf("Expected alice USDC 1600, got %v", got)
	}
}

func TestSettleHappyPath(t *testing.T) {
	ctx := context.Background()
	engine, ledger, sender := newTestEngine(t, 100)

	// Stop-loss at 50; the pool falls through it
	order, err := engine.Place(ctx, "alice", TypeStopLoss, fpdecimal.FromFloat(2.0), 50)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}

	if _, err := engine.AfterSwap(ctx, false, 40); err != nil {
		t.Fatalf("AfterSwap returned an error: %v", err)
	}

	counter := fpdecimal.FromFloat(600.0)
	delivered, err := engine.Settle(ctx, "settler", order.ID(), nil, ledgerSettlerFunc(ledger, engine.Account(), counter))
	if err != nil {
		t.Fatalf("Settle returned an error: %v", err)
	}

	if !delivered.Equal(counter) {
		t.Errorf("Expected delivered %v, got %v", counter, delivered)
	}

	// Custody law: the engine account ends flat, the settler holds the input,
	// the owner holds the counter asset.
	if got := ledger.Balance(engine.Account(), "ETH"); !got.Equal(fpdecimal.Zero) {
		t.Errorf("Engine ETH not flat: %v", got)
	}
	if got := ledger.Balance(engine.Account(), "USDC"); !got.Equal(fpdecimal.Zero) {
		t.Errorf("Engine USDC not flat: %v", got)
	}
	if got := ledger.Balance("settler", "ETH"); !got.Equal(fpdecimal.FromFloat(1002.0)) {
		t.Errorf("Expected settler ETH 1002, got %v", got)
	}
	if got := ledger.Balance("alice", "USDC"); !got.Equal(fpdecimal.FromFloat(1600.0)) {
		t.Errorf("Expected alice USDC 1600, got %v", got)
	}

	if got := engine.GetOrder(order.ID()).Status(); got != StatusExecuted {
		t.Errorf("Expected status EXECUTED, got %s", got)
	}

	last := sender.OrderEvents[len(sender.OrderEvents)-1]
	if last.Kind != messaging.EventOrderExecuted || last.Settler != "settler" || last.AmountOut != counter.String() {
		t.Errorf("Unexpected executed event: %+v", last)
	}
}

func TestSettleTriggerNotMet(t *testing.T) {
	ctx := context.Background()
	engine, ledger, _ := newTestEngine(t, 100)

	// Trigger at 50, cursor still at 100
	order, err := engine.Place(ctx, "alice", TypeStopLoss, fpdecimal.FromFloat(1.0), 50)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}

	_, err = engine.Settle(ctx, "settler", order.ID(), nil, ledgerSettlerFunc(ledger, engine.Account(), fpdecimal.FromFloat(1.0)))
	if !errors.Is(err, ErrTriggerNotMet) {
		t.Errorf("Expected ErrTriggerNotMet, got %v", err)
	}

	if !engine.GetOrder(order.ID()).IsOpen() {
		t.Error("Failed settle changed order status")
	}
}

func TestSettleDoubleSettle(t *testing.T) {
	ctx := context.Background()
	engine, ledger, _ := newTestEngine(t, 100)

	order, err := engine.Place(ctx, "alice", TypeStopLoss, fpdecimal.FromFloat(2.0), 50)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}
	if _, err := engine.AfterSwap(ctx, false, 40); err != nil {
		t.Fatalf("AfterSwap returned an error: %v", err)
	}

	callback := ledgerSettlerFunc(ledger, engine.Account(), fpdecimal.FromFloat(100.0))
	if _, err := engine.Settle(ctx, "settler", order.ID(), nil, callback); err != nil {
		t.Fatalf("First settle returned an error: %v", err)
	}

	settlerETH := ledger.Balance("settler", "ETH")

	if _, err := engine.Settle(ctx, "settler", order.ID(), nil, callback); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition on double settle, got %v", err)
	}

	if got := ledger.Balance("settler", "ETH"); !got.Equal(settlerETH) {
		t.Errorf("Double settle moved funds: settler ETH %v -> %v", settlerETH, got)
	}
}

func TestSettleCallbackFailureUnwinds(t *testing.T) {
	ctx := context.Background()
	engine, ledger, _ := newTestEngine(t, 100)

	order, err := engine.Place(ctx, "alice", TypeStopLoss, fpdecimal.FromFloat(2.0), 50)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}
	if _, err := engine.AfterSwap(ctx, false, 40); err != nil {
		t.Fatalf("AfterSwap returned an error: %v", err)
	}

	cause := errors.New("no counter liquidity")
	failing := SettlementCallbackFunc(func(ctx context.Context, tokenIn, tokenOut string, amountIn fpdecimal.Decimal, data []byte) error {
		return cause
	})

	_, err = engine.Settle(ctx, "settler", order.ID(), nil, failing)
	if !errors.Is(err, ErrCallbackFailure) {
		t.Fatalf("Expected ErrCallbackFailure, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Expected wrapped cause to survive, got %v", err)
	}

	// The input hand-off is unwound and the order still settleable
	if got := ledger.Balance(engine.Account(), "ETH"); !got.Equal(fpdecimal.FromFloat(2.0)) {
		t.Errorf("Expected custody restored to 2 ETH, got %v", got)
	}
	if got := ledger.Balance("settler", "ETH"); !got.Equal(fpdecimal.FromFloat(1000.0)) {
		t.Errorf("Expected settler ETH unchanged, got %v", got)
	}
	if !engine.GetOrder(order.ID()).IsOpen() {
		t.Error("Failed settle changed order status")
	}

	// Retry succeeds once the callback behaves
	if _, err := engine.Settle(ctx, "settler", order.ID(), nil, ledgerSettlerFunc(ledger, engine.Account(), fpdecimal.FromFloat(1.0))); err != nil {
		t.Errorf("Retry settle returned an error: %v", err)
	}
}

func TestSettleUnknownOrder(t *testing.T) {
	ctx := context.Background()
	engine, ledger, _ := newTestEngine(t, 100)

	_, err := engine.Settle(ctx, "settler", "nope", nil, ledgerSettlerFunc(ledger, engine.Account(), fpdecimal.FromFloat(1.0)))
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestUserOrdersIncludeTerminal(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t, 100)

	open, err := engine.Place(ctx, "alice", TypeStopLoss, fpdecimal.FromFloat(1.0), 50)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}
	toCancel, err := engine.Place(ctx, "alice", TypeBuyStop, fpdecimal.FromFloat(1.0), 150)
	if err != nil {
		t.Fatalf("Place returned an error: %v", err)
	}
	if _, err := engine.Cancel(ctx, "alice", toCancel.ID()); err != nil {
		t.Fatalf("Cancel returned an error: %v", err)
	}

	orders := engine.UserOrders("alice")
	if len(orders) != 2 {
		t.Fatalf("Expected 2 orders, got %d", len(orders))
	}
	if orders[0].ID() != open.ID() || orders[1].ID() != toCancel.ID() {
		t.Errorf("Unexpected order listing: %v, %v", orders[0].ID(), orders[1].ID())
	}
	if orders[1].Status() != StatusCanceled {
		t.Errorf("Expected terminal order retained, got %s", orders[1].Status())
	}
}
