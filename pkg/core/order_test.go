package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nikolaydubina/fpdecimal"
)

func TestOrderTypeValid(t *testing.T) {
	tests := []struct {
		name      string
		orderType OrderType
		want      bool
	}{
		{"StopLoss", TypeStopLoss, true},
		{"BuyStop", TypeBuyStop, true},
		{"BuyLimit", TypeBuyLimit, true},
		{"TakeProfit", TypeTakeProfit, true},
		{"Invalid", OrderType("TRAILING_STOP"), false},
		{"Empty", OrderType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.orderType.Valid(); got != tt.want {
				t.Errorf("OrderType.Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderTypeSellsToken0(t *testing.T) {
	tests := []struct {
		name      string
		orderType OrderType
		want      bool
	}{
		{"StopLoss sells token0", TypeStopLoss, true},
		{"BuyStop sells token0", TypeBuyStop, true},
		{"BuyLimit sells token1", TypeBuyLimit, false},
		{"TakeProfit sells token1", TypeTakeProfit, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.orderType.SellsToken0(); got != tt.want {
				t.Errorf("OrderType.SellsToken0() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewOrder(t *testing.T) {
	orderID := "test-123"
	amount := fpdecimal.FromFloat(10.5)

	order, err := NewOrder(orderID, "alice", TypeStopLoss, amount, 50)
	if err != nil {
		t.Fatalf("NewOrder returned an error: %v", err)
	}

	if order.ID() != orderID {
		t.Errorf("Expected ID %s, got %s", orderID, order.ID())
	}

	if order.Owner() != "alice" {
		t.Errorf("Expected owner alice, got %s", order.Owner())
	}

	if !order.AmountIn().Equal(amount) {
		t.Errorf("Expected AmountIn %v, got %v", amount, order.AmountIn())
	}

	if order.TriggerTick() != 50 {
		t.Errorf("Expected TriggerTick 50, got %d", order.TriggerTick())
	}

	if !order.ZeroForOne() {
		t.Error("Expected STOP_LOSS order to have zeroForOne true")
	}

	if order.Status() != StatusOpen {
		t.Errorf("Expected status OPEN, got %s", order.Status())
	}

	if !order.IsOpen() {
		t.Error("Expected order to be open")
	}

	if order.CreatedAt().IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestNewOrderValidation(t *testing.T) {
	if _, err := NewOrder("id", "alice", OrderType("BOGUS"), fpdecimal.FromFloat(1.0), 0); !errors.Is(err, ErrInvalidOrderType) {
		t.Errorf("Expected ErrInvalidOrderType, got %v", err)
	}

	if _, err := NewOrder("id", "alice", TypeBuyLimit, fpdecimal.Zero, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount for zero amount, got %v", err)
	}

	if _, err := NewOrder("id", "alice", TypeBuyLimit, fpdecimal.FromFloat(-5.0), 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount for negative amount, got %v", err)
	}
}

func TestOrderZeroForOneDerivation(t *testing.T) {
	for _, orderType := range []OrderType{TypeStopLoss, TypeBuyStop, TypeBuyLimit, TypeTakeProfit} {
		order, err := NewOrder("id-"+string(orderType), "alice", orderType, fpdecimal.FromFloat(1.0), 0)
		if err != nil {
			t.Fatalf("NewOrder(%s) returned an error: %v", orderType, err)
		}

		if order.ZeroForOne() != orderType.SellsToken0() {
			t.Errorf("%s: ZeroForOne() = %v, want %v", orderType, order.ZeroForOne(), orderType.SellsToken0())
		}
	}
}

func TestOrderSetStatus(t *testing.T) {
	order, err := NewOrder("id", "alice", TypeTakeProfit, fpdecimal.FromFloat(1.0), 0)
	if err != nil {
		t.Fatalf("NewOrder returned an error: %v", err)
	}

	if err := order.SetStatus(StatusExecuted); err != nil {
		t.Errorf("SetStatus from OPEN returned an error: %v", err)
	}

	if order.Status() != StatusExecuted {
		t.Errorf("Expected status EXECUTED, got %s", order.Status())
	}

	// Terminal statuses reject every further transition
	if err := order.SetStatus(StatusCanceled); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition from EXECUTED, got %v", err)
	}

	if err := order.SetStatus(StatusOpen); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition reopening, got %v", err)
	}

	if order.Status() != StatusExecuted {
		t.Errorf("Status changed after rejected transition: %s", order.Status())
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusOpen.Terminal() {
		t.Error("OPEN must not be terminal")
	}
	if !StatusExecuted.Terminal() {
		t.Error("EXECUTED must be terminal")
	}
	if !StatusCanceled.Terminal() {
		t.Error("CANCELED must be terminal")
	}
}

func TestOrderJSON(t *testing.T) {
	order, err := NewOrder("id-1", "alice", TypeBuyStop, fpdecimal.FromFloat(2.5), -30)
	if err != nil {
		t.Fatalf("NewOrder returned an error: %v", err)
	}

	data, err := json.Marshal(order)
	if err != nil {
		t.Fatalf("Marshal returned an error: %v", err)
	}

	var decoded Order
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal returned an error: %v", err)
	}

	if decoded.ID() != order.ID() || decoded.Owner() != order.Owner() {
		t.Errorf("Round-trip changed identity: %s/%s", decoded.ID(), decoded.Owner())
	}
	if decoded.OrderType() != TypeBuyStop || decoded.TriggerTick() != -30 {
		t.Errorf("Round-trip changed terms: %s/%d", decoded.OrderType(), decoded.TriggerTick())
	}
	if !decoded.AmountIn().Equal(order.AmountIn()) {
		t.Errorf("Round-trip changed amount: %v", decoded.AmountIn())
	}
	if decoded.Status() != StatusOpen {
		t.Errorf("Round-trip changed status: %s", decoded.Status())
	}
}
