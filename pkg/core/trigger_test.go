package core

import "testing"

func TestTriggerMet(t *testing.T) {
	const triggerTick = 100

	tests := []struct {
		name        string
		orderType   OrderType
		currentTick int64
		want        bool
	}{
		{"StopLoss below trigger", TypeStopLoss, 90, true},
		{"StopLoss at trigger", TypeStopLoss, 100, true},
		{"StopLoss above trigger", TypeStopLoss, 110, false},

		{"BuyLimit below trigger", TypeBuyLimit, 90, true},
		{"BuyLimit at trigger", TypeBuyLimit, 100, true},
		{"BuyLimit above trigger", TypeBuyLimit, 110, false},

		{"BuyStop below trigger", TypeBuyStop, 90, false},
		{"BuyStop at trigger", TypeBuyStop, 100, true},
		{"BuyStop above trigger", TypeBuyStop, 110, true},

		{"TakeProfit below trigger", TypeTakeProfit, 90, false},
		{"TakeProfit at trigger", TypeTakeProfit, 100, true},
		{"TakeProfit above trigger", TypeTakeProfit, 110, true},

		{"Unknown type never eligible", OrderType("BOGUS"), 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TriggerMet(tt.orderType, tt.currentTick, triggerTick); got != tt.want {
				t.Errorf("TriggerMet(%s, %d, %d) = %v, want %v",
					tt.orderType, tt.currentTick, triggerTick, got, tt.want)
			}
		})
	}
}

func TestTriggerMetNegativeTicks(t *testing.T) {
	if !TriggerMet(TypeStopLoss, -50, -40) {
		t.Error("StopLoss at tick -50 with trigger -40 must be eligible")
	}
	if TriggerMet(TypeTakeProfit, -50, -40) {
		t.Error("TakeProfit at tick -50 with trigger -40 must not be eligible")
	}
}
