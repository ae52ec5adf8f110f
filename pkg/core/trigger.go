package core

// TriggerMet reports whether an order of the given type is eligible for
// settlement at the current pool tick.
//
// The predicate is keyed by order type rather than direction: STOP_LOSS and
// BUY_LIMIT share the ≤ comparison, BUY_STOP and TAKE_PROFIT share the ≥
// comparison, but the pair members sell opposite assets. Settlement direction
// therefore always comes from the order's stored zeroForOne flag, never from
// this predicate.
func TriggerMet(orderType OrderType, currentTick, triggerTick int64) bool {
	switch orderType {
	case TypeStopLoss, TypeBuyLimit:
		return currentTick <= triggerTick
	case TypeBuyStop, TypeTakeProfit:
		return currentTick >= triggerTick
	default:
		return false
	}
}
