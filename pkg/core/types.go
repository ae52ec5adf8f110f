package core

// PoolKey identifies the liquidity pool an engine watches: the two fungible
// asset identifiers and the pool's tick spacing.
type PoolKey struct {
	ID          string
	Token0      string
	Token1      string
	TickSpacing int64
}

// TokenIn returns the asset a given direction sells into the pool
func (p PoolKey) TokenIn(zeroForOne bool) string {
	if zeroForOne {
		return p.Token0
	}
	return p.Token1
}

// TokenOut returns the asset a given direction receives from the pool
func (p PoolKey) TokenOut(zeroForOne bool) string {
	if zeroForOne {
		return p.Token1
	}
	return p.Token0
}

// ScanReport is the result of one tick-crossing scan. It is a detection
// event, not an execution: the listed orders remain OPEN and bucketed until
// settled individually.
type ScanReport struct {
	// Pool the scan ran against
	PoolID string `json:"poolID"`
	// Cursor tick the scan started from (inclusive)
	FromTick int64 `json:"fromTick"`
	// Aligned tick the cursor advanced to (exclusive)
	ToTick int64 `json:"toTick"`
	// Direction of the trade that moved the price
	TradeZeroForOne bool `json:"tradeZeroForOne"`
	// IDs of orders resting in the crossed buckets, in bucket order
	OrderIDs []string `json:"orderIDs"`
}

// Empty reports whether the scan crossed no resting orders
func (r *ScanReport) Empty() bool {
	return len(r.OrderIDs) == 0
}
