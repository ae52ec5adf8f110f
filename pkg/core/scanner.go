package core

// AlignTick floors a tick to the nearest multiple of the pool's tick spacing.
// Flooring (not truncation) keeps bucket keys canonical for negative ticks:
// AlignTick(-5, 10) is -10, not 0.
func AlignTick(tick, spacing int64) int64 {
	r := tick % spacing
	if r < 0 {
		r += spacing
	}
	return tick - r
}

// crossedTicks enumerates every bucket tick passed over when the cursor moves
// from prev to curr, both already aligned to spacing. The walk includes prev
// and excludes curr; a move of zero yields nothing. A trade that jumps several
// spacings in one step still visits every intermediate tick, since a resting
// order's eligibility depends only on its level being crossed.
func crossedTicks(prev, curr, spacing int64) []int64 {
	if prev == curr {
		return nil
	}

	var ticks []int64
	if prev < curr {
		for tick := prev; tick < curr; tick += spacing {
			ticks = append(ticks, tick)
		}
	} else {
		for tick := prev; tick > curr; tick -= spacing {
			ticks = append(ticks, tick)
		}
	}

	return ticks
}

// scanCrossings walks the buckets between the previous cursor and the new
// tick and collects the ids of orders resting on the side opposite the trade.
// A trade moving the price through a level supplies the liquidity the resting
// orders on the other side trade against, so only orderZeroForOne ==
// !tradeZeroForOne buckets are read.
func scanCrossings(store OrderStoreBackend, prev, curr, spacing int64, tradeZeroForOne bool) []string {
	orderZeroForOne := !tradeZeroForOne

	var ids []string
	for _, tick := range crossedTicks(prev, curr, spacing) {
		for _, order := range store.BucketOrders(tick, orderZeroForOne) {
			ids = append(ids, order.ID())
		}
	}

	return ids
}
