package core

// OrderStoreBackend defines the interface for order store implementations.
// A backend owns the primary order map plus two lookup indices: the trigger
// bucket index keyed by (tick, zeroForOne) and the per-user order index.
type OrderStoreBackend interface {
	// GetOrder returns the order or nil if unknown
	GetOrder(orderID string) *Order

	// StoreOrder inserts the order into the primary map, its trigger bucket
	// and the user index. All three inserts succeed or none do.
	StoreOrder(order *Order) error

	// SetOrderStatus is the only mutation path for stored orders. It fails
	// with ErrInvalidTransition unless the order is currently OPEN.
	SetOrderStatus(orderID string, status Status) error

	// BucketOrders returns the orders resting in the (tick, zeroForOne)
	// bucket, in insertion order. Terminal orders are filtered out.
	BucketOrders(tick int64, zeroForOne bool) []*Order

	// UserOrders returns every order the owner ever placed, terminal
	// entries included. The user index is an append-only audit trail.
	UserOrders(owner string) []*Order
}
