package memory

import (
	"sync"

	"github.com/erain9/tickorder/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// bucketKey is the composite trigger-bucket key. A single flat map keyed by
// (tick, direction) keeps bucket emptiness explicit and queryable.
type bucketKey struct {
	tick       int64
	zeroForOne bool
}

// MemoryBackend implements OrderStoreBackend with in-memory storage
type MemoryBackend struct {
	sync.RWMutex
	orders  map[string]*core.Order
	buckets map[bucketKey][]string
	users   map[string][]string
}

// NewMemoryBackend creates a new instance of MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		orders:  make(map[string]*core.Order),
		buckets: make(map[bucketKey][]string),
		users:   make(map[string][]string),
	}
}

// GetOrder retrieves an order by ID
func (b *MemoryBackend) GetOrder(orderID string) *core.Order {
	b.RLock()
	defer b.RUnlock()
	return b.orders[orderID]
}

// StoreOrder inserts the order into the primary map, its trigger bucket and
// the user index. The duplicate check runs before any insert, so the three
// writes commit together or not at all.
func (b *MemoryBackend) StoreOrder(order *core.Order) error {
	if order.AmountIn().LessThanOrEqual(fpdecimal.Zero) {
		return core.ErrInvalidAmount
	}

	b.Lock()
	defer b.Unlock()

	if _, exists := b.orders[order.ID()]; exists {
		return core.ErrOrderExists
	}

	key := bucketKey{tick: order.TriggerTick(), zeroForOne: order.ZeroForOne()}

	b.orders[order.ID()] = order
	b.buckets[key] = append(b.buckets[key], order.ID())
	b.users[order.Owner()] = append(b.users[order.Owner()], order.ID())

	return nil
}

// SetOrderStatus transitions a stored order's status. This is the only
// mutation path; it fails unless the order is currently OPEN.
func (b *MemoryBackend) SetOrderStatus(orderID string, status core.Status) error {
	b.Lock()
	defer b.Unlock()

	order := b.orders[orderID]
	if order == nil {
		return core.ErrOrderNotFound
	}

	return order.SetStatus(status)
}

// BucketOrders returns the OPEN orders resting in the (tick, zeroForOne)
// bucket in insertion order. Terminal orders keep their bucket slot as part
// of the audit trail but are filtered from reads.
func (b *MemoryBackend) BucketOrders(tick int64, zeroForOne bool) []*core.Order {
	b.RLock()
	defer b.RUnlock()

	ids := b.buckets[bucketKey{tick: tick, zeroForOne: zeroForOne}]
	orders := make([]*core.Order, 0, len(ids))
	for _, id := range ids {
		if order := b.orders[id]; order != nil && order.IsOpen() {
			orders = append(orders, order)
		}
	}

	return orders
}

// UserOrders returns every order the owner ever placed, in placement order,
// terminal entries included.
func (b *MemoryBackend) UserOrders(owner string) []*core.Order {
	b.RLock()
	defer b.RUnlock()

	ids := b.users[owner]
	orders := make([]*core.Order, 0, len(ids))
	for _, id := range ids {
		if order := b.orders[id]; order != nil {
			orders = append(orders, order)
		}
	}

	return orders
}

var _ core.OrderStoreBackend = (*MemoryBackend)(nil)
