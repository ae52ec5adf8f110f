package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/erain9/tickorder/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions represents configuration options for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

var defaultOptions = &RedisOptions{
	Addr:     "localhost:6379",
	Password: "",
	DB:       0,
}

// SetDefaultRedisOptions sets the default options for Redis connections
func SetDefaultRedisOptions(options *RedisOptions) {
	defaultOptions = options
}

// GetRedisClient creates a new Redis client using the default options
func GetRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     defaultOptions.Addr,
		Password: defaultOptions.Password,
		DB:       defaultOptions.DB,
	})
}

// RedisBackend implements OrderStoreBackend with Redis storage. Orders are
// stored as JSON under per-order keys; the trigger buckets and the user
// index are lists of order ids, preserving insertion order.
type RedisBackend struct {
	sync.Mutex
	client      *redis.Client
	ctx         context.Context
	orderPrefix string
	bucketKeyFn func(tick int64, zeroForOne bool) string
	userKeyFn   func(owner string) string
	logger      *zap.Logger
}

// NewRedisBackend creates a new instance of RedisBackend
func NewRedisBackend(client *redis.Client, orderPrefix string, logger *zap.Logger) *RedisBackend {
	return &RedisBackend{
		client:      client,
		ctx:         context.Background(),
		orderPrefix: orderPrefix,
		bucketKeyFn: func(tick int64, zeroForOne bool) string {
			dir := "one_for_zero"
			if zeroForOne {
				dir = "zero_for_one"
			}
			return fmt.Sprintf("%s:bucket:%d:%s", orderPrefix, tick, dir)
		},
		userKeyFn: func(owner string) string {
			return fmt.Sprintf("%s:user:%s", orderPrefix, owner)
		},
		logger: logger,
	}
}

func (b *RedisBackend) orderKey(orderID string) string {
	return fmt.Sprintf("%s:order:%s", b.orderPrefix, orderID)
}

// GetOrder retrieves an order by ID, or nil if unknown
func (b *RedisBackend) GetOrder(orderID string) *core.Order {
	data, err := b.client.Get(b.ctx, b.orderKey(orderID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		b.logger.Error("Failed to get order from Redis", zap.String("order_id", orderID), zap.Error(err))
		return nil
	}

	var order core.Order
	if err := json.Unmarshal([]byte(data), &order); err != nil {
		b.logger.Error("Failed to unmarshal order", zap.String("order_id", orderID), zap.Error(err))
		return nil
	}

	return &order
}

// StoreOrder inserts the order into the primary key space, its trigger
// bucket and the user index. The order key is created with SETNX so a
// duplicate id fails before the index writes; index writes that fail after
// the key was created are unwound.
func (b *RedisBackend) StoreOrder(order *core.Order) error {
	if order.AmountIn().LessThanOrEqual(fpdecimal.Zero) {
		return core.ErrInvalidAmount
	}

	b.Lock()
	defer b.Unlock()

	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	created, err := b.client.SetNX(b.ctx, b.orderKey(order.ID()), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store order: %w", err)
	}
	if !created {
		return core.ErrOrderExists
	}

	pipe := b.client.TxPipeline()
	pipe.RPush(b.ctx, b.bucketKeyFn(order.TriggerTick(), order.ZeroForOne()), order.ID())
	pipe.RPush(b.ctx, b.userKeyFn(order.Owner()), order.ID())

	if _, err := pipe.Exec(b.ctx); err != nil {
		b.client.Del(b.ctx, b.orderKey(order.ID()))
		return fmt.Errorf("failed to index order: %w", err)
	}

	return nil
}

// SetOrderStatus transitions a stored order's status. OPEN is the only
// state transitions are allowed from.
func (b *RedisBackend) SetOrderStatus(orderID string, status core.Status) error {
	b.Lock()
	defer b.Unlock()

	order := b.GetOrder(orderID)
	if order == nil {
		return core.ErrOrderNotFound
	}

	if err := order.SetStatus(status); err != nil {
		return err
	}

	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	if err := b.client.Set(b.ctx, b.orderKey(orderID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	return nil
}

// BucketOrders returns the OPEN orders resting in the (tick, zeroForOne)
// bucket in insertion order.
func (b *RedisBackend) BucketOrders(tick int64, zeroForOne bool) []*core.Order {
	ids, err := b.client.LRange(b.ctx, b.bucketKeyFn(tick, zeroForOne), 0, -1).Result()
	if err != nil {
		b.logger.Error("Failed to read bucket", zap.Int64("tick", tick), zap.Error(err))
		return nil
	}

	orders := make([]*core.Order, 0, len(ids))
	for _, id := range ids {
		if order := b.GetOrder(id); order != nil && order.IsOpen() {
			orders = append(orders, order)
		}
	}

	return orders
}

// UserOrders returns every order the owner ever placed, in placement order,
// terminal entries included.
func (b *RedisBackend) UserOrders(owner string) []*core.Order {
	ids, err := b.client.LRange(b.ctx, b.userKeyFn(owner), 0, -1).Result()
	if err != nil {
		b.logger.Error("Failed to read user index", zap.String("owner", owner), zap.Error(err))
		return nil
	}

	orders := make([]*core.Order, 0, len(ids))
	for _, id := range ids {
		if order := b.GetOrder(id); order != nil {
			orders = append(orders, order)
		}
	}

	return orders
}

var _ core.OrderStoreBackend = (*RedisBackend)(nil)
