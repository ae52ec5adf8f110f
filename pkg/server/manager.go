package server

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/erain9/tickorder/pkg/backend/memory"
	"github.com/erain9/tickorder/pkg/backend/redis"
	"github.com/erain9/tickorder/pkg/core"
	"github.com/erain9/tickorder/pkg/custody"
	"github.com/erain9/tickorder/pkg/logging"
	"github.com/erain9/tickorder/pkg/messaging"
	redisClient "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrPoolExists is returned when trying to register a pool that already exists
	ErrPoolExists = errors.New("pool with this id already exists")

	// ErrPoolNotFound is returned when trying to access an unregistered pool
	ErrPoolNotFound = errors.New("pool not found")
)

// PoolInfo contains metadata about a registered pool
type PoolInfo struct {
	PoolID      string
	Token0      string
	Token1      string
	TickSpacing int64
	Backend     string
	CreatedAt   time.Time
}

// PoolManager manages the order engines of multiple pools
type PoolManager struct {
	mu        sync.RWMutex
	engines   map[string]*core.Engine
	info      map[string]*PoolInfo
	redisPool map[string]*redisClient.Client
	ledger    custody.Ledger
	sender    messaging.EventSender
	zapLogger *zap.Logger
}

// NewPoolManager creates a new PoolManager sharing one ledger and one event
// sender across all pools.
func NewPoolManager(ledger custody.Ledger, sender messaging.EventSender) *PoolManager {
	zapLogger, err := zap.NewProduction()
	if err != nil {
		zapLogger = zap.NewNop()
	}

	return &PoolManager{
		engines:   make(map[string]*core.Engine),
		info:      make(map[string]*PoolInfo),
		redisPool: make(map[string]*redisClient.Client),
		ledger:    ledger,
		sender:    sender,
		zapLogger: zapLogger,
	}
}

// Ledger returns the shared custody ledger
func (m *PoolManager) Ledger() custody.Ledger {
	return m.ledger
}

// CreateMemoryPool registers a pool backed by an in-memory order store
func (m *PoolManager) CreateMemoryPool(ctx context.Context, pool core.PoolKey, initialTick int64) (*PoolInfo, error) {
	logger := logging.FromContext(ctx).With().Str("pool_id", pool.ID).Logger()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.engines[pool.ID]; exists {
		logger.Error().Msg("Pool already exists")
		return nil, ErrPoolExists
	}

	engine, err := core.NewEngine(pool, memory.NewMemoryBackend(), m.ledger, m.sender, initialTick)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create engine")
		return nil, err
	}

	// The host queries the capability bitmap at registration; reject an
	// engine whose unregistered hooks do not signal NotImplemented.
	if err := core.ValidateHookPermissions(ctx, engine); err != nil {
		return nil, err
	}

	info := &PoolInfo{
		PoolID:      pool.ID,
		Token0:      pool.Token0,
		Token1:      pool.Token1,
		TickSpacing: pool.TickSpacing,
		Backend:     "memory",
		CreatedAt:   time.Now(),
	}

	m.engines[pool.ID] = engine
	m.info[pool.ID] = info

	logger.Info().Int64("initial_tick", initialTick).Msg("Created pool with memory backend")
	return info, nil
}

// CreateRedisPool registers a pool backed by a Redis order store. Options
// keys: addr, password, db, prefix.
func (m *PoolManager) CreateRedisPool(ctx context.Context, pool core.PoolKey, initialTick int64, options map[string]string) (*PoolInfo, error) {
	logger := logging.FromContext(ctx).With().Str("pool_id", pool.ID).Logger()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.engines[pool.ID]; exists {
		logger.Error().Msg("Pool already exists")
		return nil, ErrPoolExists
	}

	prefix := options["prefix"]
	if prefix == "" {
		prefix = "tickorder:" + pool.ID
	}

	var client *redisClient.Client
	if options["addr"] == "" {
		client = redis.GetRedisClient()
	} else {
		db := 0
		if options["db"] != "" {
			parsed, err := strconv.Atoi(options["db"])
			if err == nil {
				db = parsed
			}
		}
		client = redisClient.NewClient(&redisClient.Options{
			Addr:     options["addr"],
			Password: options["password"],
			DB:       db,
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Error().Err(err).Msg("Failed to connect to Redis")
		return nil, err
	}

	backend := redis.NewRedisBackend(client, prefix, m.zapLogger)

	engine, err := core.NewEngine(pool, backend, m.ledger, m.sender, initialTick)
	if err != nil {
		_ = client.Close()
		logger.Error().Err(err).Msg("Failed to create engine")
		return nil, err
	}

	if err := core.ValidateHookPermissions(ctx, engine); err != nil {
		_ = client.Close()
		return nil, err
	}

	info := &PoolInfo{
		PoolID:      pool.ID,
		Token0:      pool.Token0,
		Token1:      pool.Token1,
		TickSpacing: pool.TickSpacing,
		Backend:     "redis",
		CreatedAt:   time.Now(),
	}

	m.engines[pool.ID] = engine
	m.info[pool.ID] = info
	m.redisPool[pool.ID] = client

	logger.Info().Int64("initial_tick", initialTick).Msg("Created pool with Redis backend")
	return info, nil
}

// GetEngine returns the engine for a pool id
func (m *PoolManager) GetEngine(poolID string) (*core.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	engine, exists := m.engines[poolID]
	if !exists {
		return nil, ErrPoolNotFound
	}

	return engine, nil
}

// GetPoolInfo returns metadata for a pool id
func (m *PoolManager) GetPoolInfo(poolID string) (*PoolInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, exists := m.info[poolID]
	if !exists {
		return nil, ErrPoolNotFound
	}

	return info, nil
}

// ListPools returns metadata for every registered pool
func (m *PoolManager) ListPools() []*PoolInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]*PoolInfo, 0, len(m.info))
	for _, info := range m.info {
		infos = append(infos, info)
	}

	return infos
}

// Close releases every Redis connection the manager opened
func (m *PoolManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, client := range m.redisPool {
		if err := client.Close(); err != nil {
			m.zapLogger.Error("Failed to close Redis client", zap.String("pool_id", id), zap.Error(err))
		}
	}

	m.redisPool = make(map[string]*redisClient.Client)
}
