package relayer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/erain9/tickorder/pkg/backend/memory"
	"github.com/erain9/tickorder/pkg/core"
	"github.com/erain9/tickorder/pkg/custody"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type singleEngineProvider struct {
	engine *core.Engine
}

func (p *singleEngineProvider) GetEngine(poolID string) (*core.Engine, error) {
	if poolID != p.engine.Pool().ID {
		return nil, fmt.Errorf("unknown pool %s", poolID)
	}
	return p.engine, nil
}

func newTestSetup(t *testing.T) (*core.Engine, *custody.MemoryLedger, *Relayer) {
	t.Helper()

	ledger := custody.NewMemoryLedger()
	pool := core.PoolKey{ID: "eth-usdc", Token0: "ETH", Token1: "USDC", TickSpacing: 10}

	engine, err := core.NewEngine(pool, memory.NewMemoryBackend(), ledger, nil, 100)
	require.NoError(t, err)

	require.NoError(t, ledger.Mint("alice", "ETH", fpdecimal.FromFloat(100.0)))
	require.NoError(t, ledger.Mint("relayer", "USDC", fpdecimal.FromFloat(100000.0)))

	cfg := &Config{
		SettlerAccount: "relayer",
		PriceRatio:     fpdecimal.FromFloat(2.0),
		RateLimit:      1000,
	}

	r := New(cfg, &singleEngineProvider{engine: engine}, ledger, zerolog.Nop())
	return engine, ledger, r
}

func TestRelayerSettlesCrossedOrders(t *testing.T) {
	ctx := context.Background()
	engine, ledger, r := newTestSetup(t)

	order, err := engine.Place(ctx, "alice", core.TypeStopLoss, fpdecimal.FromFloat(3.0), 50)
	require.NoError(t, err)

	report, err := engine.AfterSwap(ctx, false, 40)
	require.NoError(t, err)
	require.Len(t, report.OrderIDs, 1)

	r.settleReport(ctx, report)

	settled := engine.GetOrder(order.ID())
	assert.Equal(t, core.StatusExecuted, settled.Status())

	// PriceRatio 2.0: 3 ETH in, 6 USDC delivered to the owner
	assert.True(t, ledger.Balance("alice", "USDC").Equal(fpdecimal.FromFloat(6.0)))
	assert.True(t, ledger.Balance("relayer", "ETH").Equal(fpdecimal.FromFloat(3.0)))
}

func TestRelayerSkipsIneligibleOrders(t *testing.T) {
	ctx := context.Background()
	engine, _, r := newTestSetup(t)

	// Crossed, then canceled before the relayer gets to it
	order, err := engine.Place(ctx, "alice", core.TypeStopLoss, fpdecimal.FromFloat(1.0), 50)
	require.NoError(t, err)

	report, err := engine.AfterSwap(ctx, false, 40)
	require.NoError(t, err)

	_, err = engine.Cancel(ctx, "alice", order.ID())
	require.NoError(t, err)

	r.settleReport(ctx, report)
	assert.Equal(t, core.StatusCanceled, engine.GetOrder(order.ID()).Status())
}

func TestRelayerConflictClearsOnRetry(t *testing.T) {
	ctx := context.Background()
	engine, _, r := newTestSetup(t)

	order, err := engine.Place(ctx, "alice", core.TypeStopLoss, fpdecimal.FromFloat(1.0), 50)
	require.NoError(t, err)
	_, err = engine.AfterSwap(ctx, false, 40)
	require.NoError(t, err)

	inFlight := make(chan struct{})
	release := make(chan struct{})
	rivalDone := make(chan error, 1)
	blocking := core.SettlementCallbackFunc(func(ctx context.Context, tokenIn, tokenOut string, amountIn fpdecimal.Decimal, data []byte) error {
		close(inFlight)
		<-release
		return errors.New("rival backed out")
	})

	go func() {
		_, err := engine.Settle(ctx, "rival", order.ID(), nil, blocking)
		rivalDone <- err
	}()

	// While the rival settlement is in flight the order is conflicted, not
	// terminal.
	<-inFlight
	err = r.settleOrder(ctx, engine, order.ID())
	assert.True(t, isConflict(err), "expected a conflict error, got %v", err)
	assert.True(t, engine.GetOrder(order.ID()).IsOpen())

	close(release)
	require.ErrorIs(t, <-rivalDone, core.ErrCallbackFailure)

	// The failed rival settlement released the order; a second attempt wins.
	require.NoError(t, r.settleOrder(ctx, engine, order.ID()))
	assert.Equal(t, core.StatusExecuted, engine.GetOrder(order.ID()).Status())
}

func TestRelayerRetryOnConflictKeepsUntriggeredOpen(t *testing.T) {
	ctx := context.Background()
	engine, _, r := newTestSetup(t)
	r.cfg.RetryOnConflict = true

	// Crossed at 40, but the pool climbs back above the trigger before the
	// relayer drains the report. Both attempts fail the trigger recheck.
	order, err := engine.Place(ctx, "alice", core.TypeStopLoss, fpdecimal.FromFloat(1.0), 50)
	require.NoError(t, err)
	report, err := engine.AfterSwap(ctx, false, 40)
	require.NoError(t, err)
	require.Len(t, report.OrderIDs, 1)
	_, err = engine.AfterSwap(ctx, true, 100)
	require.NoError(t, err)

	r.settleReport(ctx, report)
	assert.True(t, engine.GetOrder(order.ID()).IsOpen())
}

func TestDecodeCrossedEvent(t *testing.T) {
	// Sarama queue shape: payload wrapped under a kind field
	envelope := []byte(`{"kind":"ORDERS_CROSSED","crossed":{"poolID":"eth-usdc","fromTick":100,"toTick":40,"tradeZeroForOne":false,"orderIDs":["a","b"]}}`)
	report, ok := decodeCrossedEvent(envelope)
	require.True(t, ok)
	assert.Equal(t, "eth-usdc", report.PoolID)
	assert.Equal(t, int64(100), report.FromTick)
	assert.Equal(t, int64(40), report.ToTick)
	assert.Equal(t, []string{"a", "b"}, report.OrderIDs)

	// kafka-go sender shape: the crossed message published bare
	bare := []byte(`{"poolID":"eth-usdc","fromTick":100,"toTick":40,"tradeZeroForOne":false,"orderIDs":["a"]}`)
	report, ok = decodeCrossedEvent(bare)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, report.OrderIDs)

	// Per-order audit events carry a kind and are not crossed reports
	_, ok = decodeCrossedEvent([]byte(`{"kind":"ORDER_PLACED","orderID":"a","poolID":"eth-usdc"}`))
	assert.False(t, ok)

	_, ok = decodeCrossedEvent([]byte(`not json`))
	assert.False(t, ok)
}

func TestRelayerRunDrainsSubmittedReports(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, _, r := newTestSetup(t)

	order, err := engine.Place(ctx, "alice", core.TypeStopLoss, fpdecimal.FromFloat(1.0), 50)
	require.NoError(t, err)

	report, err := engine.AfterSwap(ctx, false, 40)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()

	r.Submit(report)

	require.Eventually(t, func() bool {
		return engine.GetOrder(order.ID()).Status() == core.StatusExecuted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRelayerSubmitIgnoresEmptyReports(t *testing.T) {
	_, _, r := newTestSetup(t)

	r.Submit(nil)
	r.Submit(&core.ScanReport{PoolID: "eth-usdc"})

	select {
	case report := <-r.reports:
		t.Fatalf("Empty report enqueued: %+v", report)
	default:
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "relayer", cfg.SettlerAccount)
	assert.True(t, cfg.PriceRatio.Equal(fpdecimal.FromFloat(1.0)))
	assert.Equal(t, 10.0, cfg.RateLimit)
	assert.Equal(t, SourceEngine, cfg.Source)
	assert.Equal(t, "localhost:9092", cfg.KafkaBroker)
	assert.Equal(t, "order-events", cfg.KafkaTopic)
	assert.False(t, cfg.RetryOnConflict)
}

func TestLoadConfigSource(t *testing.T) {
	t.Setenv("RELAYER_SOURCE", "kafka")
	t.Setenv("RELAYER_RETRY_ON_CONFLICT", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, SourceKafka, cfg.Source)
	assert.True(t, cfg.RetryOnConflict)

	t.Setenv("RELAYER_SOURCE", "carrier-pigeon")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigOverridesAndValidation(t *testing.T) {
	t.Setenv("RELAYER_SETTLER_ACCOUNT", "desk-1")
	t.Setenv("RELAYER_PRICE_RATIO", "0.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "desk-1", cfg.SettlerAccount)
	assert.True(t, cfg.PriceRatio.Equal(fpdecimal.FromFloat(0.5)))

	t.Setenv("RELAYER_PRICE_RATIO", "not-a-number")
	_, err = LoadConfig()
	assert.Error(t, err)

	t.Setenv("RELAYER_PRICE_RATIO", "-1.0")
	_, err = LoadConfig()
	assert.Error(t, err)
}
