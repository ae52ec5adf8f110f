// Package relayer runs an automated settlement agent. It watches the crossed
// reports a pool engine emits after swaps and settles every flagged order,
// funding the counter asset from its own ledger account at a configured
// price ratio.
package relayer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/erain9/tickorder/pkg/core"
	"github.com/erain9/tickorder/pkg/custody"
	"github.com/erain9/tickorder/pkg/messaging"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"
)

// EngineProvider resolves pool ids to their engines. *server.PoolManager
// satisfies this.
type EngineProvider interface {
	GetEngine(poolID string) (*core.Engine, error)
}

// Relayer settles crossed orders at a rate-limited pace
type Relayer struct {
	cfg     *Config
	engines EngineProvider
	ledger  custody.Ledger
	limiter *rate.Limiter
	logger  zerolog.Logger
	reports chan *core.ScanReport
}

// New creates a relayer. Reports arrive through Submit and are drained by Run.
func New(cfg *Config, engines EngineProvider, ledger custody.Ledger, logger zerolog.Logger) *Relayer {
	return &Relayer{
		cfg:     cfg,
		engines: engines,
		ledger:  ledger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:  logger.With().Str("component", "relayer").Logger(),
		reports: make(chan *core.ScanReport, 64),
	}
}

// Submit enqueues a crossed report for settlement. Drops the report when the
// queue is full rather than blocking the swap path.
func (r *Relayer) Submit(report *core.ScanReport) {
	if report == nil || report.Empty() {
		return
	}

	select {
	case r.reports <- report:
	default:
		r.logger.Warn().
			Str("pool_id", report.PoolID).
			Int("orders", len(report.OrderIDs)).
			Msg("Report queue full, dropping crossed report")
	}
}

// Run drains the report queue until the context is canceled
func (r *Relayer) Run(ctx context.Context) error {
	r.logger.Info().
		Str("settler", r.cfg.SettlerAccount).
		Float64("rate_limit", r.cfg.RateLimit).
		Msg("Relayer started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Relayer stopping")
			return ctx.Err()
		case report := <-r.reports:
			r.settleReport(ctx, report)
		}
	}
}

// ConsumeCrossed reads the event topic and feeds crossed reports into the
// settlement queue. This lets the relayer run apart from the engine process,
// picking reports off the broker instead of the in-process hook.
func (r *Relayer) ConsumeCrossed(ctx context.Context) error {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: []string{r.cfg.KafkaBroker},
		Topic:   r.cfg.KafkaTopic,
		GroupID: "tickorder-relayer",
	})
	defer reader.Close()

	r.logger.Info().
		Str("broker", r.cfg.KafkaBroker).
		Str("topic", r.cfg.KafkaTopic).
		Msg("Consuming crossed events")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		report, ok := decodeCrossedEvent(msg.Value)
		if !ok {
			continue
		}
		r.Submit(report)
	}
}

// eventEnvelope covers both wire shapes on the event topic: the sarama queue
// wraps payloads under a kind field, the kafka-go sender publishes the
// messages bare (crossed reports carry no kind of their own).
type eventEnvelope struct {
	Kind    string                    `json:"kind"`
	Crossed *messaging.CrossedMessage `json:"crossed"`

	PoolID          string   `json:"poolID"`
	FromTick        int64    `json:"fromTick"`
	ToTick          int64    `json:"toTick"`
	TradeZeroForOne bool     `json:"tradeZeroForOne"`
	OrderIDs        []string `json:"orderIDs"`
}

func decodeCrossedEvent(value []byte) (*core.ScanReport, bool) {
	var env eventEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, false
	}

	crossed := env.Crossed
	if crossed == nil {
		if env.Kind != "" || len(env.OrderIDs) == 0 {
			return nil, false
		}
		crossed = &messaging.CrossedMessage{
			PoolID:          env.PoolID,
			FromTick:        env.FromTick,
			ToTick:          env.ToTick,
			TradeZeroForOne: env.TradeZeroForOne,
			OrderIDs:        env.OrderIDs,
		}
	}

	return &core.ScanReport{
		PoolID:          crossed.PoolID,
		FromTick:        crossed.FromTick,
		ToTick:          crossed.ToTick,
		TradeZeroForOne: crossed.TradeZeroForOne,
		OrderIDs:        crossed.OrderIDs,
	}, true
}

func (r *Relayer) settleReport(ctx context.Context, report *core.ScanReport) {
	engine, err := r.engines.GetEngine(report.PoolID)
	if err != nil {
		r.logger.Error().Err(err).Str("pool_id", report.PoolID).Msg("Unknown pool in crossed report")
		return
	}

	var retry []string
	for _, orderID := range report.OrderIDs {
		err := r.settleOrder(ctx, engine, orderID)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return
		case r.cfg.RetryOnConflict && isConflict(err):
			retry = append(retry, orderID)
		}
	}

	// A conflicted order may have been released by a failed competing
	// settlement or re-entered range while the batch drained; one more
	// attempt each.
	for _, orderID := range retry {
		err := r.settleOrder(ctx, engine, orderID)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
	}
}

func isConflict(err error) bool {
	return errors.Is(err, core.ErrInvalidTransition) || errors.Is(err, core.ErrTriggerNotMet)
}

// settleOrder attempts one settlement. Losing a race to another settler or a
// trigger that no longer holds are normal outcomes, logged at debug only;
// the error still comes back so the report loop can decide on a retry.
func (r *Relayer) settleOrder(ctx context.Context, engine *core.Engine, orderID string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	order := engine.GetOrder(orderID)
	if order == nil || !order.IsOpen() {
		return nil
	}

	counterAmount := order.AmountIn().Mul(r.cfg.PriceRatio)
	callback := custody.NewLedgerSettler(r.ledger, r.cfg.SettlerAccount, engine.Account(), counterAmount)

	delivered, err := engine.Settle(ctx, r.cfg.SettlerAccount, orderID, nil, callback)
	if err != nil {
		switch {
		case isConflict(err):
			r.logger.Debug().Err(err).Str("order_id", orderID).Msg("Order no longer settleable")
			return err
		case errors.Is(err, custody.ErrInsufficientBalance):
			r.logger.Error().Err(err).Str("order_id", orderID).Msg("Settler account underfunded")
			return err
		default:
			r.logger.Error().Err(err).Str("order_id", orderID).Msg("Settlement failed")
			return err
		}
	}

	r.logger.Info().
		Str("order_id", orderID).
		Str("amount_in", order.AmountIn().String()).
		Str("delivered", delivered.String()).
		Msg("Settled order")
	return nil
}
