package kafka

import (
	"context"

	"github.com/erain9/tickorder/pkg/db/queue"
	"github.com/erain9/tickorder/pkg/messaging"
	"github.com/rs/zerolog"
)

// SetupConsumer initializes and starts the Kafka consumer that pretty-prints
// order lifecycle events. It is a developer aid; the server runs fine
// without a reachable broker.
func SetupConsumer(ctx context.Context, logger zerolog.Logger) (*queue.QueueMessageConsumer, error) {
	kafkaConsumer, err := queue.NewQueueMessageConsumer()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create Kafka consumer - continuing without Kafka support")
		return nil, err
	}

	go func() {
		logger.Info().Msg("Starting Kafka consumer")
		err := kafkaConsumer.ConsumeEvents(func(order *messaging.OrderEventMessage, crossed *messaging.CrossedMessage) error {
			switch {
			case order != nil:
				logger.Info().
					Str("kind", string(order.Kind)).
					Str("order_id", order.OrderID).
					Str("owner", order.Owner).
					Str("order_type", order.OrderType).
					Str("amount_in", order.AmountIn).
					Int64("trigger_tick", order.TriggerTick).
					Str("amount_out", order.AmountOut).
					Msg("Received order event")
			case crossed != nil:
				logger.Info().
					Str("pool_id", crossed.PoolID).
					Int64("from_tick", crossed.FromTick).
					Int64("to_tick", crossed.ToTick).
					Bool("trade_zero_for_one", crossed.TradeZeroForOne).
					Strs("order_ids", crossed.OrderIDs).
					Msg("Received crossed event")
			}
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	return kafkaConsumer, nil
}
