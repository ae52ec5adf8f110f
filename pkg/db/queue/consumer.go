package queue

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/erain9/tickorder/pkg/messaging"
)

// EventHandler receives decoded events from the queue. Exactly one of the
// two arguments is non-nil per invocation.
type EventHandler func(order *messaging.OrderEventMessage, crossed *messaging.CrossedMessage) error

// QueueMessageConsumer consumes order lifecycle events from Kafka
type QueueMessageConsumer struct {
	consumer  sarama.Consumer
	partition sarama.PartitionConsumer
	closing   chan struct{}
}

// NewQueueMessageConsumer creates a consumer for the configured topic
func NewQueueMessageConsumer() (*QueueMessageConsumer, error) {
	consumer, err := sarama.NewConsumer([]string{brokerList}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	partition, err := consumer.ConsumePartition(topic, 0, sarama.OffsetNewest)
	if err != nil {
		_ = consumer.Close()
		return nil, fmt.Errorf("failed to consume partition: %w", err)
	}

	return &QueueMessageConsumer{
		consumer:  consumer,
		partition: partition,
		closing:   make(chan struct{}),
	}, nil
}

// ConsumeEvents blocks, decoding envelopes and handing them to the handler
// until the consumer is closed.
func (c *QueueMessageConsumer) ConsumeEvents(handler EventHandler) error {
	for {
		select {
		case msg, ok := <-c.partition.Messages():
			if !ok {
				return nil
			}

			var env envelope
			if err := json.Unmarshal(msg.Value, &env); err != nil {
				continue
			}

			if err := handler(env.Order, env.Crossed); err != nil {
				return err
			}
		case err := <-c.partition.Errors():
			return err
		case <-c.closing:
			return nil
		}
	}
}

// Close stops the consumer
func (c *QueueMessageConsumer) Close() error {
	close(c.closing)
	if err := c.partition.Close(); err != nil {
		return err
	}
	return c.consumer.Close()
}
