package queue

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/erain9/tickorder/pkg/messaging"
)

var (
	brokerList = "localhost:9092"
	topic      = "order-events"
	maxRetry   = 5
)

// SetBrokerList overrides the Kafka broker address
func SetBrokerList(brokers string) {
	brokerList = brokers
}

// SetTopic overrides the Kafka topic
func SetTopic(t string) {
	topic = t
}

// envelope wraps both event shapes under one topic so consumers can
// dispatch on the kind field.
type envelope struct {
	Kind    string                       `json:"kind"`
	Order   *messaging.OrderEventMessage `json:"order,omitempty"`
	Crossed *messaging.CrossedMessage    `json:"crossed,omitempty"`
}

// QueueMessageSender implements the EventSender interface for sending
// order lifecycle events to Kafka through a sarama sync producer.
type QueueMessageSender struct {
	producer sarama.SyncProducer
}

// NewQueueMessageSender creates a sender with its own producer connection
func NewQueueMessageSender() (*QueueMessageSender, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = maxRetry
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer([]string{brokerList}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &QueueMessageSender{producer: producer}, nil
}

// NewQueueMessageSenderWithProducer creates a sender around an existing
// producer. Used by tests with a mock producer.
func NewQueueMessageSenderWithProducer(producer sarama.SyncProducer) *QueueMessageSender {
	return &QueueMessageSender{producer: producer}
}

// SendOrderEvent sends a per-order audit event to the Kafka queue
func (q *QueueMessageSender) SendOrderEvent(event *messaging.OrderEventMessage) error {
	return q.send(event.OrderID, &envelope{Kind: string(event.Kind), Order: event})
}

// SendCrossedEvent sends a batch crossing report to the Kafka queue
func (q *QueueMessageSender) SendCrossedEvent(event *messaging.CrossedMessage) error {
	return q.send(event.PoolID, &envelope{Kind: "ORDERS_CROSSED", Crossed: event})
}

func (q *QueueMessageSender) send(key string, env *envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := q.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	return nil
}

// Close closes the underlying producer
func (q *QueueMessageSender) Close() error {
	return q.producer.Close()
}

// Ensure QueueMessageSender implements EventSender
var _ messaging.EventSender = (*QueueMessageSender)(nil)
