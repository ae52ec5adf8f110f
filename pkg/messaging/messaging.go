package messaging

// EventSender defines an interface for publishing order lifecycle events.
// This keeps the core package decoupled from the concrete transport
// (kafka-go in pkg/messaging/kafka, sarama in pkg/db/queue).
type EventSender interface {
	SendOrderEvent(event *OrderEventMessage) error
	SendCrossedEvent(event *CrossedMessage) error
}

// OrderEventKind distinguishes the three per-order audit events
type OrderEventKind string

// Order event kinds
const (
	EventOrderPlaced   OrderEventKind = "ORDER_PLACED"
	EventOrderExecuted OrderEventKind = "ORDER_EXECUTED"
	EventOrderCanceled OrderEventKind = "ORDER_CANCELED"
)

// OrderEventMessage is the audit record published for order placement,
// settlement and cancellation.
type OrderEventMessage struct {
	Kind        OrderEventKind `json:"kind"`
	PoolID      string         `json:"poolID"`
	OrderID     string         `json:"orderID"`
	Owner       string         `json:"owner"`
	OrderType   string         `json:"orderType"`
	AmountIn    string         `json:"amountIn"`
	TriggerTick int64          `json:"triggerTick"`
	// Settler and AmountOut are set on ORDER_EXECUTED events only
	Settler   string `json:"settler,omitempty"`
	AmountOut string `json:"amountOut,omitempty"`
}

// CrossedMessage is the batch event published once per scan, listing every
// order id detected as eligible by the trade's tick movement.
type CrossedMessage struct {
	PoolID          string   `json:"poolID"`
	FromTick        int64    `json:"fromTick"`
	ToTick          int64    `json:"toTick"`
	TradeZeroForOne bool     `json:"tradeZeroForOne"`
	OrderIDs        []string `json:"orderIDs"`
}
