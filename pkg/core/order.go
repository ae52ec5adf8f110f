package core

import (
	"encoding/json"
	"time"

	"github.com/nikolaydubina/fpdecimal"
)

// OrderType represents the conditional order type
type OrderType string

// Order types
const (
	TypeStopLoss   OrderType = "STOP_LOSS"
	TypeBuyStop    OrderType = "BUY_STOP"
	TypeBuyLimit   OrderType = "BUY_LIMIT"
	TypeTakeProfit OrderType = "TAKE_PROFIT"
)

// Valid reports whether the order type is one of the four supported types
func (t OrderType) Valid() bool {
	switch t {
	case TypeStopLoss, TypeBuyStop, TypeBuyLimit, TypeTakeProfit:
		return true
	default:
		return false
	}
}

// SellsToken0 returns true for order types that sell the pool's token0.
// STOP_LOSS and BUY_STOP custody token0; BUY_LIMIT and TAKE_PROFIT custody token1.
func (t OrderType) SellsToken0() bool {
	return t == TypeStopLoss || t == TypeBuyStop
}

// Status represents the lifecycle state of an order
type Status string

// Order statuses. EXECUTED and CANCELED are terminal.
const (
	StatusOpen     Status = "OPEN"
	StatusExecuted Status = "EXECUTED"
	StatusCanceled Status = "CANCELED"
)

// Terminal reports whether the status permits no further transitions
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusCanceled
}

// Order stores information about a conditional order resting against a pool.
// All fields except status are immutable after creation; amendment is not
// supported, so bucket membership never changes while the order is OPEN.
type Order struct {
	id          string
	owner       string
	orderType   OrderType
	amountIn    fpdecimal.Decimal
	triggerTick int64
	zeroForOne  bool
	status      Status
	createdAt   time.Time
}

// NewOrder creates a new OPEN order. The zeroForOne direction flag is derived
// once from the order type and fixed for the order's lifetime.
func NewOrder(orderID, owner string, orderType OrderType, amountIn fpdecimal.Decimal, triggerTick int64) (*Order, error) {
	if !orderType.Valid() {
		return nil, ErrInvalidOrderType
	}

	if amountIn.LessThanOrEqual(fpdecimal.Zero) {
		return nil, ErrInvalidAmount
	}

	return &Order{
		id:          orderID,
		owner:       owner,
		orderType:   orderType,
		amountIn:    amountIn,
		triggerTick: triggerTick,
		zeroForOne:  orderType.SellsToken0(),
		status:      StatusOpen,
		createdAt:   time.Now().UTC(),
	}, nil
}

// ID returns the order id
func (o *Order) ID() string {
	return o.id
}

// Owner returns the placing user's identity
func (o *Order) Owner() string {
	return o.owner
}

// OrderType returns the conditional order type
func (o *Order) OrderType() OrderType {
	return o.orderType
}

// AmountIn returns the custodied input amount
func (o *Order) AmountIn() fpdecimal.Decimal {
	return o.amountIn
}

// TriggerTick returns the trigger tick the order rests at
func (o *Order) TriggerTick() int64 {
	return o.triggerTick
}

// ZeroForOne returns true if the order sells the pool's token0
func (o *Order) ZeroForOne() bool {
	return o.zeroForOne
}

// Status returns the current lifecycle status
func (o *Order) Status() Status {
	return o.status
}

// IsOpen returns true while the order has not reached a terminal status
func (o *Order) IsOpen() bool {
	return o.status == StatusOpen
}

// CreatedAt returns the creation timestamp
func (o *Order) CreatedAt() time.Time {
	return o.createdAt
}

// SetStatus transitions the order's status. OPEN is the only state
// transitions are allowed from; terminal statuses never change again.
func (o *Order) SetStatus(status Status) error {
	if o.status != StatusOpen {
		return ErrInvalidTransition
	}

	o.status = status
	return nil
}

type orderJSON struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	OrderType   OrderType `json:"orderType"`
	AmountIn    string    `json:"amountIn"`
	TriggerTick int64     `json:"triggerTick"`
	ZeroForOne  bool      `json:"zeroForOne"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON{
		ID:          o.id,
		Owner:       o.owner,
		OrderType:   o.orderType,
		AmountIn:    o.amountIn.String(),
		TriggerTick: o.triggerTick,
		ZeroForOne:  o.zeroForOne,
		Status:      o.status,
		CreatedAt:   o.createdAt,
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Order
func (o *Order) UnmarshalJSON(data []byte) error {
	var oj orderJSON
	if err := json.Unmarshal(data, &oj); err != nil {
		return err
	}

	amount, err := fpdecimal.FromString(oj.AmountIn)
	if err != nil {
		amount = fpdecimal.Zero
	}

	o.id = oj.ID
	o.owner = oj.Owner
	o.orderType = oj.OrderType
	o.amountIn = amount
	o.triggerTick = oj.TriggerTick
	o.zeroForOne = oj.ZeroForOne
	o.status = oj.Status
	o.createdAt = oj.CreatedAt

	return nil
}

// String implements Stringer interface
func (o *Order) String() string {
	j, _ := o.MarshalJSON()
	return string(j)
}
