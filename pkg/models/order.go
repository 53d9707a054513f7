package models

import "time"

// OrderSide is the direction of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Valid reports whether the side is part of the canonical vocabulary
func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// OrderType is the canonical order type vocabulary
type OrderType string

const (
	OrderTypeMarket       OrderType = "market"
	OrderTypeLimit        OrderType = "limit"
	OrderTypeStop         OrderType = "stop"
	OrderTypeStopLimit    OrderType = "stop_limit"
	OrderTypeTrailingStop OrderType = "trailing_stop"
)

// Valid reports whether the order type is part of the canonical vocabulary
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStop, OrderTypeStopLimit, OrderTypeTrailingStop:
		return true
	}
	return false
}

// TimeInForce is the canonical time-in-force vocabulary
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc"
	TimeInForceOPG TimeInForce = "opg"
	TimeInForceCLS TimeInForce = "cls"
	TimeInForceIOC TimeInForce = "ioc"
	TimeInForceFOK TimeInForce = "fok"
)

// Valid reports whether the TIF is part of the canonical vocabulary
func (t TimeInForce) Valid() bool {
	switch t {
	case TimeInForceDay, TimeInForceGTC, TimeInForceOPG, TimeInForceCLS, TimeInForceIOC, TimeInForceFOK:
		return true
	}
	return false
}

// OrderClass distinguishes simple orders from bracket/OCO groups
type OrderClass string

const (
	OrderClassSimple  OrderClass = "simple"
	OrderClassBracket OrderClass = "bracket"
	OrderClassOCO     OrderClass = "oco"
)

// OrderStatus is the canonical order state machine:
// NEW -> PENDING -> ACCEPTED -> PARTIALLY_FILLED -> FILLED, with
// CANCELLED, REJECTED, EXPIRED and REPLACED as alternate terminal states.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusAccepted        OrderStatus = "ACCEPTED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusReplaced        OrderStatus = "REPLACED"
)

var statusRank = map[OrderStatus]int{
	OrderStatusNew:             0,
	OrderStatusPending:         1,
	OrderStatusAccepted:        2,
	OrderStatusPartiallyFilled: 3,
	OrderStatusFilled:          4,
	OrderStatusCancelled:       4,
	OrderStatusRejected:        4,
	OrderStatusExpired:         4,
	OrderStatusReplaced:        4,
}

// IsTerminal reports whether no further status transitions are possible
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired, OrderStatusReplaced:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is a legal
// progression. Forward jumps are allowed (a market order can go straight
// from NEW to FILLED); moving backwards is not. PARTIALLY_FILLED may repeat
// as successive fills arrive.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if s == next {
		return s == OrderStatusPartiallyFilled
	}
	sr, ok := statusRank[s]
	if !ok {
		return false
	}
	nr, ok := statusRank[next]
	if !ok {
		return false
	}
	return nr > sr
}

// TakeProfit is the take-profit leg of a bracket order
type TakeProfit struct {
	LimitPrice float64 `json:"limit_price"`
}

// StopLoss is the stop-loss leg of a bracket or OCO order
type StopLoss struct {
	StopPrice  float64 `json:"stop_price"`
	LimitPrice float64 `json:"limit_price,omitempty"`
}

// UnifiedOrder is the canonical, vendor-agnostic order request accepted by
// the router. AssetClass may be left empty; the router classifies the symbol.
// ClientOrderID doubles as an idempotency token and is generated when empty.
type UnifiedOrder struct {
	Symbol        string      `json:"symbol"`
	AssetClass    AssetClass  `json:"asset_class,omitempty"`
	Side          OrderSide   `json:"side"`
	Type          OrderType   `json:"type"`
	Qty           float64     `json:"qty,omitempty"`
	Notional      float64     `json:"notional,omitempty"`
	TimeInForce   TimeInForce `json:"time_in_force"`
	LimitPrice    float64     `json:"limit_price,omitempty"`
	StopPrice     float64     `json:"stop_price,omitempty"`
	TrailPrice    float64     `json:"trail_price,omitempty"`
	TrailPercent  float64     `json:"trail_percent,omitempty"`
	ExtendedHours bool        `json:"extended_hours,omitempty"`
	ClientOrderID string      `json:"client_order_id,omitempty"`
	OrderClass    OrderClass  `json:"order_class,omitempty"`
	TakeProfit    *TakeProfit `json:"take_profit,omitempty"`
	StopLoss      *StopLoss   `json:"stop_loss,omitempty"`
}

// OrderResponse is the canonical order state returned by adapters. It is
// created when a venue accepts a submission and mutated by status pushes
// until a terminal status is reached.
type OrderResponse struct {
	BrokerOrderID  string      `json:"broker_order_id"`
	ClientOrderID  string      `json:"client_order_id,omitempty"`
	Broker         BrokerID    `json:"broker"`
	Symbol         string      `json:"symbol"`
	AssetClass     AssetClass  `json:"asset_class,omitempty"`
	Side           OrderSide   `json:"side"`
	Type           OrderType   `json:"type"`
	Qty            float64     `json:"qty,omitempty"`
	Notional       float64     `json:"notional,omitempty"`
	TimeInForce    TimeInForce `json:"time_in_force,omitempty"`
	LimitPrice     float64     `json:"limit_price,omitempty"`
	StopPrice      float64     `json:"stop_price,omitempty"`
	TrailPrice     float64     `json:"trail_price,omitempty"`
	TrailPercent   float64     `json:"trail_percent,omitempty"`
	ExtendedHours  bool        `json:"extended_hours,omitempty"`
	OrderClass     OrderClass  `json:"order_class,omitempty"`
	Status         OrderStatus `json:"status"`
	FilledQty      float64     `json:"filled_qty"`
	FilledAvgPrice float64     `json:"filled_avg_price,omitempty"`
	Legs           []OrderResponse `json:"legs,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at,omitempty"`
	SubmittedAt    time.Time   `json:"submitted_at,omitempty"`
	FilledAt       *time.Time  `json:"filled_at,omitempty"`
	CanceledAt     *time.Time  `json:"canceled_at,omitempty"`
	ExpiredAt      *time.Time  `json:"expired_at,omitempty"`
	FailedAt       *time.Time  `json:"failed_at,omitempty"`
	ReplacedAt     *time.Time  `json:"replaced_at,omitempty"`
	ReplacedBy     string      `json:"replaced_by,omitempty"`
}

// OrderUpdate is a streamed order mutation event from a venue
type OrderUpdate struct {
	Event     string         `json:"event"`
	Broker    BrokerID       `json:"broker"`
	Order     *OrderResponse `json:"order"`
	FillPrice float64        `json:"fill_price,omitempty"`
	FillQty   float64        `json:"fill_qty,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// OrderFilter narrows GetOrders results
type OrderFilter struct {
	Status  string    `json:"status,omitempty"` // open, closed or all
	Symbols []string  `json:"symbols,omitempty"`
	After   time.Time `json:"after,omitempty"`
	Until   time.Time `json:"until,omitempty"`
	Limit   int       `json:"limit,omitempty"`
}

// OrderPatch carries the mutable fields of an order modification
type OrderPatch struct {
	Qty          float64     `json:"qty,omitempty"`
	LimitPrice   float64     `json:"limit_price,omitempty"`
	StopPrice    float64     `json:"stop_price,omitempty"`
	TrailPrice   float64     `json:"trail_price,omitempty"`
	TimeInForce  TimeInForce `json:"time_in_force,omitempty"`
	ClientOrderID string     `json:"client_order_id,omitempty"`
}
