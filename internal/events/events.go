package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is published after an order-placement transaction
// commits. Consumers (notifications, fulfillment) treat it as a fact.
type OrderCreatedEvent struct {
	EventID     string           `json:"event_id"`
	OrderID     int64            `json:"order_id"`
	OrderNumber string           `json:"order_number"`
	UserID      int64            `json:"user_id,omitempty"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Status      string           `json:"status"`
	Items       []OrderItemEvent `json:"items"`
	Timestamp   time.Time        `json:"timestamp"`
}

type OrderItemEvent struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}
