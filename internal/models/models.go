package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type DeliveryMethod string

const (
	DeliveryPickup  DeliveryMethod = "pickup"
	DeliveryCourier DeliveryMethod = "courier"
	DeliveryPost    DeliveryMethod = "post"
	DeliveryPremium DeliveryMethod = "premium"
)

func (m DeliveryMethod) Valid() bool {
	switch m {
	case DeliveryPickup, DeliveryCourier, DeliveryPost, DeliveryPremium:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentCard
}

// RequiresGateway reports whether placing an order with this payment
// method must initiate an online payment before the order commits.
func (m PaymentMethod) RequiresGateway() bool {
	return m == PaymentCard
}

const (
	OrderStatusCreated   = "created"
	OrderStatusApproved  = "approved"
	OrderStatusCancelled = "cancelled"
	OrderStatusDelivered = "delivered"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusTestPaid = "test_paid"
	PaymentStatusFailed   = "failed"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

type Address struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	City      string    `json:"city"`
	Street    string    `json:"street"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
}

// Order keeps UserID and DeliveryAddressID nullable: an order outlives
// deletion of the account or address it was placed with.
type Order struct {
	ID                 int64           `json:"id"`
	UserID             sql.NullInt64   `json:"user_id"`
	OrderNumber        string          `json:"order_number"`
	Status             string          `json:"status"`
	DeliveryMethod     DeliveryMethod  `json:"delivery_method"`
	PaymentMethod      PaymentMethod   `json:"payment_method"`
	PaymentStatus      string          `json:"payment_status"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	DeliveryAddressID  sql.NullInt64   `json:"delivery_address_id"`
	TransactionID      sql.NullString  `json:"transaction_id"`
	PaymentCreatedAt   sql.NullTime    `json:"payment_created_at"`
	PaymentProcessedAt sql.NullTime    `json:"payment_processed_at"`
	FailureReason      sql.NullString  `json:"failure_reason"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Version            int             `json:"version"`
	Items              []OrderItem     `json:"items,omitempty"`
}

// OrderItem.UnitPrice is the catalog price captured at purchase time and
// never changes with later catalog updates.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
}
