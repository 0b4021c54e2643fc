package api

import (
	"github.com/umarov/storefront/internal/models"
	"github.com/umarov/storefront/internal/payment"
)

type createUserRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required"`
}

type createProductRequest struct {
	SKU         string `json:"sku" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Price       string `json:"price" binding:"required"`
	Stock       int    `json:"stock" binding:"min=0"`
}

type adjustStockRequest struct {
	StockQuantity int `json:"stock_quantity" binding:"min=0"`
	Version       int `json:"version" binding:"required"`
}

type decrementStockRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

type createAddressRequest struct {
	UserID  int64  `json:"user_id" binding:"required"`
	City    string `json:"city" binding:"required"`
	Street  string `json:"street" binding:"required"`
	Comment string `json:"comment"`
}

type placeOrderItem struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required"`
}

type placeOrderRequest struct {
	UserID            int64                 `json:"user_id" binding:"required"`
	Items             []placeOrderItem      `json:"items" binding:"required,min=1"`
	DeliveryMethod    models.DeliveryMethod `json:"delivery_method" binding:"required"`
	PaymentMethod     models.PaymentMethod  `json:"payment_method" binding:"required"`
	DeliveryAddressID int64                 `json:"delivery_address_id"`
}

type placeOrderResponse struct {
	Order       *models.Order    `json:"order"`
	PaymentData *payment.Payload `json:"payment_data,omitempty"`
}

type paymentCallbackRequest struct {
	OrderID       int64  `json:"order_id" binding:"required"`
	Status        string `json:"status" binding:"required"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}
