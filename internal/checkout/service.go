package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/umarov/storefront/internal/database"
	"github.com/umarov/storefront/internal/models"
	"github.com/umarov/storefront/internal/payment"
	"github.com/umarov/storefront/internal/pricing"
	"github.com/umarov/storefront/internal/store"
)

var (
	ErrInvalidQuantity      = errors.New("quantity must be greater than zero")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrEmptyCart            = errors.New("cart has no items")
)

// LineItem is one cart position handed over by the cart subsystem.
type LineItem struct {
	ProductID int64
	Quantity  int
}

type PlaceOrderRequest struct {
	UserID            int64
	Items             []LineItem
	DeliveryMethod    models.DeliveryMethod
	PaymentMethod     models.PaymentMethod
	DeliveryAddressID int64
}

// PlaceOrderResult carries the committed order and, for card payments, the
// gateway's initiation payload for the client to complete out-of-band.
type PlaceOrderResult struct {
	Order       *models.Order
	PaymentData *payment.Payload
}

// EventPublisher publishes the post-commit order.created event. Best
// effort only; it never participates in the placement transaction.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
}

// ProductInvalidator drops cached product reads whose stock just changed.
type ProductInvalidator interface {
	Invalidate(ctx context.Context, productIDs ...int64)
}

type Service struct {
	db          *sql.DB
	gateway     payment.Gateway
	calc        *pricing.Calculator
	publisher   EventPublisher
	invalidator ProductInvalidator
	logger      *zap.Logger
}

func NewService(db *sql.DB, gateway payment.Gateway, calc *pricing.Calculator, logger *zap.Logger) *Service {
	return &Service{
		db:      db,
		gateway: gateway,
		calc:    calc,
		logger:  logger,
	}
}

// SetPublisher and SetInvalidator attach optional post-commit
// collaborators; the service runs without either.
func (s *Service) SetPublisher(p EventPublisher)       { s.publisher = p }
func (s *Service) SetInvalidator(i ProductInvalidator) { s.invalidator = i }

// PlaceOrder runs the whole placement workflow as one atomic unit: user
// check, stock reservation, pricing, order + item persistence, and, for
// card payments, gateway initiation. Any failure leaves the store exactly
// as it was before the call.
//
// The gateway is called while the transaction is still open and commit
// happens only on its success branch; the gateway itself is not a
// transactional participant (it can succeed while the commit later fails),
// which is why the payload is returned rather than persisted here. There
// is deliberately no automatic retry around this transaction: a retry
// after the gateway call would risk double payment initiation.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, req.PaymentMethod)
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, ErrInvalidQuantity)
		}
	}

	var result PlaceOrderResult

	opts := database.TxOptions{IsolationLevel: sql.LevelReadCommitted}
	err := database.WithTransaction(ctx, s.db, opts, func(tx *sql.Tx) error {
		if err := store.UserExists(ctx, tx, req.UserID); err != nil {
			return err
		}

		lines := make([]pricing.Line, 0, len(req.Items))
		unitPrices := make(map[int64]decimal.Decimal, len(req.Items))
		for _, item := range req.Items {
			product, err := store.ReserveStock(ctx, tx, item.ProductID, item.Quantity)
			if err != nil {
				return fmt.Errorf("product %d: %w", item.ProductID, err)
			}
			if err := store.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("product %d: %w", item.ProductID, err)
			}
			unitPrices[item.ProductID] = product.Price
			lines = append(lines, pricing.Line{UnitPrice: product.Price, Quantity: item.Quantity})
		}

		quote, err := s.calc.Quote(lines, req.DeliveryMethod)
		if err != nil {
			return err
		}

		order, err := store.InsertOrder(ctx, tx, store.InsertOrderParams{
			UserID:            req.UserID,
			Status:            models.OrderStatusCreated,
			DeliveryMethod:    req.DeliveryMethod,
			PaymentMethod:     req.PaymentMethod,
			PaymentStatus:     models.PaymentStatusPending,
			TotalAmount:       quote.Total,
			DeliveryAddressID: sql.NullInt64{Int64: req.DeliveryAddressID, Valid: req.DeliveryAddressID != 0},
			PaymentCreatedAt:  sql.NullTime{Time: time.Now().UTC(), Valid: req.PaymentMethod.RequiresGateway()},
		})
		if err != nil {
			return err
		}

		for _, item := range req.Items {
			orderItem, err := store.InsertOrderItem(ctx, tx, order.ID, item.ProductID, item.Quantity, unitPrices[item.ProductID])
			if err != nil {
				return err
			}
			order.Items = append(order.Items, *orderItem)
		}

		if req.PaymentMethod.RequiresGateway() {
			// Charged amount is the delivery-inclusive total the customer
			// sees at checkout, never the bare subtotal.
			payload, err := s.gateway.CreatePayment(ctx, order.ID, quote.Total)
			if err != nil {
				return err
			}
			result.PaymentData = payload
		}

		result.Order = order
		return nil
	})
	if err != nil {
		s.logger.Warn("order placement rolled back",
			zap.Int64("user_id", req.UserID),
			zap.String("delivery_method", string(req.DeliveryMethod)),
			zap.String("payment_method", string(req.PaymentMethod)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("order placed",
		zap.Int64("order_id", result.Order.ID),
		zap.Int64("user_id", req.UserID),
		zap.String("total_amount", result.Order.TotalAmount.String()),
		zap.String("payment_method", string(req.PaymentMethod)))

	s.afterCommit(ctx, result.Order, req.Items)

	return &result, nil
}

// afterCommit runs the best-effort side effects. Failures here are logged
// and never surfaced: the order is already durable.
func (s *Service) afterCommit(ctx context.Context, order *models.Order, items []LineItem) {
	if s.invalidator != nil {
		ids := make([]int64, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductID)
		}
		s.invalidator.Invalidate(ctx, ids...)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
			s.logger.Error("publish order.created",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
		}
	}
}
