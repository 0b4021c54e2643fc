package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/umarov/storefront/internal/database"
	"github.com/umarov/storefront/internal/models"
)

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%d", time.Now().UnixNano())
}

// InsertOrderParams describes the order row staged by the checkout
// transaction. TotalAmount must already include the delivery surcharge.
// PaymentCreatedAt stays null for payment methods that never initiate a
// payment.
type InsertOrderParams struct {
	UserID            int64
	Status            string
	DeliveryMethod    models.DeliveryMethod
	PaymentMethod     models.PaymentMethod
	PaymentStatus     string
	TotalAmount       decimal.Decimal
	DeliveryAddressID sql.NullInt64
	PaymentCreatedAt  sql.NullTime
}

// InsertOrder stages the order row in the caller's open transaction and
// returns it. Nothing is durable until the caller commits.
func InsertOrder(ctx context.Context, tx *sql.Tx, params InsertOrderParams) (*models.Order, error) {
	order := &models.Order{}

	query := `
		INSERT INTO orders (user_id, order_number, status, delivery_method, payment_method,
		                    payment_status, total_amount, delivery_address_id,
		                    payment_created_at, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW(), 1)
		RETURNING id, user_id, order_number, status, delivery_method, payment_method,
		          payment_status, total_amount, delivery_address_id, transaction_id,
		          payment_created_at, payment_processed_at, failure_reason,
		          created_at, updated_at, version`

	err := tx.QueryRowContext(ctx, query,
		params.UserID,
		generateOrderNumber(),
		params.Status,
		params.DeliveryMethod,
		params.PaymentMethod,
		params.PaymentStatus,
		params.TotalAmount,
		params.DeliveryAddressID,
		params.PaymentCreatedAt,
	).Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&order.DeliveryMethod,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&order.TotalAmount,
		&order.DeliveryAddressID,
		&order.TransactionID,
		&order.PaymentCreatedAt,
		&order.PaymentProcessedAt,
		&order.FailureReason,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	return order, nil
}

// InsertOrderItem stages one line of the order with the unit price captured
// at calculation time.
func InsertOrderItem(ctx context.Context, tx *sql.Tx, orderID, productID int64, quantity int, unitPrice decimal.Decimal) (*models.OrderItem, error) {
	item := &models.OrderItem{}
	subtotal := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))

	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, order_id, product_id, quantity, unit_price, subtotal, created_at`

	err := tx.QueryRowContext(ctx, query, orderID, productID, quantity, unitPrice, subtotal).Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductID,
		&item.Quantity,
		&item.UnitPrice,
		&item.Subtotal,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order item: %w", err)
	}

	return item, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT id, user_id, order_number, status, delivery_method, payment_method,
		       payment_status, total_amount, delivery_address_id, transaction_id,
		       payment_created_at, payment_processed_at, failure_reason,
		       created_at, updated_at, version
		FROM orders
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&order.DeliveryMethod,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&order.TotalAmount,
		&order.DeliveryAddressID,
		&order.TransactionID,
		&order.PaymentCreatedAt,
		&order.PaymentProcessedAt,
		&order.FailureReason,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := getOrderItems(ctx, db, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func getOrderItems(ctx context.Context, db *sql.DB, orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal, created_at
		FROM order_items
		WHERE order_id = $1`

	rows, err := db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func ListOrdersCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT id, order_number, status, delivery_method, payment_method,
		       payment_status, total_amount, created_at, updated_at, version
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.OrderNumber,
			&order.Status,
			&order.DeliveryMethod,
			&order.PaymentMethod,
			&order.PaymentStatus,
			&order.TotalAmount,
			&order.CreatedAt,
			&order.UpdatedAt,
			&order.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ClaimNextCreatedOrder picks the oldest order still in "created" for
// fulfillment, skipping rows another worker already holds.
func ClaimNextCreatedOrder(ctx context.Context, tx *sql.Tx) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT id, user_id, order_number, status, delivery_method, payment_method,
		       payment_status, total_amount, created_at, updated_at, version
		FROM orders
		WHERE status = $1
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1`

	err := tx.QueryRowContext(ctx, query, models.OrderStatusCreated).Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&order.DeliveryMethod,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&order.TotalAmount,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("claim next created order: %w", err)
	}

	return order, nil
}

func UpdateOrderStatus(ctx context.Context, tx *sql.Tx, orderID int64, status string) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2`,
		status, orderID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}

	return nil
}

// MarkOrderPaid applies the gateway's asynchronous result. paymentStatus is
// either "paid" or "test_paid" (sandbox traffic keeps a distinct terminal
// status). Only pending payments settle; a repeated or conflicting callback
// is rejected with ErrPaymentSettled.
func MarkOrderPaid(ctx context.Context, db *sql.DB, orderID int64, transactionID, paymentStatus string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET payment_status = $1,
		     transaction_id = $2,
		     payment_processed_at = NOW(),
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $3
		   AND payment_status = $4`,
		paymentStatus, transactionID, orderID, models.PaymentStatusPending)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}

	return settledOrMissing(ctx, db, result, orderID)
}

func MarkOrderPaymentFailed(ctx context.Context, db *sql.DB, orderID int64, reason string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET payment_status = $1,
		     failure_reason = $2,
		     payment_processed_at = NOW(),
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $3
		   AND payment_status = $4`,
		models.PaymentStatusFailed, reason, orderID, models.PaymentStatusPending)
	if err != nil {
		return fmt.Errorf("mark order payment failed: %w", err)
	}

	return settledOrMissing(ctx, db, result, orderID)
}

// settledOrMissing distinguishes the two zero-row outcomes of a guarded
// payment update: the order does not exist, or its payment already left
// pending.
func settledOrMissing(ctx context.Context, db *sql.DB, result sql.Result, orderID int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var current string
	err = db.QueryRowContext(ctx,
		`SELECT payment_status FROM orders WHERE id = $1`, orderID).Scan(&current)
	if err == sql.ErrNoRows {
		return database.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("check payment status: %w", err)
	}

	return fmt.Errorf("payment status is %s: %w", current, database.ErrPaymentSettled)
}
