package integration

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/umarov/storefront/internal/checkout"
	"github.com/umarov/storefront/internal/database"
	"github.com/umarov/storefront/internal/models"
	"github.com/umarov/storefront/internal/store"
)

func placeCashOrder(t *testing.T, db *sql.DB, userID, productID int64, quantity int) *models.Order {
	t.Helper()

	svc := newCheckoutService(db, new(mockGateway))
	result, err := svc.PlaceOrder(context.Background(), checkout.PlaceOrderRequest{
		UserID:         userID,
		Items:          []checkout.LineItem{{ProductID: productID, Quantity: quantity}},
		DeliveryMethod: models.DeliveryPickup,
		PaymentMethod:  models.PaymentCash,
	})
	if err != nil {
		t.Fatalf("Place order: %v", err)
	}
	return result.Order
}

func TestGetOrderWithItems(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, "orders1@example.com", "Test User")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	product, err := store.CreateProduct(ctx, db, "TEST-ORD-001", "Product 1", "Test", decimal.NewFromInt(100), 50)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	placed := placeCashOrder(t, db, user.ID, product.ID, 5)

	order, err := store.GetOrder(ctx, db, placed.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}

	if !strings.HasPrefix(order.OrderNumber, "ORD-") {
		t.Errorf("Unexpected order number format: %s", order.OrderNumber)
	}
	if order.Status != models.OrderStatusCreated {
		t.Errorf("Expected status created, got %s", order.Status)
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		t.Errorf("Expected payment status pending, got %s", order.PaymentStatus)
	}
	if len(order.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(order.Items))
	}
	if order.Items[0].ProductID != product.ID {
		t.Errorf("Expected product id %d, got %d", product.ID, order.Items[0].ProductID)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected total 500, got %s", order.TotalAmount)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := store.GetOrder(context.Background(), db, 99999)
	if !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected order not found error, got: %v", err)
	}
}

func TestListOrdersCursor(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, "orders2@example.com", "Test User")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	product, err := store.CreateProduct(ctx, db, "TEST-ORD-002", "Product 2", "Test", decimal.NewFromInt(100), 100)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	for i := 0; i < 15; i++ {
		placeCashOrder(t, db, user.ID, product.ID, 1)
	}

	page1, err := store.ListOrdersCursor(ctx, db, user.ID, "", 10)
	if err != nil {
		t.Fatalf("List orders page 1: %v", err)
	}

	orders1, ok := page1.Items.([]models.Order)
	if !ok {
		t.Fatalf("Unexpected page items type: %T", page1.Items)
	}
	if len(orders1) != 10 {
		t.Errorf("Expected 10 orders on page 1, got %d", len(orders1))
	}
	if !page1.HasMore {
		t.Error("Page 1 should have more results")
	}
	if page1.NextCursor == "" {
		t.Error("Page 1 should have a next cursor")
	}

	page2, err := store.ListOrdersCursor(ctx, db, user.ID, page1.NextCursor, 10)
	if err != nil {
		t.Fatalf("List orders page 2: %v", err)
	}

	orders2, ok := page2.Items.([]models.Order)
	if !ok {
		t.Fatalf("Unexpected page items type: %T", page2.Items)
	}
	if len(orders2) != 5 {
		t.Errorf("Expected 5 orders on page 2, got %d", len(orders2))
	}
	if page2.HasMore {
		t.Error("Page 2 should not have more results")
	}
}

func TestClaimNextCreatedOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, "orders3@example.com", "Test User")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	product, err := store.CreateProduct(ctx, db, "TEST-ORD-003", "Product 3", "Test", decimal.NewFromInt(100), 50)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	first := placeCashOrder(t, db, user.ID, product.ID, 1)
	second := placeCashOrder(t, db, user.ID, product.ID, 1)

	claim := func() (*models.Order, error) {
		var claimed *models.Order
		err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
			order, err := store.ClaimNextCreatedOrder(ctx, tx)
			if err != nil {
				return err
			}
			if err := store.UpdateOrderStatus(ctx, tx, order.ID, models.OrderStatusApproved); err != nil {
				return err
			}
			claimed = order
			return nil
		})
		return claimed, err
	}

	claimed1, err := claim()
	if err != nil {
		t.Fatalf("First claim: %v", err)
	}
	if claimed1.ID != first.ID {
		t.Errorf("Expected oldest order %d first, got %d", first.ID, claimed1.ID)
	}

	claimed2, err := claim()
	if err != nil {
		t.Fatalf("Second claim: %v", err)
	}
	if claimed2.ID != second.ID {
		t.Errorf("Expected order %d second, got %d", second.ID, claimed2.ID)
	}

	_, err = claim()
	if !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected no claimable orders, got: %v", err)
	}

	approved, err := store.GetOrder(ctx, db, first.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if approved.Status != models.OrderStatusApproved {
		t.Errorf("Expected status approved, got %s", approved.Status)
	}
}

func TestMarkOrderPaid(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, "orders4@example.com", "Test User")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	product, err := store.CreateProduct(ctx, db, "TEST-ORD-004", "Product 4", "Test", decimal.NewFromInt(100), 50)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	order := placeCashOrder(t, db, user.ID, product.ID, 1)

	if err := store.MarkOrderPaid(ctx, db, order.ID, "txn-abc", models.PaymentStatusPaid); err != nil {
		t.Fatalf("Mark order paid: %v", err)
	}

	paid, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if paid.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("Expected payment status paid, got %s", paid.PaymentStatus)
	}
	if !paid.TransactionID.Valid || paid.TransactionID.String != "txn-abc" {
		t.Errorf("Expected transaction id txn-abc, got %v", paid.TransactionID)
	}
	if !paid.PaymentProcessedAt.Valid {
		t.Error("Expected payment_processed_at to be set")
	}
}

func TestMarkOrderTestPaid(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, "orders5@example.com", "Test User")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	product, err := store.CreateProduct(ctx, db, "TEST-ORD-005", "Product 5", "Test", decimal.NewFromInt(100), 50)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	order := placeCashOrder(t, db, user.ID, product.ID, 1)

	// Sandbox confirmations keep their own terminal status so reporting
	// can exclude them from revenue.
	if err := store.MarkOrderPaid(ctx, db, order.ID, "txn-sandbox", models.PaymentStatusTestPaid); err != nil {
		t.Fatalf("Mark order test paid: %v", err)
	}

	paid, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if paid.PaymentStatus != models.PaymentStatusTestPaid {
		t.Errorf("Expected payment status test_paid, got %s", paid.PaymentStatus)
	}
}

func TestMarkOrderPaymentFailed(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, "orders6@example.com", "Test User")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	product, err := store.CreateProduct(ctx, db, "TEST-ORD-006", "Product 6", "Test", decimal.NewFromInt(100), 50)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	order := placeCashOrder(t, db, user.ID, product.ID, 1)

	if err := store.MarkOrderPaymentFailed(ctx, db, order.ID, "card declined"); err != nil {
		t.Fatalf("Mark order payment failed: %v", err)
	}

	failed, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if failed.PaymentStatus != models.PaymentStatusFailed {
		t.Errorf("Expected payment status failed, got %s", failed.PaymentStatus)
	}
	if !failed.FailureReason.Valid || failed.FailureReason.String != "card declined" {
		t.Errorf("Expected failure reason to be recorded, got %v", failed.FailureReason)
	}
}

func TestPaymentSettlesExactlyOnce(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, "orders7@example.com", "Test User")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	product, err := store.CreateProduct(ctx, db, "TEST-ORD-007", "Product 7", "Test", decimal.NewFromInt(100), 50)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	order := placeCashOrder(t, db, user.ID, product.ID, 1)

	if err := store.MarkOrderPaid(ctx, db, order.ID, "txn-first", models.PaymentStatusPaid); err != nil {
		t.Fatalf("Mark order paid: %v", err)
	}

	// A duplicate or conflicting callback must not overwrite the result.
	err = store.MarkOrderPaid(ctx, db, order.ID, "txn-second", models.PaymentStatusPaid)
	if !errors.Is(err, database.ErrPaymentSettled) {
		t.Errorf("Expected payment settled error on duplicate, got: %v", err)
	}

	err = store.MarkOrderPaymentFailed(ctx, db, order.ID, "late failure")
	if !errors.Is(err, database.ErrPaymentSettled) {
		t.Errorf("Expected payment settled error on conflicting failure, got: %v", err)
	}

	settled, err := store.GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if settled.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("Expected payment status paid, got %s", settled.PaymentStatus)
	}
	if !settled.TransactionID.Valid || settled.TransactionID.String != "txn-first" {
		t.Errorf("Expected first transaction id to win, got %v", settled.TransactionID)
	}
	if settled.FailureReason.Valid {
		t.Errorf("Failure reason must stay empty, got %v", settled.FailureReason)
	}
}

func TestMarkOrderPaidNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	err := store.MarkOrderPaid(context.Background(), db, 99999, "txn-x", models.PaymentStatusPaid)
	if !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected order not found error, got: %v", err)
	}
}
