package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/umarov/storefront/internal/cache"
	"github.com/umarov/storefront/internal/checkout"
	"github.com/umarov/storefront/internal/database"
	"github.com/umarov/storefront/internal/metrics"
	"github.com/umarov/storefront/internal/models"
	"github.com/umarov/storefront/internal/payment"
	"github.com/umarov/storefront/internal/pricing"
	"github.com/umarov/storefront/internal/store"
)

type Handler struct {
	db       *sql.DB
	checkout *checkout.Service
	products *cache.ProductCache
	logger   *zap.Logger
}

func NewHandler(db *sql.DB, checkoutSvc *checkout.Service, products *cache.ProductCache, logger *zap.Logger) *Handler {
	return &Handler{
		db:       db,
		checkout: checkoutSvc,
		products: products,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, m *metrics.ServerMetrics) {
	r.Use(RequestID())
	r.Use(Logger(h.logger))
	if m != nil {
		r.Use(m.Middleware())
	}

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.POST("/users", h.CreateUser)
	r.GET("/users", h.ListUsers)
	r.GET("/users/:id", h.GetUser)
	r.GET("/users/:id/addresses", h.ListAddresses)
	r.GET("/users/:id/orders", h.ListOrders)

	r.POST("/addresses", h.CreateAddress)
	r.GET("/addresses/:id", h.GetAddress)

	r.POST("/products", h.CreateProduct)
	r.GET("/products", h.ListProducts)
	r.GET("/products/:id", h.GetProduct)
	r.PUT("/admin/products/:id/stock", h.AdjustStock)
	r.POST("/admin/products/:id/decrement", h.DecrementStock)

	r.POST("/orders", h.PlaceOrder)
	r.GET("/orders/:id", h.GetOrder)
	r.POST("/admin/orders/claim", h.ClaimOrder)

	r.POST("/payments/callback", h.PaymentCallback)
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := store.CreateUser(c.Request.Context(), h.db, req.Email, req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	user, err := store.GetUser(c.Request.Context(), h.db, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) ListUsers(c *gin.Context) {
	page, pageSize := pageParams(c)

	result, err := store.ListUsers(c.Request.Context(), h.db, page, pageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) CreateAddress(c *gin.Context) {
	var req createAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	address, err := store.CreateAddress(c.Request.Context(), h.db, req.UserID, req.City, req.Street, req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, address)
}

func (h *Handler) GetAddress(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	address, err := store.GetAddress(c.Request.Context(), h.db, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, address)
}

func (h *Handler) ListAddresses(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	addresses, err := store.ListAddresses(c.Request.Context(), h.db, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, addresses)
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
		return
	}

	product, err := store.CreateProduct(c.Request.Context(), h.db, req.SKU, req.Name, req.Description, price, req.Stock)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	product, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) ListProducts(c *gin.Context) {
	page, pageSize := pageParams(c)

	result, err := store.ListProducts(c.Request.Context(), h.db, page, pageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AdjustStock sets an absolute stock level through the optimistic-locking
// path; concurrent checkouts surface as a version conflict, not a lost
// update.
func (h *Handler) AdjustStock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := store.UpdateStockOptimistic(ctx, h.db, id, req.StockQuantity, req.Version); err != nil {
		h.respondError(c, err)
		return
	}
	h.products.Invalidate(ctx, id)

	product, err := store.GetProduct(ctx, h.db, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// DecrementStock removes stock without queueing behind checkout row locks;
// if a placement currently holds the row the request fails fast with a
// lock-timeout instead of blocking.
func (h *Handler) DecrementStock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req decrementStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	err := database.WithTransaction(ctx, h.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := store.ReserveStockNoWait(ctx, tx, id, req.Quantity); err != nil {
			return err
		}
		return store.DecrementStock(ctx, tx, id, req.Quantity)
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.products.Invalidate(ctx, id)

	c.Status(http.StatusNoContent)
}

func (h *Handler) PlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items := make([]checkout.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, checkout.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	result, err := h.checkout.PlaceOrder(c.Request.Context(), checkout.PlaceOrderRequest{
		UserID:            req.UserID,
		Items:             items,
		DeliveryMethod:    req.DeliveryMethod,
		PaymentMethod:     req.PaymentMethod,
		DeliveryAddressID: req.DeliveryAddressID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, placeOrderResponse{
		Order:       result.Order,
		PaymentData: result.PaymentData,
	})
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := store.GetOrder(c.Request.Context(), h.db, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) ListOrders(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	result, err := store.ListOrdersCursor(c.Request.Context(), h.db, id, c.Query("cursor"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ClaimOrder hands the oldest created order to a fulfillment worker and
// marks it approved in the same transaction.
func (h *Handler) ClaimOrder(c *gin.Context) {
	ctx := c.Request.Context()

	// Claims race against checkout commits; transient conflicts retry,
	// no payment gateway is involved on this path.
	var claimed *models.Order
	err := database.WithRetry(ctx, h.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, err := store.ClaimNextCreatedOrder(ctx, tx)
		if err != nil {
			return err
		}
		if err := store.UpdateOrderStatus(ctx, tx, order.ID, models.OrderStatusApproved); err != nil {
			return err
		}
		order.Status = models.OrderStatusApproved
		claimed = order
		return nil
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, claimed)
}

func (h *Handler) PaymentCallback(c *gin.Context) {
	var req paymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	var err error
	switch req.Status {
	case models.PaymentStatusPaid, models.PaymentStatusTestPaid:
		err = store.MarkOrderPaid(ctx, h.db, req.OrderID, req.TransactionID, req.Status)
	case models.PaymentStatusFailed:
		err = store.MarkOrderPaymentFailed(ctx, h.db, req.OrderID, req.Reason)
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown payment status " + req.Status})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("payment callback applied",
		zap.Int64("order_id", req.OrderID),
		zap.String("status", req.Status))

	c.Status(http.StatusNoContent)
}

// respondError maps the error taxonomy to transport statuses; the message
// always names the first failing condition.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrAddressNotFound):
		status = http.StatusNotFound
	case errors.Is(err, database.ErrInsufficientStock),
		errors.Is(err, database.ErrOptimisticLockFailed),
		errors.Is(err, database.ErrLockTimeout),
		errors.Is(err, database.ErrPaymentSettled):
		status = http.StatusConflict
	case errors.Is(err, payment.ErrPaymentFailed):
		status = http.StatusPaymentRequired
	case errors.Is(err, checkout.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrInvalidPaymentMethod),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, pricing.ErrUnknownDeliveryMethod):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
