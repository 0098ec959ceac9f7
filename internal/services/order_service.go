package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/udhaarplus/backend/internal/middleware"
	"github.com/udhaarplus/backend/internal/models"
	"github.com/udhaarplus/backend/internal/notify"
)

// OrderService drives each order through its fixed lifecycle and keeps
// the order/ledger invariant: every order is created together with
// exactly one matching purchase entry, in one database transaction.
type OrderService struct {
	db        *sql.DB
	ledger    *LedgerService
	hub       *notify.Hub
	validator *ValidationHelper
}

func NewOrderService(db *sql.DB, ledger *LedgerService, hub *notify.Hub) *OrderService {
	return &OrderService{
		db:        db,
		ledger:    ledger,
		hub:       hub,
		validator: NewValidationHelper(),
	}
}

// CheckoutLine is one cart line handed to Checkout. The unit price is
// resolved server-side from the catalog, never trusted from the client.
type CheckoutLine struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// Checkout turns a cart into an order. It snapshots product names and
// prices, computes the frozen total, and appends the order row and its
// purchase ledger entry in a single transaction: both exist afterwards
// or neither does.
func (s *OrderService) Checkout(ctx context.Context, actor middleware.Actor, shopID int64, lines []CheckoutLine) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, validationErrorf("order must contain at least one item")
	}
	productIDs := make([]int64, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, validationErrorf("quantity for product %d must be positive", l.ProductID)
		}
		productIDs = append(productIDs, l.ProductID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var shopExists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM shops WHERE id = $1)`, shopID).Scan(&shopExists); err != nil {
		return nil, err
	}
	if !shopExists {
		return nil, &NotFoundError{Kind: "shop", ID: strconv.FormatInt(shopID, 10)}
	}

	products, err := s.loadProducts(tx, shopID, productIDs)
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, &NotFoundError{Kind: "product", ID: strconv.FormatInt(l.ProductID, 10)}
		}
		if p.Price.Sign() <= 0 {
			return nil, validationErrorf("product %d has no sellable price", p.ID)
		}
		item := models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  l.Quantity,
		}
		items = append(items, item)
		total = total.Add(item.Subtotal())
	}

	order := &models.Order{
		ID:          uuid.NewString(),
		CustomerID:  actor.UserID,
		ShopID:      shopID,
		Items:       items,
		TotalAmount: total,
		Status:      models.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(`
		INSERT INTO orders (id, customer_id, shop_id, items, total_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		order.ID, order.CustomerID, order.ShopID, itemsJSON, order.TotalAmount, order.Status, order.CreatedAt)
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.RecordPurchaseTx(tx, order.CustomerID, order.ShopID, order.TotalAmount, "Order #"+order.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[ORDER] Order %s created: customer %d, shop %d, total %s", order.ID, order.CustomerID, order.ShopID, order.TotalAmount)
	go s.hub.PublishOrderCreated(order)
	return order, nil
}

// Advance moves an order to the requested status. The order row is
// locked for the duration, so two racing advances are serialized: the
// loser observes the post-transition status and is rejected. Ledger
// state is never touched here; the purchase was recorded at creation.
func (s *OrderService) Advance(ctx context.Context, actor middleware.Actor, orderID string, requested models.OrderStatus) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		o         models.Order
		itemsJSON []byte
		current   models.OrderStatus
	)
	err = tx.QueryRow(`
		SELECT id, customer_id, shop_id, items, total_amount, status, created_at FROM orders
		WHERE id = $1
		FOR UPDATE`,
		orderID).Scan(&o.ID, &o.CustomerID, &o.ShopID, &itemsJSON, &o.TotalAmount, &current, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, err
	}

	if !actor.IsShopkeeperOf(o.ShopID) {
		return nil, authorizationErrorf("order %s belongs to another shop", orderID)
	}
	if !current.CanAdvanceTo(requested) {
		return nil, &InvalidTransitionError{OrderID: orderID, From: string(current), To: string(requested)}
	}

	if _, err := tx.Exec(`UPDATE orders SET status = $1 WHERE id = $2`, requested, orderID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	o.Status = requested

	log.Printf("[ORDER] Order %s advanced %s -> %s by shop %d", orderID, current, requested, o.ShopID)
	go s.hub.PublishStatusChanged(o.ID, o.CustomerID, requested)

	return &o, nil
}

// GetOrder fetches one order. Only the customer who placed it and the
// shop that owns it may read it.
func (s *OrderService) GetOrder(ctx context.Context, actor middleware.Actor, orderID string) (*models.Order, error) {
	var (
		o         models.Order
		itemsJSON []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, shop_id, items, total_amount, status, created_at
		FROM orders
		WHERE id = $1`,
		orderID).Scan(&o.ID, &o.CustomerID, &o.ShopID, &itemsJSON, &o.TotalAmount, &o.Status, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, err
	}

	if actor.UserID != o.CustomerID && !actor.IsShopkeeperOf(o.ShopID) {
		return nil, authorizationErrorf("order %s does not belong to the caller", orderID)
	}
	return &o, nil
}

// ListShopOrders returns a shop's orders newest first, with customer
// names for the dashboard.
func (s *OrderService) ListShopOrders(ctx context.Context, actor middleware.Actor, shopID int64) ([]models.Order, error) {
	if !actor.IsShopkeeperOf(shopID) {
		return nil, authorizationErrorf("shop %d is not owned by the caller", shopID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, o.customer_id, u.name, o.shop_id, o.items, o.total_amount, o.status, o.created_at
		FROM orders o
		JOIN users u ON u.id = o.customer_id
		WHERE o.shop_id = $1
		ORDER BY o.created_at DESC`,
		shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows, func(o *models.Order, rows *sql.Rows, itemsJSON *[]byte) error {
		return rows.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.ShopID, itemsJSON, &o.TotalAmount, &o.Status, &o.CreatedAt)
	})
}

// ListCustomerOrders returns a customer's orders newest first, with
// shop names. activeOnly filters completed orders out.
func (s *OrderService) ListCustomerOrders(ctx context.Context, actor middleware.Actor, customerID int64, activeOnly bool) ([]models.Order, error) {
	if actor.UserID != customerID {
		return nil, authorizationErrorf("orders belong to another customer")
	}

	query := `
		SELECT o.id, o.customer_id, o.shop_id, s.shop_name, o.items, o.total_amount, o.status, o.created_at
		FROM orders o
		JOIN shops s ON s.id = o.shop_id
		WHERE o.customer_id = $1`
	if activeOnly {
		query += ` AND o.status <> 'completed'`
	}
	query += ` ORDER BY o.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows, func(o *models.Order, rows *sql.Rows, itemsJSON *[]byte) error {
		return rows.Scan(&o.ID, &o.CustomerID, &o.ShopID, &o.ShopName, itemsJSON, &o.TotalAmount, &o.Status, &o.CreatedAt)
	})
}

func scanOrders(rows *sql.Rows, scan func(*models.Order, *sql.Rows, *[]byte) error) ([]models.Order, error) {
	orders := []models.Order{}
	for rows.Next() {
		var (
			o         models.Order
			itemsJSON []byte
		)
		if err := scan(&o, rows, &itemsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *OrderService) loadProducts(tx *sql.Tx, shopID int64, productIDs []int64) (map[int64]models.Product, error) {
	rows, err := tx.Query(`
		SELECT id, shop_id, name, price, category
		FROM products
		WHERE shop_id = $1 AND id = ANY($2)`,
		shopID, pq.Array(productIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make(map[int64]models.Product, len(productIDs))
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.Category); err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

// HTTP handlers

// CheckoutRequest is the body of POST /orders.
type CheckoutRequest struct {
	ShopID int64          `json:"shop_id" validate:"required,gt=0"`
	Items  []CheckoutLine `json:"items" validate:"required,min=1,dive"`
}

// HandleCheckout creates an order from the caller's cart lines
// @Summary Checkout
// @Description Create an order and its matching purchase ledger entry atomically
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param order body CheckoutRequest true "Cart lines"
// @Success 201 {object} models.Order
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders [post]
func (s *OrderService) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CheckoutRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	order, err := s.Checkout(r.Context(), actor, req.ShopID, req.Items)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(order)
}

// AdvanceRequest is the body of PUT /orders/{orderID}/status.
type AdvanceRequest struct {
	Status string `json:"status" validate:"required"`
}

// HandleAdvance moves an order one step along its lifecycle
// @Summary Advance order status
// @Description Move pending -> accepted -> out-for-delivery -> completed, one step at a time
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderID path string true "Order ID"
// @Param status body AdvanceRequest true "Requested status"
// @Success 200 {object} models.Order
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{orderID}/status [put]
func (s *OrderService) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	orderID := chi.URLParam(r, "orderID")

	var req AdvanceRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	requested, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		SendDomainError(w, validationErrorf("%v", err))
		return
	}

	order, err := s.Advance(r.Context(), actor, orderID, requested)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

// HandleGetOrder returns one order
// @Summary Get order
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param orderID path string true "Order ID"
// @Success 200 {object} models.Order
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{orderID} [get]
func (s *OrderService) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	order, err := s.GetOrder(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

// HandleListShopOrders returns a shop's orders newest first
// @Summary List shop orders
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param shopID path int true "Shop ID"
// @Success 200 {array} models.Order
// @Failure 403 {object} ErrorResponse
// @Router /shops/{shopID}/orders [get]
func (s *OrderService) HandleListShopOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	shopID, err := strconv.ParseInt(chi.URLParam(r, "shopID"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid shop id", http.StatusBadRequest, nil)
		return
	}

	orders, err := s.ListShopOrders(r.Context(), actor, shopID)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"orders": orders, "count": len(orders)})
}

// HandleListCustomerOrders returns the caller's orders
// @Summary List customer orders
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param customerID path int true "Customer ID"
// @Param active query bool false "Only orders still in flight"
// @Success 200 {array} models.Order
// @Failure 403 {object} ErrorResponse
// @Router /customers/{customerID}/orders [get]
func (s *OrderService) HandleListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	customerID, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid customer id", http.StatusBadRequest, nil)
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"

	orders, err := s.ListCustomerOrders(r.Context(), actor, customerID, activeOnly)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"orders": orders, "count": len(orders)})
}
