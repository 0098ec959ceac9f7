package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/udhaarplus/backend/internal/middleware"
	"github.com/udhaarplus/backend/internal/models"
	"github.com/udhaarplus/backend/internal/notify"
)

func newOrderService(db *sql.DB) *OrderService {
	return NewOrderService(db, NewLedgerService(db), notify.NewHub(nil, nil))
}

func TestOrderService_Checkout(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newOrderService(db)

	t.Run("order and purchase entry commit together", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM shops WHERE id = \$1\)`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("SELECT id, shop_id, name, price, category").
			WithArgs(int64(10), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "name", "price", "category"}).
				AddRow(7, 10, "Masala Chai", "50.00", "Beverages"))
		mock.ExpectExec("INSERT INTO orders").
			WithArgs(sqlmock.AnyArg(), int64(5), int64(10), sqlmock.AnyArg(),
				decimal.RequireFromString("150.00"), models.StatusPending, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), int64(5), int64(10), models.EntryPurchase,
				decimal.RequireFromString("150.00"), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		order, err := service.Checkout(context.Background(), customer(5), 10,
			[]CheckoutLine{{ProductID: 7, Quantity: 3}})
		assert.NoError(t, err)
		assert.Equal(t, models.StatusPending, order.Status)
		assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("150.00")))
		assert.Len(t, order.Items, 1)
		assert.Equal(t, "Masala Chai", order.Items[0].Name)
		assert.True(t, order.Items[0].UnitPrice.Equal(decimal.RequireFromString("50.00")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty cart rejected before any SQL", func(t *testing.T) {
		_, err := service.Checkout(context.Background(), customer(5), 10, nil)

		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive quantity rejected", func(t *testing.T) {
		_, err := service.Checkout(context.Background(), customer(5), 10,
			[]CheckoutLine{{ProductID: 7, Quantity: 0}})

		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("unknown shop", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM shops WHERE id = \$1\)`).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectRollback()

		_, err := service.Checkout(context.Background(), customer(5), 99,
			[]CheckoutLine{{ProductID: 7, Quantity: 1}})

		var notFoundErr *NotFoundError
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero-price product cannot be sold", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM shops WHERE id = \$1\)`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("SELECT id, shop_id, name, price, category").
			WithArgs(int64(10), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "name", "price", "category"}).
				AddRow(8, 10, "Sample Sachet", "0", "Promos"))
		mock.ExpectRollback()

		_, err := service.Checkout(context.Background(), customer(5), 10,
			[]CheckoutLine{{ProductID: 8, Quantity: 1}})

		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("product from another shop rolls everything back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM shops WHERE id = \$1\)`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("SELECT id, shop_id, name, price, category").
			WithArgs(int64(10), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "name", "price", "category"}))
		mock.ExpectRollback()

		_, err := service.Checkout(context.Background(), customer(5), 10,
			[]CheckoutLine{{ProductID: 404, Quantity: 1}})

		var notFoundErr *NotFoundError
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderService_Advance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newOrderService(db)
	lockQuery := `SELECT id, customer_id, shop_id, items, total_amount, status, created_at FROM orders\s+WHERE id = \$1\s+FOR UPDATE`
	itemsJSON := `[{"product_id":7,"name":"Masala Chai","unit_price":"50.00","quantity":3}]`

	lockedRow := func(id string, status string) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "customer_id", "shop_id", "items", "total_amount", "status", "created_at"}).
			AddRow(id, 5, 10, []byte(itemsJSON), "150.00", status, time.Now())
	}

	t.Run("pending to accepted", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs("ord-1").
			WillReturnRows(lockedRow("ord-1", "pending"))
		mock.ExpectExec(`UPDATE orders SET status = \$1 WHERE id = \$2`).
			WithArgs(models.StatusAccepted, "ord-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		order, err := service.Advance(context.Background(), shopkeeper(2, 10), "ord-1", models.StatusAccepted)
		assert.NoError(t, err)
		assert.Equal(t, models.StatusAccepted, order.Status)
		// the response carries the full order, not a status stub
		assert.Len(t, order.Items, 1)
		assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("150.00")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skipping a step is rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs("ord-1").
			WillReturnRows(lockedRow("ord-1", "pending"))
		mock.ExpectRollback()

		_, err := service.Advance(context.Background(), shopkeeper(2, 10), "ord-1", models.StatusOutForDelivery)

		var transitionErr *InvalidTransitionError
		assert.ErrorAs(t, err, &transitionErr)
		assert.Equal(t, "pending", transitionErr.From)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("completed order cannot move", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs("ord-2").
			WillReturnRows(lockedRow("ord-2", "completed"))
		mock.ExpectRollback()

		_, err := service.Advance(context.Background(), shopkeeper(2, 10), "ord-2", models.StatusAccepted)

		var transitionErr *InvalidTransitionError
		assert.ErrorAs(t, err, &transitionErr)
	})

	t.Run("another shop's order", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs("ord-1").
			WillReturnRows(lockedRow("ord-1", "pending"))
		mock.ExpectRollback()

		_, err := service.Advance(context.Background(), shopkeeper(3, 99), "ord-1", models.StatusAccepted)

		var authErr *AuthorizationError
		assert.ErrorAs(t, err, &authErr)
	})

	t.Run("unknown order", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockQuery).
			WithArgs("ord-missing").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := service.Advance(context.Background(), shopkeeper(2, 10), "ord-missing", models.StatusAccepted)

		var notFoundErr *NotFoundError
		assert.ErrorAs(t, err, &notFoundErr)
	})
}

func TestOrderService_GetOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newOrderService(db)
	itemsJSON := `[{"product_id":7,"name":"Masala Chai","unit_price":"50.00","quantity":3}]`

	orderRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "customer_id", "shop_id", "items", "total_amount", "status", "created_at"}).
			AddRow("ord-1", 5, 10, []byte(itemsJSON), "150.00", "pending", time.Now())
	}

	t.Run("customer reads their own order", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, customer_id, shop_id, items, total_amount, status, created_at").
			WithArgs("ord-1").
			WillReturnRows(orderRows())

		order, err := service.GetOrder(context.Background(), customer(5), "ord-1")
		assert.NoError(t, err)
		assert.Len(t, order.Items, 1)
		assert.Equal(t, 3, order.Items[0].Quantity)
	})

	t.Run("unrelated customer is rejected", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, customer_id, shop_id, items, total_amount, status, created_at").
			WithArgs("ord-1").
			WillReturnRows(orderRows())

		_, err := service.GetOrder(context.Background(), customer(77), "ord-1")

		var authErr *AuthorizationError
		assert.ErrorAs(t, err, &authErr)
	})

	t.Run("unknown order", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, customer_id, shop_id, items, total_amount, status, created_at").
			WithArgs("ord-missing").
			WillReturnError(sql.ErrNoRows)

		_, err := service.GetOrder(context.Background(), customer(5), "ord-missing")

		var notFoundErr *NotFoundError
		assert.ErrorAs(t, err, &notFoundErr)
	})
}

func TestOrderService_ListCustomerOrders(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newOrderService(db)
	itemsJSON := `[{"product_id":7,"name":"Masala Chai","unit_price":"50.00","quantity":1}]`

	t.Run("active filter excludes completed orders", func(t *testing.T) {
		mock.ExpectQuery(`WHERE o\.customer_id = \$1 AND o\.status <> 'completed'`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "shop_id", "shop_name", "items", "total_amount", "status", "created_at"}).
				AddRow("ord-1", 5, 10, "Sharma General Store", []byte(itemsJSON), "50.00", "accepted", time.Now()))

		orders, err := service.ListCustomerOrders(context.Background(), customer(5), 5, true)
		assert.NoError(t, err)
		assert.Len(t, orders, 1)
		assert.Equal(t, "Sharma General Store", orders[0].ShopName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("another customer's list is off limits", func(t *testing.T) {
		_, err := service.ListCustomerOrders(context.Background(), customer(5), 77, false)

		var authErr *AuthorizationError
		assert.ErrorAs(t, err, &authErr)
	})
}

func TestOrderService_ListShopOrders(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newOrderService(db)
	itemsJSON := `[{"product_id":7,"name":"Masala Chai","unit_price":"50.00","quantity":1}]`

	t.Run("dashboard list with customer names", func(t *testing.T) {
		mock.ExpectQuery("JOIN users u ON u.id = o.customer_id").
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "name", "shop_id", "items", "total_amount", "status", "created_at"}).
				AddRow("ord-2", 6, "Priya", 10, []byte(itemsJSON), "50.00", "pending", time.Now()).
				AddRow("ord-1", 5, "Ravi", 10, []byte(itemsJSON), "50.00", "completed", time.Now().Add(-time.Hour)))

		orders, err := service.ListShopOrders(context.Background(), shopkeeper(2, 10), 10)
		assert.NoError(t, err)
		assert.Len(t, orders, 2)
		assert.Equal(t, "Priya", orders[0].CustomerName)
	})

	t.Run("not the shop owner", func(t *testing.T) {
		_, err := service.ListShopOrders(context.Background(), shopkeeper(2, 10), 99)

		var authErr *AuthorizationError
		assert.ErrorAs(t, err, &authErr)
	})
}

func TestOrderHandlers(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newOrderService(db)

	t.Run("checkout handler returns 201 with the frozen order", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM shops WHERE id = \$1\)`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("SELECT id, shop_id, name, price, category").
			WithArgs(int64(10), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "name", "price", "category"}).
				AddRow(7, 10, "Masala Chai", "50.00", "Beverages"))
		mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body := bytes.NewBufferString(`{"shop_id":10,"items":[{"product_id":7,"quantity":3}]}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", body)
		req = req.WithContext(middleware.WithActor(req.Context(), customer(5)))
		rec := httptest.NewRecorder()

		service.HandleCheckout(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var got models.Order
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, models.StatusPending, got.Status)
		assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("150.00")))
	})

	t.Run("checkout handler rejects unknown fields", func(t *testing.T) {
		body := bytes.NewBufferString(`{"shop_id":10,"items":[],"total_amount":"999.00"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", body)
		req = req.WithContext(middleware.WithActor(req.Context(), customer(5)))
		rec := httptest.NewRecorder()

		service.HandleCheckout(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("advance handler maps invalid transition to 409", func(t *testing.T) {
		itemsJSON := `[{"product_id":7,"name":"Masala Chai","unit_price":"50.00","quantity":3}]`
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs("ord-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "shop_id", "items", "total_amount", "status", "created_at"}).
				AddRow("ord-1", 5, 10, []byte(itemsJSON), "150.00", "pending", time.Now()))
		mock.ExpectRollback()

		body := bytes.NewBufferString(`{"status":"out-for-delivery"}`)
		req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/ord-1/status", body)
		req = req.WithContext(middleware.WithActor(req.Context(), shopkeeper(2, 10)))
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("orderID", "ord-1")
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		rec := httptest.NewRecorder()

		service.HandleAdvance(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("advance handler rejects trailing JSON", func(t *testing.T) {
		body := bytes.NewBufferString(`{"status":"accepted"}{"status":"completed"}`)
		req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/ord-1/status", body)
		req = req.WithContext(middleware.WithActor(req.Context(), shopkeeper(2, 10)))
		rec := httptest.NewRecorder()

		service.HandleAdvance(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("advance handler rejects unknown status names", func(t *testing.T) {
		body := bytes.NewBufferString(`{"status":"cancelled"}`)
		req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/ord-1/status", body)
		req = req.WithContext(middleware.WithActor(req.Context(), shopkeeper(2, 10)))
		rec := httptest.NewRecorder()

		service.HandleAdvance(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no actor yields 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()

		service.HandleCheckout(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

// Two of the customer's sessions checking out against the same
// customer-shop pair at once: both orders commit with their own
// purchase entry, and the fold over the pair is the same whichever
// commit lands first.
func TestOrderService_ConcurrentCheckoutsSamePair(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	service := newOrderService(db)

	// both carts hold the same 25.00 product, so either goroutine may
	// consume either product-row expectation
	productRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "shop_id", "name", "price", "category"}).
			AddRow(7, 10, "Masala Chai", "25.00", "Beverages")
	}
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM shops WHERE id = \$1\)`).
			WithArgs(int64(10)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectQuery("SELECT id, shop_id, name, price, category").
			WithArgs(int64(10), sqlmock.AnyArg()).
			WillReturnRows(productRows())
		mock.ExpectCommit()
	}
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), int64(5), int64(10), sqlmock.AnyArg(),
			decimal.RequireFromString("100.00"), models.StatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(sqlmock.AnyArg(), int64(5), int64(10), models.EntryPurchase,
			decimal.RequireFromString("100.00"), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), int64(5), int64(10), sqlmock.AnyArg(),
			decimal.RequireFromString("75.00"), models.StatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(sqlmock.AnyArg(), int64(5), int64(10), models.EntryPurchase,
			decimal.RequireFromString("75.00"), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	quantities := []int{4, 3} // 100.00 and 75.00
	orders := make([]*models.Order, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i, qty := range quantities {
		wg.Add(1)
		go func(i, qty int) {
			defer wg.Done()
			orders[i], errs[i] = service.Checkout(context.Background(), customer(5), 10,
				[]CheckoutLine{{ProductID: 7, Quantity: qty}})
		}(i, qty)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.True(t, orders[0].TotalAmount.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, orders[1].TotalAmount.Equal(decimal.RequireFromString("75.00")))

	// the pair's balance is order-independent
	forward := orders[0].TotalAmount.Add(orders[1].TotalAmount)
	backward := orders[1].TotalAmount.Add(orders[0].TotalAmount)
	assert.True(t, forward.Equal(decimal.RequireFromString("175.00")))
	assert.True(t, forward.Equal(backward))

	assert.NoError(t, mock.ExpectationsWereMet())
}

// Two staff sessions advancing the same order at once: the row lock
// serializes them, and the loser re-reads the post-transition status
// and is rejected while the order state stays consistent.
func TestOrderService_AdvanceRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)

	service := newOrderService(db)
	itemsJSON := `[{"product_id":7,"name":"Masala Chai","unit_price":"50.00","quantity":3}]`
	lockedRow := func(status string) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "customer_id", "shop_id", "items", "total_amount", "status", "created_at"}).
			AddRow("ord-1", 5, 10, []byte(itemsJSON), "150.00", status, time.Now())
	}

	// whichever session reads first sees pending and wins; the other
	// observes the already-advanced row
	mock.ExpectBegin()
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("ord-1").WillReturnRows(lockedRow("pending"))
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("ord-1").WillReturnRows(lockedRow("accepted"))
	mock.ExpectExec(`UPDATE orders SET status = \$1 WHERE id = \$2`).
		WithArgs(models.StatusAccepted, "ord-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Advance(context.Background(), shopkeeper(2, 10), "ord-1", models.StatusAccepted)
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var transitionErr *InvalidTransitionError
		if assert.ErrorAs(t, err, &transitionErr) {
			assert.Equal(t, "accepted", transitionErr.From)
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
