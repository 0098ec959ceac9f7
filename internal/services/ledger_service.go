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
	"github.com/shopspring/decimal"

	"github.com/udhaarplus/backend/internal/middleware"
	"github.com/udhaarplus/backend/internal/models"
)

// LedgerService owns the append-only transaction log per customer-shop
// pair. The log is the single source of truth: balances are always
// folded from it, never stored.
type LedgerService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// RecordPurchaseTx appends a purchase entry inside the caller's database
// transaction. Checkout uses this so the order and its ledger effect
// commit as one atomic unit.
func (s *LedgerService) RecordPurchaseTx(tx *sql.Tx, customerID, shopID int64, amount decimal.Decimal, description string) (*models.LedgerEntry, error) {
	if amount.Sign() <= 0 {
		return nil, validationErrorf("purchase amount must be positive, got %s", amount)
	}

	entry := &models.LedgerEntry{
		ID:          uuid.NewString(),
		CustomerID:  customerID,
		ShopID:      shopID,
		Type:        models.EntryPurchase,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := tx.Exec(`
		INSERT INTO ledger_entries (id, customer_id, shop_id, type, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.CustomerID, entry.ShopID, entry.Type, entry.Amount, entry.Description, entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordPayment appends a payment entry: money the customer handed the
// shopkeeper against their balance. Only the shop that holds the credit
// may record it.
func (s *LedgerService) RecordPayment(ctx context.Context, actor middleware.Actor, customerID, shopID int64, amount decimal.Decimal, description string) (*models.LedgerEntry, error) {
	if amount.Sign() <= 0 {
		return nil, validationErrorf("payment amount must be positive, got %s", amount)
	}
	if !actor.IsShopkeeperOf(shopID) {
		return nil, authorizationErrorf("shop %d is not owned by the caller", shopID)
	}

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND role = 'customer')`,
		customerID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Kind: "customer", ID: strconv.FormatInt(customerID, 10)}
	}

	entry := &models.LedgerEntry{
		ID:          uuid.NewString(),
		CustomerID:  customerID,
		ShopID:      shopID,
		Type:        models.EntryPayment,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, customer_id, shop_id, type, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.CustomerID, entry.ShopID, entry.Type, entry.Amount, entry.Description, entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	log.Printf("[LEDGER] Payment of %s recorded for customer %d at shop %d", amount, customerID, shopID)
	return entry, nil
}

// BalanceOf folds the full entry log for a customer-shop pair:
// sum of purchases minus sum of payments. Positive means the customer
// owes the shop. The fold runs in SQL so a concurrent append is either
// fully visible or not at all.
func (s *LedgerService) BalanceOf(ctx context.Context, customerID, shopID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'purchase' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
		WHERE customer_id = $1 AND shop_id = $2`,
		customerID, shopID).Scan(&balance)
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// EntriesFor returns every entry for a customer-shop pair in
// chronological order, for statement display.
func (s *LedgerService) EntriesFor(ctx context.Context, customerID, shopID int64) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, shop_id, type, amount, description, created_at
		FROM ledger_entries
		WHERE customer_id = $1 AND shop_id = $2
		ORDER BY created_at ASC`,
		customerID, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.ShopID, &e.Type, &e.Amount, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// HistoryFor returns a customer's entries across all shops, newest
// first, with shop names for display.
func (s *LedgerService) HistoryFor(ctx context.Context, customerID int64, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.customer_id, e.shop_id, e.type, e.amount, e.description, s.shop_name, e.created_at
		FROM ledger_entries e
		JOIN shops s ON s.id = e.shop_id
		WHERE e.customer_id = $1
		ORDER BY e.created_at DESC
		LIMIT $2`,
		customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.ShopID, &e.Type, &e.Amount, &e.Description, &e.ShopName, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// HTTP handlers

// RecordPaymentRequest is the body of POST /payments.
type RecordPaymentRequest struct {
	CustomerID  int64           `json:"customer_id" validate:"required,gt=0"`
	ShopID      int64           `json:"shop_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=200"`
}

// HandleRecordPayment records a payment against a customer's balance
// @Summary Record a payment
// @Description Append a payment entry reducing the customer's balance at the caller's shop
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payment body RecordPaymentRequest true "Payment data"
// @Success 201 {object} models.LedgerEntry
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /payments [post]
func (s *LedgerService) HandleRecordPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req RecordPaymentRequest
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

	entry, err := s.RecordPayment(r.Context(), actor, req.CustomerID, req.ShopID, req.Amount, req.Description)
	if err != nil {
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

// HandleBalance returns the derived balance for a customer-shop pair
// @Summary Get balance
// @Description Fold the ledger for a customer-shop pair into the current balance
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param customerID path int true "Customer ID"
// @Param shop_id query int true "Shop ID"
// @Success 200 {object} object{customer_id=int,shop_id=int,balance=string}
// @Failure 403 {object} ErrorResponse
// @Router /customers/{customerID}/balance [get]
func (s *LedgerService) HandleBalance(w http.ResponseWriter, r *http.Request) {
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
	shopID, err := strconv.ParseInt(r.URL.Query().Get("shop_id"), 10, 64)
	if err != nil || shopID <= 0 {
		SendErrorResponse(w, "shop_id is required", http.StatusBadRequest, nil)
		return
	}

	// a customer may read their own pair, a shopkeeper any pair of their shop
	if actor.UserID != customerID && !actor.IsShopkeeperOf(shopID) {
		SendDomainError(w, authorizationErrorf("ledger pair does not belong to the caller"))
		return
	}

	balance, err := s.BalanceOf(r.Context(), customerID, shopID)
	if err != nil {
		log.Printf("[LEDGER] Balance fold failed for customer %d shop %d: %v", customerID, shopID, err)
		SendErrorResponse(w, "Failed to compute balance", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"customer_id": customerID,
		"shop_id":     shopID,
		"balance":     balance,
	})
}

// HandleHistory returns a customer's recent entries across shops
// @Summary Get ledger history
// @Description Newest-first ledger entries for the authenticated customer
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param customerID path int true "Customer ID"
// @Param limit query int false "Number of entries (default 10, max 100)"
// @Success 200 {array} models.LedgerEntry
// @Failure 403 {object} ErrorResponse
// @Router /customers/{customerID}/history [get]
func (s *LedgerService) HandleHistory(w http.ResponseWriter, r *http.Request) {
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
	if actor.UserID != customerID {
		SendDomainError(w, authorizationErrorf("history belongs to another customer"))
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	entries, err := s.HistoryFor(r.Context(), customerID, limit)
	if err != nil {
		log.Printf("[LEDGER] History fetch failed for customer %d: %v", customerID, err)
		SendErrorResponse(w, "Failed to fetch history", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
