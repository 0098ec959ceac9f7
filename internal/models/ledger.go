package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType distinguishes the two kinds of ledger entries.
type EntryType string

const (
	EntryPurchase EntryType = "purchase" // increases what the customer owes
	EntryPayment  EntryType = "payment"  // money handed over, reduces the balance
)

// LedgerEntry is one immutable line in a customer-shop credit ledger.
// The log is append-only: corrections are made with offsetting entries,
// never by editing history.
type LedgerEntry struct {
	ID          string          `json:"id" db:"id"`
	CustomerID  int64           `json:"customer_id" db:"customer_id"`
	ShopID      int64           `json:"shop_id" db:"shop_id"`
	Type        EntryType       `json:"type" db:"type"`
	Amount      decimal.Decimal `json:"amount" db:"amount"` // always positive
	Description string          `json:"description" db:"description"`
	ShopName    string          `json:"shop_name,omitempty"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Signed returns the entry's contribution to the balance fold:
// positive for purchases, negative for payments.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Type == EntryPayment {
		return e.Amount.Neg()
	}
	return e.Amount
}
