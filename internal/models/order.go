package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment state of an order. The lifecycle is
// linear: pending -> accepted -> out-for-delivery -> completed.
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusAccepted       OrderStatus = "accepted"
	StatusOutForDelivery OrderStatus = "out-for-delivery"
	StatusCompleted      OrderStatus = "completed"
)

// nextStatus is the transition table. A status absent from the table
// (completed) is terminal.
var nextStatus = map[OrderStatus]OrderStatus{
	StatusPending:        StatusAccepted,
	StatusAccepted:       StatusOutForDelivery,
	StatusOutForDelivery: StatusCompleted,
}

// CanAdvanceTo reports whether target immediately follows s in the
// lifecycle. Skipping ahead, going backward, and same-state requests
// are all rejected.
func (s OrderStatus) CanAdvanceTo(target OrderStatus) bool {
	next, ok := nextStatus[s]
	return ok && next == target
}

// IsTerminal reports whether no further transition exists from s.
func (s OrderStatus) IsTerminal() bool {
	_, ok := nextStatus[s]
	return !ok
}

// ParseOrderStatus validates a status received over the wire.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case StatusPending, StatusAccepted, StatusOutForDelivery, StatusCompleted:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// OrderItem is a frozen order line: the product name and unit price are
// copied at checkout so later catalog edits never alter past orders.
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns unit_price * quantity for the line.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a single checkout event. It is a permanent audit record:
// only Status ever changes after creation, and orders are never deleted.
type Order struct {
	ID           string          `json:"id" db:"id"`
	CustomerID   int64           `json:"customer_id" db:"customer_id"`
	CustomerName string          `json:"customer_name,omitempty"`
	ShopID       int64           `json:"shop_id" db:"shop_id"`
	ShopName     string          `json:"shop_name,omitempty"`
	Items        []OrderItem     `json:"items" db:"items"`
	TotalAmount  decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status       OrderStatus     `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
