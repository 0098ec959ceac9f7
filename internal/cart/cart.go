// Package cart holds the client-local shopping cart: working state a
// customer accumulates against a single shop before checkout. It is
// never persisted and never shared between shops; abandoning it loses
// nothing the ledger cares about.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/udhaarplus/backend/internal/models"
)

type line struct {
	product  models.Product
	quantity int
}

// Cart accumulates (product, quantity) pairs for one shop. It preserves
// the order lines were first added in. Not safe for concurrent use; a
// cart belongs to a single session.
type Cart struct {
	shopID int64
	lines  map[int64]*line
	order  []int64
}

func New(shopID int64) *Cart {
	return &Cart{
		shopID: shopID,
		lines:  make(map[int64]*line),
	}
}

// ShopID returns the shop this cart is bound to.
func (c *Cart) ShopID() int64 {
	return c.shopID
}

// SetQuantity upserts a line for the product, or removes it when qty <= 0.
// Adding a product from a different shop re-binds the cart to that shop
// and clears it first; a cart never mixes products from two shops.
// Removing a line the cart never held changes nothing.
func (c *Cart) SetQuantity(p models.Product, qty int) {
	if p.ShopID != c.shopID {
		if qty <= 0 {
			return
		}
		c.Clear()
		c.shopID = p.ShopID
	}

	if qty <= 0 {
		if _, ok := c.lines[p.ID]; ok {
			delete(c.lines, p.ID)
			for i, id := range c.order {
				if id == p.ID {
					c.order = append(c.order[:i], c.order[i+1:]...)
					break
				}
			}
		}
		return
	}

	if l, ok := c.lines[p.ID]; ok {
		l.product = p
		l.quantity = qty
		return
	}
	c.lines[p.ID] = &line{product: p, quantity: qty}
	c.order = append(c.order, p.ID)
}

// Quantity returns the current quantity for a product id, zero if absent.
func (c *Cart) Quantity(productID int64) int {
	if l, ok := c.lines[productID]; ok {
		return l.quantity
	}
	return 0
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Clear drops every line. The shop binding is kept.
func (c *Cart) Clear() {
	c.lines = make(map[int64]*line)
	c.order = nil
}

// Total is the sum of line subtotals.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.product.Price.Mul(decimal.NewFromInt(int64(l.quantity))))
	}
	return total
}

// ToOrderItems snapshots the current lines as immutable order-line
// records, freezing each product's name and unit price, in the order
// the lines were added.
func (c *Cart) ToOrderItems() []models.OrderItem {
	items := make([]models.OrderItem, 0, len(c.order))
	for _, id := range c.order {
		l := c.lines[id]
		items = append(items, models.OrderItem{
			ProductID: l.product.ID,
			Name:      l.product.Name,
			UnitPrice: l.product.Price,
			Quantity:  l.quantity,
		})
	}
	return items
}
