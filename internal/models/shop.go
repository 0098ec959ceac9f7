package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shop is a storefront owned by exactly one shopkeeper.
type Shop struct {
	ID        int64  `json:"id" db:"id"`
	ShopName  string `json:"shop_name" db:"shop_name"`
	OwnerID   int64  `json:"owner_id" db:"owner_id"`
	OwnerName string `json:"owner_name,omitempty"`
}

// Product belongs to exactly one shop. Orders copy the name and price
// at checkout, so editing a product never rewrites order history.
type Product struct {
	ID        int64           `json:"id" db:"id"`
	ShopID    int64           `json:"shop_id" db:"shop_id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Category  string          `json:"category" db:"category"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
