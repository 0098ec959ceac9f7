package models

// Roles known to the identity provider.
const (
	RoleCustomer   = "customer"
	RoleShopkeeper = "shopkeeper"
)

type User struct {
	ID       int64  `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Name     string `json:"name" db:"name"`
	Role     string `json:"role" db:"role"`
}
