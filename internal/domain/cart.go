package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem keeps the price seen when the item was added. It is not a price
// lock: checkout compares it with the current price and rejects the order
// when they differ.
type CartItem struct {
	ProductID     int64           `json:"product_id"`
	Quantity      int             `json:"quantity"`
	PriceSnapshot decimal.Decimal `json:"price_snapshot"`
	AddedAt       time.Time       `json:"added_at"`
}

type Cart struct {
	UserID    int64      `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c *Cart) Item(productID int64) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return CartItem{}, false
}

// CartLine is a cart item joined with the current state of its product.
type CartLine struct {
	ProductID     int64           `json:"product_id"`
	Name          string          `json:"name"`
	Image         string          `json:"image,omitempty"`
	Status        ProductStatus   `json:"status"`
	Stock         int             `json:"stock"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	PriceSnapshot decimal.Decimal `json:"price_snapshot"`
	PriceChanged  bool            `json:"price_changed"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

type CartView struct {
	UserID    int64           `json:"user_id"`
	Items     []CartLine      `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updated_at"`
}
