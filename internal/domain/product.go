package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductStatusAvailable ProductStatus = "AVAILABLE"
	ProductStatusSold      ProductStatus = "SOLD"
	ProductStatusHidden    ProductStatus = "HIDDEN"
)

func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusAvailable, ProductStatusSold, ProductStatusHidden:
		return true
	}
	return false
}

type ProductCondition string

const (
	ConditionNew     ProductCondition = "NEW"
	ConditionLikeNew ProductCondition = "LIKE_NEW"
	ConditionGood    ProductCondition = "GOOD"
	ConditionFair    ProductCondition = "FAIR"
)

type Product struct {
	ID          int64            `json:"id"`
	SellerID    int64            `json:"seller_id"`
	Name        string           `json:"name"`
	Slug        string           `json:"slug"`
	Description string           `json:"description"`
	Price       decimal.Decimal  `json:"price"`
	Stock       int              `json:"stock"`
	Status      ProductStatus    `json:"status"`
	Condition   ProductCondition `json:"condition,omitempty"`
	Images      []string         `json:"images"`
	Categories  []Category       `json:"categories"`

	// Package dimensions used for shipping quotes; zero means unknown.
	WeightKg float64 `json:"weight_kg"`
	WidthCm  float64 `json:"width_cm"`
	HeightCm float64 `json:"height_cm"`
	LengthCm float64 `json:"length_cm"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPurchasable reports whether qty units can be bought right now.
func (p *Product) IsPurchasable(qty int) bool {
	return p.Status == ProductStatusAvailable && qty > 0 && p.Stock >= qty
}

// StatusForStock returns the status a product should have after its stock
// changed. Hidden listings stay hidden; an exhausted listing is sold and a
// restocked sold listing becomes available again.
func StatusForStock(current ProductStatus, stock int) ProductStatus {
	switch {
	case current == ProductStatusHidden:
		return ProductStatusHidden
	case stock <= 0:
		return ProductStatusSold
	default:
		return ProductStatusAvailable
	}
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Query        string
	CategorySlug string
	Status       ProductStatus
	SellerID     int64
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	SortBy       string // price, created_at, name
	SortDesc     bool
}
