package cart

import (
	"time"

	"github.com/mkraiem/storefront/core/product"

	"github.com/shopspring/decimal"
)

// Cart is the per-user container of pending line items. Subtotal and total
// are stored denormalized and recomputed inside the same transaction as any
// line mutation, so they are never stale at read time.
type Cart struct {
	UserID    string          `json:"-" db:"user_id"`
	Subtotal  decimal.Decimal `json:"subtotal" db:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping" db:"shipping"`
	Total     decimal.Decimal `json:"total" db:"total"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
	Items     []Item          `json:"items" db:"-"`
}

// Item is one product selection. Price and discount are snapshots taken when
// the product is first added, so later catalog changes do not reprice carts.
type Item struct {
	ID        string          `json:"id" db:"item_id"`
	UserID    string          `json:"-" db:"user_id"`
	ProductID string          `json:"productId" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Discount  decimal.Decimal `json:"discount" db:"discount"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// Total is the discounted line total.
func (it Item) Total() decimal.Decimal {
	return product.FinalPrice(it.Price, it.Discount).Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type ItemNew struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"omitempty,gte=1"`
}

type ItemUp struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

type ShippingUp struct {
	Shipping decimal.Decimal `json:"shipping"`
}
