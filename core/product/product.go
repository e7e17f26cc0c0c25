package product

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive     = "active"
	StatusInactive   = "inactive"
	StatusOutOfStock = "out_of_stock"
)

type Product struct {
	ID          string          `json:"id" db:"product_id"`
	CategoryID  string          `json:"categoryId" db:"category_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Discount    decimal.Decimal `json:"discount" db:"discount"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Status      string          `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// FinalPrice is the unit price after discount.
func (p Product) FinalPrice() decimal.Decimal {
	return FinalPrice(p.Price, p.Discount)
}

// FinalPrice applies a percentage discount (0-100) to a unit price.
func FinalPrice(price, discount decimal.Decimal) decimal.Decimal {
	cut := price.Mul(discount).Div(decimal.NewFromInt(100))
	return price.Sub(cut)
}

// checkMoney validates the numeric ranges the validator tags cannot express
// for decimal fields.
func checkMoney(price, discount decimal.Decimal) error {
	if price.IsNegative() {
		return errors.New("price must not be negative")
	}
	if discount.IsNegative() || discount.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("discount must be between 0 and 100")
	}
	return nil
}

type ProductNew struct {
	CategoryID  string          `json:"categoryId" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	Discount    decimal.Decimal `json:"discount"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	Status      string          `json:"status" validate:"omitempty,oneof=active inactive out_of_stock"`
}

type ProductUp struct {
	CategoryID  *string          `json:"categoryId"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Discount    *decimal.Decimal `json:"discount"`
	Quantity    *int             `json:"quantity" validate:"omitempty,gte=0"`
	Status      *string          `json:"status" validate:"omitempty,oneof=active inactive out_of_stock"`
}
