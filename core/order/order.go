package order

import (
	"fmt"
	"time"

	"github.com/mkraiem/storefront/random"

	"github.com/shopspring/decimal"
)

type Status string

const (
	Pending   Status = "pending"
	Confirmed Status = "confirmed"
	Preparing Status = "preparing"
	OnTheWay  Status = "on_the_way"
	Delivered Status = "delivered"
	Cancelled Status = "cancelled"
)

// Valid reports whether s is a recognized status value. Transition adjacency
// is deliberately not enforced: an admin may set any recognized status.
func (s Status) Valid() bool {
	switch s {
	case Pending, Confirmed, Preparing, OnTheWay, Delivered, Cancelled:
		return true
	}
	return false
}

// Order is an immutable purchase record. Amounts are copied from the cart at
// checkout and never recomputed; only the status and delivered timestamp
// change afterwards.
type Order struct {
	ID              string          `json:"id" db:"order_id"`
	Number          string          `json:"orderNumber" db:"order_number"`
	UserID          string          `json:"userId" db:"user_id"`
	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	Shipping        decimal.Decimal `json:"shipping" db:"shipping"`
	Total           decimal.Decimal `json:"total" db:"total"`
	DeliveryAddress string          `json:"deliveryAddress" db:"delivery_address"`
	CustomerPhone   string          `json:"customerPhone" db:"customer_phone"`
	CustomerNotes   string          `json:"customerNotes" db:"customer_notes"`
	Status          Status          `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty" db:"delivered_at"`
	Items           []Item          `json:"items" db:"-"`
}

// Item is a frozen copy of a cart line. Price and discount stay as they were
// at checkout even if the product is repriced later.
type Item struct {
	ID        string          `json:"id" db:"item_id"`
	OrderID   string          `json:"-" db:"order_id"`
	ProductID string          `json:"productId" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Discount  decimal.Decimal `json:"discount" db:"discount"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

type CheckoutNew struct {
	DeliveryAddress string `json:"deliveryAddress" validate:"required"`
	CustomerPhone   string `json:"customerPhone" validate:"required"`
	CustomerNotes   string `json:"customerNotes"`
}

type StatusUp struct {
	Status Status `json:"status" validate:"required"`
}

// GenerateNumber builds the human-readable order number: a short prefix, the
// date, and a random 4-digit suffix. Collisions are possible within a day;
// the unique constraint catches them and checkout retries with a fresh
// number.
func GenerateNumber(now time.Time) string {
	return fmt.Sprintf("ORD%s%s", now.Format("060102"), random.Digits(4))
}
