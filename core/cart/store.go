package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var ErrItemNotFound = errors.New("item not found in cart")

// Fetch returns the user's cart with its items, lazily creating an empty one
// on first access.
func Fetch(ctx context.Context, db sqlx.ExtContext, userID string) (Cart, error) {
	const q = `SELECT * FROM carts WHERE user_id = $1`

	var crt Cart
	err := sqlx.GetContext(ctx, db, &crt, q, userID)
	if errors.Is(err, sql.ErrNoRows) {
		if crt, err = create(ctx, db, userID); err != nil {
			return Cart{}, err
		}
	} else if err != nil {
		return Cart{}, fmt.Errorf("selecting cart of user[%s]: %w", userID, err)
	}

	items, err := FetchItems(ctx, db, userID)
	if err != nil {
		return Cart{}, err
	}
	crt.Items = items

	return crt, nil
}

func create(ctx context.Context, db sqlx.ExtContext, userID string) (Cart, error) {
	// ON CONFLICT keeps two racing first accesses from failing; whichever
	// insert loses just reads the surviving row.
	const q = `
	INSERT INTO carts (user_id, subtotal, shipping, total, created_at, updated_at)
	VALUES ($1, 0, 0, 0, $2, $2)
	ON CONFLICT (user_id) DO NOTHING`

	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, q, userID, now); err != nil {
		return Cart{}, fmt.Errorf("creating cart for user[%s]: %w", userID, err)
	}

	const qs = `SELECT * FROM carts WHERE user_id = $1`
	var crt Cart
	if err := sqlx.GetContext(ctx, db, &crt, qs, userID); err != nil {
		return Cart{}, fmt.Errorf("selecting created cart of user[%s]: %w", userID, err)
	}

	return crt, nil
}

func FetchItems(ctx context.Context, db sqlx.ExtContext, userID string) ([]Item, error) {
	const q = `SELECT * FROM cart_items WHERE user_id = $1 ORDER BY created_at`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, db, &items, q, userID); err != nil {
		return nil, fmt.Errorf("selecting cart items of user[%s]: %w", userID, err)
	}

	return items, nil
}

func FetchItem(ctx context.Context, db sqlx.ExtContext, userID string, itemID string) (Item, error) {
	const q = `SELECT * FROM cart_items WHERE item_id = $1 AND user_id = $2`

	var it Item
	if err := sqlx.GetContext(ctx, db, &it, q, itemID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, fmt.Errorf("selecting cart item[%s]: %w", itemID, err)
	}

	return it, nil
}

// itemQuantity returns the quantity the user already holds for a product,
// 0 when no line exists.
func itemQuantity(ctx context.Context, db sqlx.ExtContext, userID string, productID string) (int, error) {
	const q = `
	SELECT COALESCE(SUM(quantity), 0) FROM cart_items
	WHERE user_id = $1 AND product_id = $2`

	var n int
	if err := sqlx.GetContext(ctx, db, &n, q, userID, productID); err != nil {
		return 0, fmt.Errorf("selecting held quantity of product[%s]: %w", productID, err)
	}

	return n, nil
}

// UpsertItem inserts a line or, when the user already has one for the same
// product, bumps its quantity instead. The conflict target is the
// (user_id, product_id) unique constraint, so two concurrent adds collapse
// into a single line with the summed quantity.
func UpsertItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO cart_items
		(item_id, user_id, product_id, quantity, price, discount, created_at, updated_at)
	VALUES
		(:item_id, :user_id, :product_id, :quantity, :price, :discount, :created_at, :updated_at)
	ON CONFLICT ON CONSTRAINT cart_items_user_product_key DO UPDATE SET
		quantity = cart_items.quantity + EXCLUDED.quantity,
		updated_at = EXCLUDED.updated_at`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("upserting cart item for product[%s]: %w", it.ProductID, err)
	}

	return nil
}

func UpdateItemQuantity(ctx context.Context, db sqlx.ExtContext, userID string, itemID string, quantity int) error {
	const q = `
	UPDATE cart_items SET quantity = $3, updated_at = $4
	WHERE item_id = $1 AND user_id = $2`

	res, err := db.ExecContext(ctx, q, itemID, userID, quantity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating cart item[%s]: %w", itemID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrItemNotFound
	}

	return nil
}

func DeleteItem(ctx context.Context, db sqlx.ExtContext, userID string, itemID string) error {
	const q = `DELETE FROM cart_items WHERE item_id = $1 AND user_id = $2`

	res, err := db.ExecContext(ctx, q, itemID, userID)
	if err != nil {
		return fmt.Errorf("deleting cart item[%s]: %w", itemID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrItemNotFound
	}

	return nil
}

// Delete removes every line of the user's cart and zeroes the totals.
// Shipping survives unless resetShipping is set; either way total keeps the
// subtotal + shipping invariant. Idempotent: clearing an already empty cart
// is a no-op.
func Delete(ctx context.Context, db sqlx.ExtContext, userID string, resetShipping bool) error {
	const qi = `DELETE FROM cart_items WHERE user_id = $1`
	if _, err := db.ExecContext(ctx, qi, userID); err != nil {
		return fmt.Errorf("deleting cart items of user[%s]: %w", userID, err)
	}

	const q = `
	UPDATE carts SET
		subtotal = 0,
		shipping = CASE WHEN $2 THEN 0 ELSE shipping END,
		total = CASE WHEN $2 THEN 0 ELSE shipping END,
		updated_at = $3
	WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, q, userID, resetShipping, time.Now().UTC()); err != nil {
		return fmt.Errorf("clearing cart of user[%s]: %w", userID, err)
	}

	return nil
}

// Recalculate rebuilds subtotal and total from the current lines. Every
// mutating cart operation must call it inside the same transaction as the
// mutation.
func Recalculate(ctx context.Context, db sqlx.ExtContext, userID string) error {
	const q = `
	UPDATE carts c SET
		subtotal = s.sub,
		total = s.sub + c.shipping,
		updated_at = $2
	FROM (
		SELECT COALESCE(SUM((price - price * discount / 100) * quantity), 0) AS sub
		FROM cart_items
		WHERE user_id = $1
	) s
	WHERE c.user_id = $1`

	if _, err := db.ExecContext(ctx, q, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("recalculating cart totals of user[%s]: %w", userID, err)
	}

	return nil
}

func UpdateShipping(ctx context.Context, db sqlx.ExtContext, userID string, amount decimal.Decimal) error {
	const q = `
	UPDATE carts SET
		shipping = $2,
		total = subtotal + $2,
		updated_at = $3
	WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, q, userID, amount, time.Now().UTC()); err != nil {
		return fmt.Errorf("updating shipping of user[%s]: %w", userID, err)
	}

	return nil
}

// ItemCount returns the number of distinct lines, 0 when no cart exists.
func ItemCount(ctx context.Context, db sqlx.ExtContext, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM cart_items WHERE user_id = $1`

	var n int
	if err := sqlx.GetContext(ctx, db, &n, q, userID); err != nil {
		return 0, fmt.Errorf("counting cart items of user[%s]: %w", userID, err)
	}

	return n, nil
}
