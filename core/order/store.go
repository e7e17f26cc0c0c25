package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("order not found")

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders
		(order_id, order_number, user_id, subtotal, shipping, total,
		 delivery_address, customer_phone, customer_notes, status, created_at, updated_at)
	VALUES
		(:order_id, :order_number, :user_id, :subtotal, :shipping, :total,
		 :delivery_address, :customer_phone, :customer_notes, :status, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	return nil
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO order_items
		(item_id, order_id, product_id, quantity, price, discount, created_at)
	VALUES
		(:item_id, :order_id, :product_id, :quantity, :price, :discount, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting order item: %w", err)
	}

	return nil
}

func FetchItems(ctx context.Context, db sqlx.ExtContext, orderID string) ([]Item, error) {
	const q = `SELECT * FROM order_items WHERE order_id = $1 ORDER BY created_at`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, db, &items, q, orderID); err != nil {
		return nil, fmt.Errorf("selecting items of order[%s]: %w", orderID, err)
	}

	return items, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("selecting order[%s]: %w", id, err)
	}

	items, err := FetchItems(ctx, db, id)
	if err != nil {
		return Order{}, err
	}
	ord.Items = items

	return ord, nil
}

// FetchByUser returns the user's order history, newest first.
func FetchByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Order, error) {
	const q = `SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	orders := []Order{}
	if err := sqlx.SelectContext(ctx, db, &orders, q, userID); err != nil {
		return nil, fmt.Errorf("selecting orders of user[%s]: %w", userID, err)
	}

	for i := range orders {
		items, err := FetchItems(ctx, db, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

// FetchAll returns a page of all orders, optionally filtered by status,
// newest first, together with the unpaged total.
func FetchAll(ctx context.Context, db sqlx.ExtContext, page int, limit int, status Status) ([]Order, int, error) {
	offset := (page - 1) * limit

	orders := []Order{}
	var total int

	if status != "" {
		const q = `SELECT * FROM orders WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		if err := sqlx.SelectContext(ctx, db, &orders, q, status, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("selecting orders: %w", err)
		}

		const qc = `SELECT COUNT(*) FROM orders WHERE status = $1`
		if err := sqlx.GetContext(ctx, db, &total, qc, status); err != nil {
			return nil, 0, fmt.Errorf("counting orders: %w", err)
		}

		return orders, total, nil
	}

	const q = `SELECT * FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := sqlx.SelectContext(ctx, db, &orders, q, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("selecting orders: %w", err)
	}

	const qc = `SELECT COUNT(*) FROM orders`
	if err := sqlx.GetContext(ctx, db, &total, qc); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	return orders, total, nil
}

// UpdateStatus sets the order status, stamping delivered_at when provided.
func UpdateStatus(ctx context.Context, db sqlx.ExtContext, orderID string, status Status, deliveredAt *time.Time) error {
	const q = `
	UPDATE orders SET
		status = $2,
		delivered_at = COALESCE($3, delivered_at),
		updated_at = $4
	WHERE order_id = $1`

	res, err := db.ExecContext(ctx, q, orderID, status, deliveredAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating status of order[%s]: %w", orderID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}
