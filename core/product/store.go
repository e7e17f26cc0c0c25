package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("product not found")

// InsufficientStockError reports a decrement that would overdraw stock. It
// carries the live available quantity for user-facing messaging.
type InsufficientStockError struct {
	Name      string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: only %d available", e.Name, e.Available)
}

func Create(ctx context.Context, db sqlx.ExtContext, prd Product) error {
	const q = `
	INSERT INTO products
		(product_id, category_id, name, description, price, discount, quantity, status, created_at, updated_at)
	VALUES
		(:product_id, :category_id, :name, :description, :price, :discount, :quantity, :status, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, prd); err != nil {
		return fmt.Errorf("inserting product: %w", err)
	}

	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, prd Product) error {
	const q = `
	UPDATE products SET
		category_id = :category_id,
		name = :name,
		description = :description,
		price = :price,
		discount = :discount,
		quantity = :quantity,
		status = :status,
		updated_at = :updated_at
	WHERE product_id = :product_id`

	res, err := sqlx.NamedExecContext(ctx, db, q, prd)
	if err != nil {
		return fmt.Errorf("updating product[%s]: %w", prd.ID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `DELETE FROM products WHERE product_id = $1`

	res, err := db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("deleting product[%s]: %w", id, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Product, error) {
	const q = `SELECT * FROM products WHERE product_id = $1`

	var prd Product
	if err := sqlx.GetContext(ctx, db, &prd, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("selecting product[%s]: %w", id, err)
	}

	return prd, nil
}

// FetchAll returns a page of products, optionally filtered by category,
// newest first, together with the unpaged total.
func FetchAll(ctx context.Context, db sqlx.ExtContext, page int, limit int, categoryID string) ([]Product, int, error) {
	offset := (page - 1) * limit

	prds := []Product{}
	var total int

	if categoryID != "" {
		const q = `SELECT * FROM products WHERE category_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		if err := sqlx.SelectContext(ctx, db, &prds, q, categoryID, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("selecting products: %w", err)
		}

		const qc = `SELECT COUNT(*) FROM products WHERE category_id = $1`
		if err := sqlx.GetContext(ctx, db, &total, qc, categoryID); err != nil {
			return nil, 0, fmt.Errorf("counting products: %w", err)
		}

		return prds, total, nil
	}

	const q = `SELECT * FROM products ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := sqlx.SelectContext(ctx, db, &prds, q, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("selecting products: %w", err)
	}

	const qc = `SELECT COUNT(*) FROM products`
	if err := sqlx.GetContext(ctx, db, &total, qc); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	return prds, total, nil
}

// Available returns the live purchasable quantity of a product.
func Available(ctx context.Context, db sqlx.ExtContext, id string) (int, error) {
	const q = `SELECT quantity FROM products WHERE product_id = $1`

	var qty int
	if err := sqlx.GetContext(ctx, db, &qty, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("selecting product[%s] quantity: %w", id, err)
	}

	return qty, nil
}

// DecrementStock atomically takes amount units off a product's stock. The
// guard clause makes validation and decrement a single statement, so two
// concurrent checkouts cannot both succeed on the last units. A product that
// hits zero is flipped to out_of_stock.
func DecrementStock(ctx context.Context, db sqlx.ExtContext, id string, amount int) error {
	const q = `
	UPDATE products SET
		quantity = quantity - $2,
		status = CASE WHEN quantity - $2 = 0 THEN 'out_of_stock' ELSE status END,
		updated_at = $3
	WHERE product_id = $1 AND quantity >= $2`

	res, err := db.ExecContext(ctx, q, id, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("decrementing stock of product[%s]: %w", id, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		prd, err := Fetch(ctx, db, id)
		if err != nil {
			return err
		}
		return &InsufficientStockError{Name: prd.Name, Available: prd.Quantity}
	}

	return nil
}
