package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mkraiem/storefront/api/web"
	"github.com/mkraiem/storefront/api/weberr"
	"github.com/mkraiem/storefront/core/cart"
	"github.com/mkraiem/storefront/core/claims"
	"github.com/mkraiem/storefront/core/product"
	"github.com/mkraiem/storefront/database"
	"github.com/mkraiem/storefront/validate"

	"github.com/jmoiron/sqlx"
)

// checkoutAttempts bounds the retries on an order-number collision.
const checkoutAttempts = 3

// createFromCart converts the user's cart into an order. The whole workflow
// runs in one transaction: a failure on any line rolls back every stock
// decrement and leaves the cart as it was. Stock validation and decrement are
// a single conditional UPDATE per line, so concurrent checkouts cannot both
// claim the last units.
func createFromCart(ctx context.Context, db *sqlx.DB, userID string, cn CheckoutNew) (Order, error) {
	var out Order

	attempt := func() (Order, error) {
		var ord Order
		err := database.Transaction(db, func(tx sqlx.ExtContext) error {
			crt, err := cart.Fetch(ctx, tx, userID)
			if err != nil {
				return err
			}

			if len(crt.Items) == 0 {
				err := errors.New("cart is empty")
				return weberr.NewError(err, "Cart is empty", http.StatusBadRequest)
			}

			now := time.Now().UTC()
			ord = Order{
				ID:              validate.GenerateID(),
				Number:          GenerateNumber(now),
				UserID:          userID,
				Subtotal:        crt.Subtotal,
				Shipping:        crt.Shipping,
				Total:           crt.Total,
				DeliveryAddress: cn.DeliveryAddress,
				CustomerPhone:   cn.CustomerPhone,
				CustomerNotes:   cn.CustomerNotes,
				Status:          Pending,
				CreatedAt:       now,
				UpdatedAt:       now,
			}

			if err := Create(ctx, tx, ord); err != nil {
				return err
			}

			for _, it := range crt.Items {
				if err := product.DecrementStock(ctx, tx, it.ProductID, it.Quantity); err != nil {
					var ise *product.InsufficientStockError
					if errors.As(err, &ise) {
						msg := fmt.Sprintf("Insufficient stock for %s. Only %d available.", ise.Name, ise.Available)
						return weberr.NewError(err, msg, http.StatusBadRequest)
					}
					if errors.Is(err, product.ErrNotFound) {
						return weberr.NotFound(err)
					}
					return err
				}

				oi := Item{
					ID:        validate.GenerateID(),
					OrderID:   ord.ID,
					ProductID: it.ProductID,
					Quantity:  it.Quantity,
					Price:     it.Price,
					Discount:  it.Discount,
					CreatedAt: now,
				}

				if err := CreateItem(ctx, tx, oi); err != nil {
					return err
				}
			}

			if err := cart.Delete(ctx, tx, userID, false); err != nil {
				return err
			}

			var ferr error
			ord, ferr = Fetch(ctx, tx, ord.ID)
			return ferr
		})

		return ord, err
	}

	var err error
	for i := 0; i < checkoutAttempts; i++ {
		out, err = attempt()
		if err == nil || !database.IsUniqueViolation(err, "orders_order_number_key") {
			return out, err
		}
	}

	return Order{}, fmt.Errorf("exhausted order number generation attempts: %w", err)
}

func HandleCheckout(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var cn CheckoutNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		ord, err := createFromCart(ctx, db, clm.UserID, cn)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Success(ord, "Order created successfully"), http.StatusCreated)
	}
}

func HandleListOwn(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orders, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching orders of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, web.Success(orders, ""), http.StatusOK)
	}
}

type page struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"total"`
	Page   int     `json:"page"`
	Pages  int     `json:"pages"`
}

func HandleListAll(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		pg := intQuery(r, "page", 1)
		limit := intQuery(r, "limit", 20)
		if pg < 1 || limit < 1 || limit > 100 {
			err := errors.New("invalid pagination parameters")
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		status := Status(web.QueryParam(r, "status"))
		if status != "" && !status.Valid() {
			err := fmt.Errorf("unrecognized status %q", status)
			return weberr.NewError(err, "Valid status is required", http.StatusBadRequest)
		}

		orders, total, err := FetchAll(ctx, db, pg, limit, status)
		if err != nil {
			return fmt.Errorf("fetching orders: %w", err)
		}

		res := page{
			Orders: orders,
			Total:  total,
			Page:   pg,
			Pages:  (total + limit - 1) / limit,
		}

		return web.Respond(ctx, w, web.Success(res, ""), http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		ord, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching order[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, web.Success(ord, ""), http.StatusOK)
	}
}

func HandleUpdateStatus(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		var up StatusUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if !up.Status.Valid() {
			err := fmt.Errorf("unrecognized status %q", up.Status)
			return weberr.NewError(err, "Valid status is required", http.StatusBadRequest)
		}

		var deliveredAt *time.Time
		if up.Status == Delivered {
			now := time.Now().UTC()
			deliveredAt = &now
		}

		if err := UpdateStatus(ctx, db, id, up.Status, deliveredAt); err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("updating status of order[%s]: %w", id, err)
		}

		ord, err := Fetch(ctx, db, id)
		if err != nil {
			return fmt.Errorf("fetching order[%s]: %w", id, err)
		}

		msg := fmt.Sprintf("Order status updated to %s", up.Status)
		return web.Respond(ctx, w, web.Success(ord, msg), http.StatusOK)
	}
}

func intQuery(r *http.Request, key string, def int) int {
	v := web.QueryParam(r, key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}
