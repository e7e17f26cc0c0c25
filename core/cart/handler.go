package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mkraiem/storefront/api/web"
	"github.com/mkraiem/storefront/api/weberr"
	"github.com/mkraiem/storefront/core/claims"
	"github.com/mkraiem/storefront/core/product"
	"github.com/mkraiem/storefront/database"
	"github.com/mkraiem/storefront/validate"

	"github.com/jmoiron/sqlx"
)

func addItem(ctx context.Context, db *sqlx.DB, userID string, productID string, quantity int) (Cart, error) {
	var out Cart
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		prd, err := product.Fetch(ctx, tx, productID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching product[%s]: %w", productID, err)
		}

		if prd.Status != product.StatusActive {
			err := errors.New("product is not available")
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if _, err := Fetch(ctx, tx, userID); err != nil {
			return err
		}

		held, err := itemQuantity(ctx, tx, userID, productID)
		if err != nil {
			return err
		}

		// The stock check covers what the user already holds, so repeated
		// adds cannot creep past availability.
		if prd.Quantity < held+quantity {
			err := fmt.Errorf("only %d items available", prd.Quantity)
			return weberr.NewError(err, fmt.Sprintf("Only %d items available", prd.Quantity), http.StatusBadRequest)
		}

		now := time.Now().UTC()
		it := Item{
			ID:        validate.GenerateID(),
			UserID:    userID,
			ProductID: productID,
			Quantity:  quantity,
			Price:     prd.Price,
			Discount:  prd.Discount,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := UpsertItem(ctx, tx, it); err != nil {
			return err
		}

		if err := Recalculate(ctx, tx, userID); err != nil {
			return err
		}

		out, err = Fetch(ctx, tx, userID)
		return err
	})

	return out, err
}

func updateItem(ctx context.Context, db *sqlx.DB, userID string, itemID string, quantity int) (Cart, error) {
	var out Cart
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		it, err := FetchItem(ctx, tx, userID, itemID)
		if err != nil {
			if errors.Is(err, ErrItemNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		available, err := product.Available(ctx, tx, it.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if available < quantity {
			err := fmt.Errorf("only %d items available", available)
			return weberr.NewError(err, fmt.Sprintf("Only %d items available", available), http.StatusBadRequest)
		}

		if err := UpdateItemQuantity(ctx, tx, userID, itemID, quantity); err != nil {
			return err
		}

		if err := Recalculate(ctx, tx, userID); err != nil {
			return err
		}

		out, err = Fetch(ctx, tx, userID)
		return err
	})

	return out, err
}

func removeItem(ctx context.Context, db *sqlx.DB, userID string, itemID string) (Cart, error) {
	var out Cart
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := DeleteItem(ctx, tx, userID, itemID); err != nil {
			if errors.Is(err, ErrItemNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if err := Recalculate(ctx, tx, userID); err != nil {
			return err
		}

		var err error
		out, err = Fetch(ctx, tx, userID)
		return err
	})

	return out, err
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		crt, err := Fetch(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching cart of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, web.Success(crt, ""), http.StatusOK)
	}
}

func HandleAddItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if err := validate.CheckID(in.ProductID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if in.Quantity == 0 {
			in.Quantity = 1
		}

		crt, err := addItem(ctx, db, clm.UserID, in.ProductID, in.Quantity)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Success(crt, "Item added to cart"), http.StatusOK)
	}
}

func HandleUpdateItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		itemID := web.Param(r, "id")
		if err := validate.CheckID(itemID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		var up ItemUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(up); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		crt, err := updateItem(ctx, db, clm.UserID, itemID, up.Quantity)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Success(crt, "Cart item updated"), http.StatusOK)
	}
}

func HandleDeleteItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		itemID := web.Param(r, "id")
		if err := validate.CheckID(itemID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		crt, err := removeItem(ctx, db, clm.UserID, itemID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Success(crt, "Item removed from cart"), http.StatusOK)
	}
}

func HandleClear(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		resetShipping := web.QueryParam(r, "shipping") == "reset"

		var crt Cart
		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			if _, err := Fetch(ctx, tx, clm.UserID); err != nil {
				return err
			}

			if err := Delete(ctx, tx, clm.UserID, resetShipping); err != nil {
				return err
			}

			var err error
			crt, err = Fetch(ctx, tx, clm.UserID)
			return err
		})
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Success(crt, "Cart cleared successfully"), http.StatusOK)
	}
}

func HandleUpdateShipping(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var up ShippingUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if up.Shipping.IsNegative() {
			err := errors.New("valid shipping cost is required")
			return weberr.NewError(err, "Valid shipping cost is required", http.StatusBadRequest)
		}

		var crt Cart
		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			if _, err := Fetch(ctx, tx, clm.UserID); err != nil {
				return err
			}

			if err := UpdateShipping(ctx, tx, clm.UserID, up.Shipping); err != nil {
				return err
			}

			var err error
			crt, err = Fetch(ctx, tx, clm.UserID)
			return err
		})
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Success(crt, "Shipping cost updated"), http.StatusOK)
	}
}

func HandleCount(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		n, err := ItemCount(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("counting cart items of user[%s]: %w", clm.UserID, err)
		}

		res := struct {
			Count int `json:"count"`
		}{Count: n}

		return web.Respond(ctx, w, web.Success(res, ""), http.StatusOK)
	}
}
