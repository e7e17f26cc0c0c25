package product

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mkraiem/storefront/api/web"
	"github.com/mkraiem/storefront/api/weberr"
	"github.com/mkraiem/storefront/core/category"
	"github.com/mkraiem/storefront/validate"

	"github.com/jmoiron/sqlx"
)

type page struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Pages    int       `json:"pages"`
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		pg := intQuery(r, "page", 1)
		limit := intQuery(r, "limit", 10)
		if pg < 1 || limit < 1 || limit > 100 {
			err := errors.New("invalid pagination parameters")
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		categoryID := web.QueryParam(r, "category")
		if categoryID != "" {
			if err := validate.CheckID(categoryID); err != nil {
				return weberr.NewError(err, err.Error(), http.StatusBadRequest)
			}
		}

		prds, total, err := FetchAll(ctx, db, pg, limit, categoryID)
		if err != nil {
			return fmt.Errorf("fetching products: %w", err)
		}

		res := page{
			Products: prds,
			Total:    total,
			Page:     pg,
			Pages:    (total + limit - 1) / limit,
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

		prd, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching product[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, web.Success(prd, ""), http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var pn ProductNew
		if err := web.Decode(w, r, &pn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(pn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if err := checkMoney(pn.Price, pn.Discount); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if _, err := category.Fetch(ctx, db, pn.CategoryID); err != nil {
			if errors.Is(err, category.ErrNotFound) {
				return weberr.NewError(err, "category does not exist", http.StatusBadRequest)
			}
			return fmt.Errorf("fetching category[%s]: %w", pn.CategoryID, err)
		}

		if pn.Status == "" {
			pn.Status = StatusActive
		}

		now := time.Now().UTC()
		prd := Product{
			ID:          validate.GenerateID(),
			CategoryID:  pn.CategoryID,
			Name:        pn.Name,
			Description: pn.Description,
			Price:       pn.Price,
			Discount:    pn.Discount,
			Quantity:    pn.Quantity,
			Status:      pn.Status,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := Create(ctx, db, prd); err != nil {
			return fmt.Errorf("creating product: %w", err)
		}

		return web.Respond(ctx, w, web.Success(prd, "Product created"), http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		var pu ProductUp
		if err := web.Decode(w, r, &pu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(pu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		prd, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching product[%s]: %w", id, err)
		}

		if pu.CategoryID != nil {
			prd.CategoryID = *pu.CategoryID
		}
		if pu.Name != nil {
			prd.Name = *pu.Name
		}
		if pu.Description != nil {
			prd.Description = *pu.Description
		}
		if pu.Price != nil {
			prd.Price = *pu.Price
		}
		if pu.Discount != nil {
			prd.Discount = *pu.Discount
		}
		if pu.Quantity != nil {
			prd.Quantity = *pu.Quantity
		}
		if pu.Status != nil {
			prd.Status = *pu.Status
		}

		if err := checkMoney(prd.Price, prd.Discount); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}
		prd.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, prd); err != nil {
			return fmt.Errorf("updating product[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, web.Success(prd, "Product updated"), http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if err := Delete(ctx, db, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("deleting product[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, web.Success(nil, "Product deleted"), http.StatusOK)
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
