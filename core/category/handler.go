package category

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mkraiem/storefront/api/web"
	"github.com/mkraiem/storefront/api/weberr"
	"github.com/mkraiem/storefront/database"
	"github.com/mkraiem/storefront/validate"

	"github.com/jmoiron/sqlx"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cats, err := FetchAll(ctx, db)
		if err != nil {
			return fmt.Errorf("fetching categories: %w", err)
		}

		return web.Respond(ctx, w, web.Success(cats, ""), http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		cat, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching category[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, web.Success(cat, ""), http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CategoryNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if cn.Status == "" {
			cn.Status = StatusActive
		}

		now := time.Now().UTC()
		cat := Category{
			ID:          validate.GenerateID(),
			Name:        cn.Name,
			Description: cn.Description,
			Status:      cn.Status,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := Create(ctx, db, cat); err != nil {
			if database.IsUniqueViolation(err, "categories_name_key") {
				return weberr.NewError(err, "category name already exists", http.StatusConflict)
			}
			return fmt.Errorf("creating category: %w", err)
		}

		return web.Respond(ctx, w, web.Success(cat, "Category created"), http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		var cu CategoryUp
		if err := web.Decode(w, r, &cu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		cat, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching category[%s]: %w", id, err)
		}

		if cu.Name != nil {
			cat.Name = *cu.Name
		}
		if cu.Description != nil {
			cat.Description = *cu.Description
		}
		if cu.Status != nil {
			cat.Status = *cu.Status
		}
		cat.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, cat); err != nil {
			return fmt.Errorf("updating category[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, web.Success(cat, "Category updated"), http.StatusOK)
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
			return fmt.Errorf("deleting category[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, web.Success(nil, "Category deleted"), http.StatusOK)
	}
}
