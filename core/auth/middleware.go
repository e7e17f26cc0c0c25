package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mkraiem/storefront/api/web"
	"github.com/mkraiem/storefront/api/weberr"
	"github.com/mkraiem/storefront/core/claims"
	"github.com/mkraiem/storefront/core/user"

	"github.com/jmoiron/sqlx"
)

// Authenticate resolves the bearer token into claims and rejects requests
// from unknown or deactivated users.
func Authenticate(cfg Config, db *sqlx.DB) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return weberr.NotAuthorized(errors.New("missing bearer token"))
			}

			userID, _, err := ParseToken(cfg, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return weberr.NotAuthorized(fmt.Errorf("invalid bearer token: %w", err))
			}

			usr, err := user.Fetch(ctx, db, userID)
			if err != nil {
				if errors.Is(err, user.ErrNotFound) {
					return weberr.NotAuthorized(errors.New("user no longer exists"))
				}
				return fmt.Errorf("fetching token user[%s]: %w", userID, err)
			}

			if !usr.Active {
				return weberr.NotAuthorized(errors.New("user is deactivated"))
			}

			ctx = claims.Set(ctx, claims.Claims{UserID: usr.ID, Role: usr.Role})
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Admin gates a route to admin users. Must run after Authenticate.
func Admin() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			if !claims.IsAdmin(ctx) {
				return weberr.Forbidden(errors.New("admin role required"))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
