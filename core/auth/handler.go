package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mkraiem/storefront/api/web"
	"github.com/mkraiem/storefront/api/weberr"
	"github.com/mkraiem/storefront/core/user"
	"github.com/mkraiem/storefront/database"
	"github.com/mkraiem/storefront/rate"
	"github.com/mkraiem/storefront/validate"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

type SignupNew struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"eqfield=Password"`
}

type LoginNew struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type token struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

func HandleSignup(db *sqlx.DB, cfg Config) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var sn SignupNew
		if err := web.Decode(w, r, &sn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(sn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(sn.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("generating password hash: %w", err)
		}

		now := time.Now().UTC()
		usr := user.User{
			ID:           validate.GenerateID(),
			Name:         sn.Name,
			Email:        sn.Email,
			Role:         "customer",
			PasswordHash: hash,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := user.Create(ctx, db, usr); err != nil {
			if database.IsUniqueViolation(err, "users_email_key") {
				return weberr.NewError(err, "email is already registered", http.StatusConflict)
			}
			return fmt.Errorf("creating user: %w", err)
		}

		signed, err := IssueToken(cfg, usr.ID, usr.Role)
		if err != nil {
			return fmt.Errorf("issuing token for user[%s]: %w", usr.ID, err)
		}

		return web.Respond(ctx, w, web.Success(token{Token: signed, User: usr}, "Account created"), http.StatusCreated)
	}
}

func HandleLogin(db *sqlx.DB, cfg Config, limiter *rate.Limiter) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		if !limiter.Check(host) {
			err := errors.New("too many login attempts")
			return weberr.NewError(err, err.Error(), http.StatusTooManyRequests)
		}

		var ln LoginNew
		if err := web.Decode(w, r, &ln); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(ln); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		usr, err := user.FetchByEmail(ctx, db, ln.Email)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return weberr.NotAuthorized(errors.New("wrong email or password"))
			}
			return fmt.Errorf("fetching user by email: %w", err)
		}

		if !usr.Active {
			return weberr.NotAuthorized(errors.New("user is deactivated"))
		}

		if err := bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte(ln.Password)); err != nil {
			return weberr.NotAuthorized(errors.New("wrong email or password"))
		}

		signed, err := IssueToken(cfg, usr.ID, usr.Role)
		if err != nil {
			return fmt.Errorf("issuing token for user[%s]: %w", usr.ID, err)
		}

		return web.Respond(ctx, w, web.Success(token{Token: signed, User: usr}, ""), http.StatusOK)
	}
}
