package api

import (
	"context"
	"net/http"

	"github.com/mkraiem/storefront/api/middleware"
	"github.com/mkraiem/storefront/api/web"
	"github.com/mkraiem/storefront/core/auth"
	"github.com/mkraiem/storefront/core/cart"
	"github.com/mkraiem/storefront/core/category"
	"github.com/mkraiem/storefront/core/order"
	"github.com/mkraiem/storefront/core/product"
	"github.com/mkraiem/storefront/core/user"
	"github.com/mkraiem/storefront/rate"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin   string
	Log          logrus.FieldLogger
	DB           *sqlx.DB
	Auth         auth.Config
	LoginLimiter *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Auth, cfg.DB)
	admin := auth.Admin()

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Auth))
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Auth, cfg.LoginLimiter))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)
	a.Handle(http.MethodPost, "/users", user.HandleCreate(cfg.DB), authen, admin)

	a.Handle(http.MethodGet, "/categories", category.HandleList(cfg.DB))
	a.Handle(http.MethodGet, "/categories/{id}", category.HandleShow(cfg.DB))
	a.Handle(http.MethodPost, "/categories", category.HandleCreate(cfg.DB), authen, admin)
	a.Handle(http.MethodPut, "/categories/{id}", category.HandleUpdate(cfg.DB), authen, admin)
	a.Handle(http.MethodDelete, "/categories/{id}", category.HandleDelete(cfg.DB), authen, admin)

	a.Handle(http.MethodGet, "/products", product.HandleList(cfg.DB))
	a.Handle(http.MethodGet, "/products/{id}", product.HandleShow(cfg.DB))
	a.Handle(http.MethodPost, "/products", product.HandleCreate(cfg.DB), authen, admin)
	a.Handle(http.MethodPut, "/products/{id}", product.HandleUpdate(cfg.DB), authen, admin)
	a.Handle(http.MethodDelete, "/products/{id}", product.HandleDelete(cfg.DB), authen, admin)

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodGet, "/cart/count", cart.HandleCount(cfg.DB), authen)
	a.Handle(http.MethodPost, "/cart/items", cart.HandleAddItem(cfg.DB), authen)
	a.Handle(http.MethodPut, "/cart/items/{id}", cart.HandleUpdateItem(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/cart/items/{id}", cart.HandleDeleteItem(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/cart", cart.HandleClear(cfg.DB), authen)
	a.Handle(http.MethodPut, "/cart/shipping", cart.HandleUpdateShipping(cfg.DB), authen)

	a.Handle(http.MethodPost, "/orders/checkout", order.HandleCheckout(cfg.DB), authen)
	a.Handle(http.MethodGet, "/orders", order.HandleListOwn(cfg.DB), authen)
	a.Handle(http.MethodGet, "/orders/all", order.HandleListAll(cfg.DB), authen, admin)
	a.Handle(http.MethodGet, "/orders/{id}", order.HandleShow(cfg.DB), authen, admin)
	a.Handle(http.MethodPut, "/orders/{id}/status", order.HandleUpdateStatus(cfg.DB), authen, admin)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
