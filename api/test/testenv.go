package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mkraiem/storefront/api"
	"github.com/mkraiem/storefront/config"
	"github.com/mkraiem/storefront/core/auth"
	"github.com/mkraiem/storefront/core/category"
	"github.com/mkraiem/storefront/core/product"
	"github.com/mkraiem/storefront/core/user"
	"github.com/mkraiem/storefront/database"
	"github.com/mkraiem/storefront/rate"
	"github.com/mkraiem/storefront/validate"

	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	AdminEmail = "admin@test.com"
	AdminPass  = "admin-test-pass"
	UserEmail  = "user@test.com"
	UserPass   = "user-test-pass"
)

// TestEnv is a full API instance backed by a disposable postgres container.
type TestEnv struct {
	DB         *sqlx.DB
	Server     *httptest.Server
	URL        string
	AdminToken string
	UserToken  string
	UserID     string
}

// envelope mirrors the API response shape for decoding in tests.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("connecting to docker: %w", err)
	}

	res, err := pool.RunWithOptions(&dockertest.RunOptions{
		Name:       "storefront-" + name,
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=storefront",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("starting postgres container: %w", err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(res); err != nil {
			t.Logf("purging postgres container: %v", err)
		}
	})

	cfg := config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       res.GetHostPort("5432/tcp"),
		Name:       "storefront",
		DisableTLS: true,
	}

	var db *sqlx.DB
	pool.MaxWait = time.Minute
	if err := pool.Retry(func() error {
		db, err = database.Open(cfg)
		return err
	}); err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	authCfg := auth.Config{Secret: "test-secret", TokenTimeout: time.Hour}

	mux := api.APIMux(api.APIConfig{
		Log:          logger,
		DB:           db,
		Auth:         authCfg,
		LoginLimiter: rate.NewLimiter(100, 100, 100),
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	env := &TestEnv{DB: db, Server: srv, URL: srv.URL}

	adminID, err := env.seedUser("admin", AdminEmail, AdminPass, "admin")
	if err != nil {
		return nil, err
	}
	userID, err := env.seedUser("user", UserEmail, UserPass, "customer")
	if err != nil {
		return nil, err
	}
	env.UserID = userID

	if env.AdminToken, err = auth.IssueToken(authCfg, adminID, "admin"); err != nil {
		return nil, err
	}
	if env.UserToken, err = auth.IssueToken(authCfg, userID, "customer"); err != nil {
		return nil, err
	}

	return env, nil
}

func (e *TestEnv) seedUser(name, email, pass, role string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.MinCost)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	usr := user.User{
		ID:           validate.GenerateID(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx := context.TODO()
	if err := user.Create(ctx, e.DB, usr); err != nil {
		return "", fmt.Errorf("seeding user %s: %w", email, err)
	}

	return usr.ID, nil
}

// SeedCategory inserts a category directly, bypassing the API.
func (e *TestEnv) SeedCategory(t *testing.T, name string) category.Category {
	t.Helper()

	now := time.Now().UTC()
	cat := category.Category{
		ID:        validate.GenerateID(),
		Name:      name,
		Status:    category.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := category.Create(context.TODO(), e.DB, cat); err != nil {
		t.Fatalf("seeding category: %v", err)
	}

	return cat
}

// SeedProduct inserts a product directly, bypassing the API.
func (e *TestEnv) SeedProduct(t *testing.T, categoryID, name string, price, discount decimal.Decimal, quantity int, status string) product.Product {
	t.Helper()

	now := time.Now().UTC()
	prd := product.Product{
		ID:         validate.GenerateID(),
		CategoryID: categoryID,
		Name:       name,
		Price:      price,
		Discount:   discount,
		Quantity:   quantity,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := product.Create(context.TODO(), e.DB, prd); err != nil {
		t.Fatalf("seeding product: %v", err)
	}

	return prd
}

// Do performs a request with the given bearer token and decodes the response
// envelope.
func (e *TestEnv) Do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		rd = bytes.NewReader(b)
	}

	r, err := http.NewRequest(method, e.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	w, err := e.Server.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	var env envelope
	if w.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
			t.Fatalf("decoding response envelope: %v", err)
		}
	}

	return w.StatusCode, env
}
