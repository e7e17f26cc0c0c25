package test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/mkraiem/storefront/core/cart"
	"github.com/mkraiem/storefront/core/product"

	"github.com/shopspring/decimal"
)

type cartTest struct {
	*TestEnv
}

func (ct *cartTest) fetchCart(t *testing.T) cart.Cart {
	t.Helper()

	code, env := ct.Do(t, http.MethodGet, "/cart", ct.UserToken, nil)
	if code != http.StatusOK {
		t.Fatalf("fetching cart: status code %d", code)
	}

	var crt cart.Cart
	if err := json.Unmarshal(env.Data, &crt); err != nil {
		t.Fatalf("decoding cart: %v", err)
	}
	return crt
}

func (ct *cartTest) addItemOK(t *testing.T, productID string, quantity int) cart.Cart {
	t.Helper()

	body := map[string]interface{}{"productId": productID, "quantity": quantity}
	code, env := ct.Do(t, http.MethodPost, "/cart/items", ct.UserToken, body)
	if code != http.StatusOK {
		t.Fatalf("adding item: status code %d, message %q", code, env.Message)
	}

	var crt cart.Cart
	if err := json.Unmarshal(env.Data, &crt); err != nil {
		t.Fatalf("decoding cart: %v", err)
	}
	return crt
}

func TestCart(t *testing.T) {
	env, err := NewTestEnv(t, "cart_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ct := &cartTest{env}
	cat := env.SeedCategory(t, "drinks")

	ten := decimal.NewFromInt(10)
	zero := decimal.Zero

	px := env.SeedProduct(t, cat.ID, "product-x", ten, zero, 5, product.StatusActive)

	t.Run("firstAddCreatesCart", func(t *testing.T) {
		crt := ct.addItemOK(t, px.ID, 2)

		if len(crt.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(crt.Items))
		}
		if crt.Items[0].Quantity != 2 {
			t.Fatalf("expected quantity 2, got %d", crt.Items[0].Quantity)
		}
		if !crt.Subtotal.Equal(decimal.NewFromInt(20)) {
			t.Fatalf("expected subtotal 20, got %s", crt.Subtotal)
		}
		if !crt.Total.Equal(decimal.NewFromInt(20)) {
			t.Fatalf("expected total 20, got %s", crt.Total)
		}
	})

	t.Run("addExistingMergesLines", func(t *testing.T) {
		crt := ct.addItemOK(t, px.ID, 1)

		if len(crt.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(crt.Items))
		}
		if crt.Items[0].Quantity != 3 {
			t.Fatalf("expected quantity 3, got %d", crt.Items[0].Quantity)
		}
		if !crt.Subtotal.Equal(decimal.NewFromInt(30)) {
			t.Fatalf("expected subtotal 30, got %s", crt.Subtotal)
		}
	})

	t.Run("addBeyondStockFails", func(t *testing.T) {
		// 3 already held, stock 5: asking 3 more exceeds availability.
		body := map[string]interface{}{"productId": px.ID, "quantity": 3}
		code, res := ct.Do(t, http.MethodPost, "/cart/items", ct.UserToken, body)
		if code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", code)
		}
		if res.Success {
			t.Fatal("expected failure envelope")
		}
		if res.Message != "Only 5 items available" {
			t.Fatalf("unexpected message %q", res.Message)
		}
	})

	t.Run("addExactStockBoundary", func(t *testing.T) {
		// 2 more brings the line exactly to the available 5.
		crt := ct.addItemOK(t, px.ID, 2)
		if crt.Items[0].Quantity != 5 {
			t.Fatalf("expected quantity 5, got %d", crt.Items[0].Quantity)
		}
	})

	t.Run("updateItemQuantity", func(t *testing.T) {
		crt := ct.fetchCart(t)
		itemID := crt.Items[0].ID

		body := map[string]interface{}{"quantity": 1}
		code, env := ct.Do(t, http.MethodPut, "/cart/items/"+itemID, ct.UserToken, body)
		if code != http.StatusOK {
			t.Fatalf("updating item: status code %d, message %q", code, env.Message)
		}

		if err := json.Unmarshal(env.Data, &crt); err != nil {
			t.Fatal(err)
		}
		if crt.Items[0].Quantity != 1 {
			t.Fatalf("expected quantity 1, got %d", crt.Items[0].Quantity)
		}
		if !crt.Subtotal.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("expected subtotal 10, got %s", crt.Subtotal)
		}

		body = map[string]interface{}{"quantity": 6}
		code, _ = ct.Do(t, http.MethodPut, "/cart/items/"+itemID, ct.UserToken, body)
		if code != http.StatusBadRequest {
			t.Fatalf("expected 400 on over-stock update, got %d", code)
		}

		body = map[string]interface{}{"quantity": 0}
		code, _ = ct.Do(t, http.MethodPut, "/cart/items/"+itemID, ct.UserToken, body)
		if code != http.StatusBadRequest {
			t.Fatalf("expected 400 on zero quantity, got %d", code)
		}
	})

	t.Run("shippingUpdatesTotal", func(t *testing.T) {
		body := map[string]interface{}{"shipping": 3}
		code, env := ct.Do(t, http.MethodPut, "/cart/shipping", ct.UserToken, body)
		if code != http.StatusOK {
			t.Fatalf("updating shipping: status code %d", code)
		}

		var crt cart.Cart
		if err := json.Unmarshal(env.Data, &crt); err != nil {
			t.Fatal(err)
		}
		if !crt.Total.Equal(decimal.NewFromInt(13)) {
			t.Fatalf("expected total 13, got %s", crt.Total)
		}

		body = map[string]interface{}{"shipping": -1}
		code, _ = ct.Do(t, http.MethodPut, "/cart/shipping", ct.UserToken, body)
		if code != http.StatusBadRequest {
			t.Fatalf("expected 400 on negative shipping, got %d", code)
		}
	})

	t.Run("countsDistinctLines", func(t *testing.T) {
		code, env := ct.Do(t, http.MethodGet, "/cart/count", ct.UserToken, nil)
		if code != http.StatusOK {
			t.Fatalf("counting items: status code %d", code)
		}

		var res struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(env.Data, &res); err != nil {
			t.Fatal(err)
		}
		if res.Count != 1 {
			t.Fatalf("expected count 1, got %d", res.Count)
		}
	})

	t.Run("clearIsIdempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			code, env := ct.Do(t, http.MethodDelete, "/cart", ct.UserToken, nil)
			if code != http.StatusOK {
				t.Fatalf("clearing cart (attempt %d): status code %d", i, code)
			}

			var crt cart.Cart
			if err := json.Unmarshal(env.Data, &crt); err != nil {
				t.Fatal(err)
			}
			if len(crt.Items) != 0 {
				t.Fatalf("expected empty cart, got %d items", len(crt.Items))
			}
			if !crt.Subtotal.IsZero() {
				t.Fatalf("expected zero subtotal, got %s", crt.Subtotal)
			}
			// Shipping survives a plain clear; total keeps the invariant.
			if !crt.Shipping.Equal(decimal.NewFromInt(3)) {
				t.Fatalf("expected shipping 3, got %s", crt.Shipping)
			}
			if !crt.Total.Equal(decimal.NewFromInt(3)) {
				t.Fatalf("expected total 3, got %s", crt.Total)
			}
		}

		code, env := ct.Do(t, http.MethodDelete, "/cart?shipping=reset", ct.UserToken, nil)
		if code != http.StatusOK {
			t.Fatalf("clearing cart with shipping reset: status code %d", code)
		}

		var crt cart.Cart
		if err := json.Unmarshal(env.Data, &crt); err != nil {
			t.Fatal(err)
		}
		if !crt.Shipping.IsZero() || !crt.Total.IsZero() {
			t.Fatalf("expected zero shipping and total, got %s and %s", crt.Shipping, crt.Total)
		}
	})

	t.Run("inactiveProductRejected", func(t *testing.T) {
		inactive := env.SeedProduct(t, cat.ID, "retired", ten, zero, 5, product.StatusInactive)

		body := map[string]interface{}{"productId": inactive.ID, "quantity": 1}
		code, res := ct.Do(t, http.MethodPost, "/cart/items", ct.UserToken, body)
		if code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", code)
		}
		if res.Message != "product is not available" {
			t.Fatalf("unexpected message %q", res.Message)
		}
	})

	t.Run("unknownProductRejected", func(t *testing.T) {
		body := map[string]interface{}{"productId": "2c79ad35-6943-4e13-8b55-6dd0e3d0699c", "quantity": 1}
		code, _ := ct.Do(t, http.MethodPost, "/cart/items", ct.UserToken, body)
		if code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", code)
		}
	})

	t.Run("concurrentAddsMergeIntoOneLine", func(t *testing.T) {
		py := env.SeedProduct(t, cat.ID, "product-y", ten, zero, 50, product.StatusActive)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		const workers = 8
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				body := strings.NewReader(`{"productId":"` + py.ID + `","quantity":1}`)
				r, err := http.NewRequest(http.MethodPost, env.URL+"/cart/items", body)
				if err != nil {
					errs <- err
					return
				}
				r.Header.Set("Authorization", "Bearer "+env.UserToken)
				r.Header.Set("Content-Type", "application/json")
				w, err := env.Server.Client().Do(r)
				if err != nil {
					errs <- err
					return
				}
				w.Body.Close()
				if w.StatusCode != http.StatusOK {
					errs <- fmt.Errorf("status code %d", w.StatusCode)
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent add: %v", err)
		}

		crt := ct.fetchCart(t)

		var line *cart.Item
		n := 0
		for i := range crt.Items {
			if crt.Items[i].ProductID == py.ID {
				line = &crt.Items[i]
				n++
			}
		}
		if n != 1 {
			t.Fatalf("expected exactly one line for the product, got %d", n)
		}
		if line.Quantity != workers {
			t.Fatalf("expected merged quantity %d, got %d", workers, line.Quantity)
		}
	})
}
