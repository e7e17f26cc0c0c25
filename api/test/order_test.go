package test

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"testing"

	"github.com/mkraiem/storefront/core/cart"
	"github.com/mkraiem/storefront/core/order"
	"github.com/mkraiem/storefront/core/product"

	"github.com/shopspring/decimal"
)

var orderNumberRe = regexp.MustCompile(`^ORD\d{10}$`)

type orderTest struct {
	*TestEnv
}

func (ot *orderTest) addToCart(t *testing.T, productID string, quantity int) {
	t.Helper()

	body := map[string]interface{}{"productId": productID, "quantity": quantity}
	code, env := ot.Do(t, http.MethodPost, "/cart/items", ot.UserToken, body)
	if code != http.StatusOK {
		t.Fatalf("adding item to cart: status code %d, message %q", code, env.Message)
	}
}

func (ot *orderTest) checkout(t *testing.T) (int, envelope) {
	t.Helper()

	body := map[string]interface{}{
		"deliveryAddress": "12 Main Street",
		"customerPhone":   "+15550100",
		"customerNotes":   "ring twice",
	}
	return ot.Do(t, http.MethodPost, "/orders/checkout", ot.UserToken, body)
}

func (ot *orderTest) productQuantity(t *testing.T, id string) (int, string) {
	t.Helper()

	prd, err := product.Fetch(context.TODO(), ot.DB, id)
	if err != nil {
		t.Fatalf("fetching product: %v", err)
	}
	return prd.Quantity, prd.Status
}

func TestOrders(t *testing.T) {
	env, err := NewTestEnv(t, "order_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ot := &orderTest{env}
	cat := env.SeedCategory(t, "groceries")

	coffee := env.SeedProduct(t, cat.ID, "coffee",
		decimal.RequireFromString("10.00"), decimal.Zero, 10, product.StatusActive)
	tea := env.SeedProduct(t, cat.ID, "tea",
		decimal.RequireFromString("5.00"), decimal.NewFromInt(10), 5, product.StatusActive)

	var firstOrder order.Order

	t.Run("emptyCartRejected", func(t *testing.T) {
		code, res := ot.checkout(t)
		if code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", code)
		}
		if res.Message != "Cart is empty" {
			t.Fatalf("unexpected message %q", res.Message)
		}
	})

	t.Run("missingAddressRejected", func(t *testing.T) {
		ot.addToCart(t, coffee.ID, 2)

		body := map[string]interface{}{"customerPhone": "+15550100"}
		code, _ := ot.Do(t, http.MethodPost, "/orders/checkout", ot.UserToken, body)
		if code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", code)
		}
	})

	t.Run("checkoutCreatesOrder", func(t *testing.T) {
		ot.addToCart(t, tea.ID, 1)

		code, res := ot.checkout(t)
		if code != http.StatusCreated {
			t.Fatalf("checking out: status code %d, message %q", code, res.Message)
		}
		if res.Message != "Order created successfully" {
			t.Fatalf("unexpected message %q", res.Message)
		}

		if err := json.Unmarshal(res.Data, &firstOrder); err != nil {
			t.Fatalf("decoding order: %v", err)
		}

		if !orderNumberRe.MatchString(firstOrder.Number) {
			t.Fatalf("malformed order number %q", firstOrder.Number)
		}
		if firstOrder.Status != order.Pending {
			t.Fatalf("expected pending status, got %q", firstOrder.Status)
		}
		if firstOrder.DeliveredAt != nil {
			t.Fatal("deliveredAt must be empty on a fresh order")
		}

		// 2 x 10.00 plus 1 x 5.00 at 10% off.
		if !firstOrder.Subtotal.Equal(decimal.RequireFromString("24.50")) {
			t.Fatalf("expected subtotal 24.50, got %s", firstOrder.Subtotal)
		}
		if !firstOrder.Total.Equal(decimal.RequireFromString("24.50")) {
			t.Fatalf("expected total 24.50, got %s", firstOrder.Total)
		}
		if len(firstOrder.Items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(firstOrder.Items))
		}
		if firstOrder.DeliveryAddress != "12 Main Street" {
			t.Fatalf("unexpected address %q", firstOrder.DeliveryAddress)
		}
	})

	t.Run("checkoutDecrementsStock", func(t *testing.T) {
		if qty, _ := ot.productQuantity(t, coffee.ID); qty != 8 {
			t.Fatalf("expected coffee stock 8, got %d", qty)
		}
		if qty, _ := ot.productQuantity(t, tea.ID); qty != 4 {
			t.Fatalf("expected tea stock 4, got %d", qty)
		}
	})

	t.Run("checkoutEmptiesCart", func(t *testing.T) {
		code, res := ot.Do(t, http.MethodGet, "/cart", ot.UserToken, nil)
		if code != http.StatusOK {
			t.Fatalf("fetching cart: status code %d", code)
		}

		var crt cart.Cart
		if err := json.Unmarshal(res.Data, &crt); err != nil {
			t.Fatal(err)
		}
		if len(crt.Items) != 0 {
			t.Fatalf("expected empty cart, got %d items", len(crt.Items))
		}
		if !crt.Subtotal.IsZero() {
			t.Fatalf("expected zero subtotal, got %s", crt.Subtotal)
		}
	})

	t.Run("drainedProductGoesOutOfStock", func(t *testing.T) {
		limited := env.SeedProduct(t, cat.ID, "limited",
			decimal.RequireFromString("2.00"), decimal.Zero, 2, product.StatusActive)

		ot.addToCart(t, limited.ID, 2)
		if code, res := ot.checkout(t); code != http.StatusCreated {
			t.Fatalf("checking out: status code %d, message %q", code, res.Message)
		}

		qty, status := ot.productQuantity(t, limited.ID)
		if qty != 0 {
			t.Fatalf("expected zero stock, got %d", qty)
		}
		if status != product.StatusOutOfStock {
			t.Fatalf("expected out_of_stock status, got %q", status)
		}
	})

	t.Run("insufficientStockAbortsCheckout", func(t *testing.T) {
		scarce := env.SeedProduct(t, cat.ID, "scarce",
			decimal.RequireFromString("3.00"), decimal.Zero, 2, product.StatusActive)

		ot.addToCart(t, scarce.ID, 2)

		// Stock shrinks between carting and checkout.
		if _, err := env.DB.Exec(`UPDATE products SET quantity = 1 WHERE product_id = $1`, scarce.ID); err != nil {
			t.Fatalf("shrinking stock: %v", err)
		}

		code, res := ot.checkout(t)
		if code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", code)
		}
		if res.Message != "Insufficient stock for scarce. Only 1 available." {
			t.Fatalf("unexpected message %q", res.Message)
		}

		// The whole attempt rolls back: cart keeps the line, stock untouched.
		codeCart, resCart := ot.Do(t, http.MethodGet, "/cart", ot.UserToken, nil)
		if codeCart != http.StatusOK {
			t.Fatalf("fetching cart: status code %d", codeCart)
		}
		var crt cart.Cart
		if err := json.Unmarshal(resCart.Data, &crt); err != nil {
			t.Fatal(err)
		}
		if len(crt.Items) != 1 || crt.Items[0].Quantity != 2 {
			t.Fatalf("expected untouched cart line of 2, got %+v", crt.Items)
		}
		if qty, _ := ot.productQuantity(t, scarce.ID); qty != 1 {
			t.Fatalf("expected stock 1, got %d", qty)
		}

		// Tidy up for the history checks below.
		if code, _ := ot.Do(t, http.MethodDelete, "/cart", ot.UserToken, nil); code != http.StatusOK {
			t.Fatalf("clearing cart: status code %d", code)
		}
	})

	t.Run("listOwnOrders", func(t *testing.T) {
		code, res := ot.Do(t, http.MethodGet, "/orders", ot.UserToken, nil)
		if code != http.StatusOK {
			t.Fatalf("listing orders: status code %d", code)
		}

		var orders []order.Order
		if err := json.Unmarshal(res.Data, &orders); err != nil {
			t.Fatal(err)
		}
		if len(orders) != 2 {
			t.Fatalf("expected 2 orders, got %d", len(orders))
		}
		// Newest first.
		if orders[1].ID != firstOrder.ID {
			t.Fatalf("expected the first order last, got %q", orders[1].ID)
		}
		if len(orders[1].Items) != 2 {
			t.Fatalf("expected populated items, got %d", len(orders[1].Items))
		}
	})

	t.Run("orderKeepsPriceSnapshot", func(t *testing.T) {
		// Repricing the catalog must not touch frozen order lines.
		if _, err := env.DB.Exec(`UPDATE products SET price = 99.99 WHERE product_id = $1`, coffee.ID); err != nil {
			t.Fatalf("repricing product: %v", err)
		}

		code, res := ot.Do(t, http.MethodGet, "/orders/"+firstOrder.ID, ot.AdminToken, nil)
		if code != http.StatusOK {
			t.Fatalf("fetching order: status code %d", code)
		}

		var ord order.Order
		if err := json.Unmarshal(res.Data, &ord); err != nil {
			t.Fatal(err)
		}
		for _, it := range ord.Items {
			if it.ProductID == coffee.ID && !it.Price.Equal(decimal.RequireFromString("10.00")) {
				t.Fatalf("expected snapshot price 10.00, got %s", it.Price)
			}
		}
		if !ord.Subtotal.Equal(firstOrder.Subtotal) {
			t.Fatalf("expected subtotal %s, got %s", firstOrder.Subtotal, ord.Subtotal)
		}
	})

	t.Run("listAllRequiresAdmin", func(t *testing.T) {
		code, _ := ot.Do(t, http.MethodGet, "/orders/all", ot.UserToken, nil)
		if code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", code)
		}

		code, res := ot.Do(t, http.MethodGet, "/orders/all?status=pending", ot.AdminToken, nil)
		if code != http.StatusOK {
			t.Fatalf("listing all orders: status code %d", code)
		}

		var pg struct {
			Orders []order.Order `json:"orders"`
			Total  int           `json:"total"`
			Page   int           `json:"page"`
			Pages  int           `json:"pages"`
		}
		if err := json.Unmarshal(res.Data, &pg); err != nil {
			t.Fatal(err)
		}
		if pg.Total != 2 {
			t.Fatalf("expected total 2, got %d", pg.Total)
		}

		code, _ = ot.Do(t, http.MethodGet, "/orders/all?status=misplaced", ot.AdminToken, nil)
		if code != http.StatusBadRequest {
			t.Fatalf("expected 400 on bogus status filter, got %d", code)
		}
	})

	t.Run("showOrder", func(t *testing.T) {
		code, res := ot.Do(t, http.MethodGet, "/orders/"+firstOrder.ID, ot.AdminToken, nil)
		if code != http.StatusOK {
			t.Fatalf("fetching order: status code %d", code)
		}

		var ord order.Order
		if err := json.Unmarshal(res.Data, &ord); err != nil {
			t.Fatal(err)
		}
		if ord.Number != firstOrder.Number {
			t.Fatalf("expected order number %q, got %q", firstOrder.Number, ord.Number)
		}

		code, _ = ot.Do(t, http.MethodGet, "/orders/"+validateBogusID, ot.AdminToken, nil)
		if code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", code)
		}
	})

	t.Run("statusUpdates", func(t *testing.T) {
		path := "/orders/" + firstOrder.ID + "/status"

		code, _ := ot.Do(t, http.MethodPut, path, ot.UserToken, map[string]interface{}{"status": "confirmed"})
		if code != http.StatusForbidden {
			t.Fatalf("expected 403 for non-admin, got %d", code)
		}

		code, res := ot.Do(t, http.MethodPut, path, ot.AdminToken, map[string]interface{}{"status": "teleported"})
		if code != http.StatusBadRequest {
			t.Fatalf("expected 400 on bogus status, got %d", code)
		}
		if res.Message != "Valid status is required" {
			t.Fatalf("unexpected message %q", res.Message)
		}

		code, res = ot.Do(t, http.MethodPut, path, ot.AdminToken, map[string]interface{}{"status": "confirmed"})
		if code != http.StatusOK {
			t.Fatalf("updating status: status code %d", code)
		}
		if res.Message != "Order status updated to confirmed" {
			t.Fatalf("unexpected message %q", res.Message)
		}

		var ord order.Order
		if err := json.Unmarshal(res.Data, &ord); err != nil {
			t.Fatal(err)
		}
		if ord.Status != order.Confirmed || ord.DeliveredAt != nil {
			t.Fatalf("unexpected order state: status %q deliveredAt %v", ord.Status, ord.DeliveredAt)
		}

		code, res = ot.Do(t, http.MethodPut, path, ot.AdminToken, map[string]interface{}{"status": "delivered"})
		if code != http.StatusOK {
			t.Fatalf("updating status: status code %d", code)
		}
		if err := json.Unmarshal(res.Data, &ord); err != nil {
			t.Fatal(err)
		}
		if ord.Status != order.Delivered {
			t.Fatalf("expected delivered status, got %q", ord.Status)
		}
		if ord.DeliveredAt == nil {
			t.Fatal("expected deliveredAt to be stamped")
		}

		code, _ = ot.Do(t, http.MethodPut, "/orders/"+validateBogusID+"/status", ot.AdminToken, map[string]interface{}{"status": "confirmed"})
		if code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", code)
		}
	})
}

// validateBogusID is a well-formed UUID that matches no record.
const validateBogusID = "7f0e9cbe-31a4-4c8b-b7a8-3f4f60a7a001"
