package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                      "/",
		"/metrics":              "/metrics",
		"/api/orders":           "/api/orders",
		"/api/orders/42":        "/api/orders/:id",
		"/api/orders/42/items":  "/api/orders/42/items",
		"/api/orders?limit=10":  "/api/orders",
		"/api/payments":         "/api/payments",
		"/api/products?sort=up": "/api/products",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
