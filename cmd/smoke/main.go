package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"stockroom.app/internal/catalog"
	"stockroom.app/internal/httpapi"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type client struct {
	base  string
	http  *http.Client
	token string
}

func (c *client) call(ctx context.Context, method, path string, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func main() {
	base := envOr("STOCKROOM_API_URL", "http://localhost:8080")
	grpcAddr := envOr("STOCKROOM_GRPC_ADDR", "localhost:9090")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	checkGRPCHealth(ctx, grpcAddr)

	c := &client{base: base, http: &http.Client{Timeout: 5 * time.Second}}

	var login struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	creds := map[string]string{
		"email":    envOr("STOCKROOM_SMOKE_EMAIL", "admin@stockroom.local"),
		"password": envOr("STOCKROOM_SMOKE_PASSWORD", "changeme"),
	}
	if code, err := c.call(ctx, http.MethodPost, "/api/auth/login", creds, &login); err != nil || code != http.StatusOK {
		log.Fatalf("login: status=%d err=%v", code, err)
	}
	c.token = login.Token

	var products struct {
		Products []catalog.Product `json:"products"`
	}
	if code, err := c.call(ctx, http.MethodGet, "/api/products", nil, &products); err != nil || code != http.StatusOK {
		log.Fatalf("list products: status=%d err=%v", code, err)
	}
	var target *catalog.Product
	for i := range products.Products {
		if products.Products[i].StockQuantity > 0 {
			target = &products.Products[i]
			break
		}
	}
	if target == nil {
		log.Fatal("no product in stock; run `stockroom-migrate seed` first")
	}

	var created struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		OrderID int64  `json:"order_id"`
	}
	order := map[string]int64{"customer_id": 1, "product_id": target.ID, "quantity": 1}
	if code, err := c.call(ctx, http.MethodPost, "/api/orders", order, &created); err != nil || code != http.StatusCreated {
		log.Fatalf("create order: status=%d err=%v message=%q", code, err, created.Message)
	}

	var oversell struct {
		Message string `json:"message"`
	}
	order["quantity"] = target.StockQuantity + 1_000_000
	if code, err := c.call(ctx, http.MethodPost, "/api/orders", order, &oversell); err != nil || code != http.StatusBadRequest {
		log.Fatalf("oversell must be rejected: status=%d err=%v", code, err)
	}

	var fetched struct {
		Order catalog.Order `json:"order"`
	}
	path := fmt.Sprintf("/api/orders/%d", created.OrderID)
	if code, err := c.call(ctx, http.MethodGet, path, nil, &fetched); err != nil || code != http.StatusOK {
		log.Fatalf("get order: status=%d err=%v", code, err)
	}
	if len(fetched.Order.Items) != 1 || fetched.Order.Items[0].ProductID != target.ID {
		log.Fatalf("unexpected order lines: %+v", fetched.Order.Items)
	}

	fmt.Printf("stockroom smoke test passed: order=%d product=%q rejected=%q\n", created.OrderID, target.Name, oversell.Message)
}

func checkGRPCHealth(ctx context.Context, addr string) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dial grpc %s: %v", addr, err)
	}
	defer conn.Close()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: httpapi.BackofficeService})
	if err != nil {
		log.Fatalf("grpc health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		log.Fatalf("grpc health: %s", resp.GetStatus())
	}
}
