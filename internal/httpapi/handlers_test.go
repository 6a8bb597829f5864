package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"stockroom.app/internal/auth"
	"stockroom.app/internal/catalog"
	"stockroom.app/internal/gateway"
	"stockroom.app/internal/money"
)

const testPassword = "s3cret"

type stubUser struct {
	identity auth.Identity
	perms    []string
}

type stubAuth struct {
	issuer   *auth.Issuer
	users    map[string]stubUser
	loginErr error
}

func (s *stubAuth) Login(_ context.Context, email, password string) (auth.Session, error) {
	if s.loginErr != nil {
		return auth.Session{}, s.loginErr
	}
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return auth.Session{}, auth.ErrNotFound
	}
	if password != testPassword {
		return auth.Session{}, auth.ErrInvalidCredential
	}
	perms := auth.NewPermissionSet(u.perms...)
	tok, err := s.issuer.Issue(u.identity, perms)
	if err != nil {
		return auth.Session{}, err
	}
	return auth.Session{Token: tok, Identity: u.identity, Permissions: perms}, nil
}

func (s *stubAuth) Authenticate(token string) (auth.Principal, error) {
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return auth.Principal{}, err
	}
	return claims.Principal(), nil
}

type opCall struct {
	op    gateway.Operation
	actor gateway.Actor
}

type stubOps struct {
	mu     sync.Mutex
	calls  []opCall
	result gateway.Result
	err    error
}

func (s *stubOps) Execute(_ context.Context, op gateway.Operation, actor gateway.Actor) (gateway.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, opCall{op: op, actor: actor})
	return s.result, s.err
}

func (s *stubOps) respond(res gateway.Result, err error) {
	s.mu.Lock()
	s.result, s.err = res, err
	s.mu.Unlock()
}

func (s *stubOps) call(i int) opCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[i]
}

func (s *stubOps) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
	auth    *stubAuth
	ops     *stubOps
	catalog *catalog.InMemory
	ready   *stubReadiness
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	issuer, err := auth.NewIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	sa := &stubAuth{issuer: issuer, users: map[string]stubUser{
		"admin@example.com": {
			identity: auth.Identity{ID: 1, Email: "admin@example.com", Name: "Admin", RoleID: 1},
			perms:    []string{auth.PermOrdersCreate, auth.PermOrdersView, auth.PermPaymentsCreate, auth.PermProductsView},
		},
		"viewer@example.com": {
			identity: auth.Identity{ID: 2, Email: "viewer@example.com", Name: "Viewer", RoleID: 4},
			perms:    []string{auth.PermOrdersView},
		},
	}}
	ops := &stubOps{}
	cat := catalog.NewInMemory()
	ready := &stubReadiness{}

	api, err := New(Deps{Auth: sa, Ops: ops, Catalog: cat, Ready: ready, Version: "test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
		auth:    sa,
		ops:     ops,
		catalog: cat,
		ready:   ready,
	}
}

func (c *apiClient) do(method, path string, body io.Reader, headers map[string]string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		c.t.Fatalf("marshal body: %v", err)
	}
	return c.do(http.MethodPost, path, bytes.NewReader(payload), headers)
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	c.t.Helper()
	return c.do(http.MethodGet, path, nil, headers)
}

func (c *apiClient) login(email string) string {
	c.t.Helper()
	resp := c.post("/api/auth/login", map[string]string{"email": email, "password": testPassword}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected login status: %d", resp.StatusCode)
	}
	payload := decode[loginBody](c.t, resp)
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return payload.Token
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

type loginBody struct {
	Success   bool          `json:"success"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      auth.Identity `json:"user"`
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectError(t *testing.T, resp *http.Response, status int, msg string) envelope {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected status %d, got %d", status, resp.StatusCode)
	}
	body := decode[envelope](t, resp)
	if body.Success || body.Message != msg {
		t.Fatalf("expected failure %q, got %+v", msg, body)
	}
	if body.RequestID == "" {
		t.Fatalf("expected request_id in error body")
	}
	return body
}

func TestLoginSuccess(t *testing.T) {
	c := newTestAPI(t)
	resp := c.post("/api/auth/login", map[string]string{"email": "Admin@Example.com", "password": testPassword}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[loginBody](t, resp)
	if !body.Success || body.Token == "" {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.User.ID != 1 || body.User.RoleID != 1 || body.User.Email != "admin@example.com" {
		t.Fatalf("unexpected user %+v", body.User)
	}
	if d := time.Until(body.ExpiresAt); d < 23*time.Hour || d > 25*time.Hour {
		t.Fatalf("expected ~24h expiry, got %v", d)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	c := newTestAPI(t)

	unknown := expectError(t, c.post("/api/auth/login", map[string]string{"email": "ghost@example.com", "password": testPassword}, nil),
		http.StatusUnauthorized, "Invalid credentials")
	wrong := expectError(t, c.post("/api/auth/login", map[string]string{"email": "admin@example.com", "password": "nope"}, nil),
		http.StatusUnauthorized, "Invalid credentials")
	if unknown.Message != wrong.Message {
		t.Fatalf("responses differ: %+v vs %+v", unknown, wrong)
	}
}

func TestLoginHonoursConfiguredBodyLimit(t *testing.T) {
	issuer, err := auth.NewIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	sa := &stubAuth{issuer: issuer, users: map[string]stubUser{}}
	payload, err := json.Marshal(map[string]string{
		"email":    "admin@example.com",
		"password": strings.Repeat("x", 3<<19),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	send := func(limit int64) *httptest.ResponseRecorder {
		api, err := New(Deps{Auth: sa, Ops: &stubOps{}, Catalog: catalog.NewInMemory(), Ready: &stubReadiness{}, MaxBodyBytes: limit})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		api.Handler().ServeHTTP(rr, req)
		return rr
	}

	if rr := send(0); rr.Code != http.StatusBadRequest {
		t.Fatalf("default limit: expected 400, got %d", rr.Code)
	}
	if rr := send(2 << 20); rr.Code != http.StatusUnauthorized {
		t.Fatalf("raised limit: expected the body to be decoded, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestLoginValidation(t *testing.T) {
	c := newTestAPI(t)

	expectError(t, c.post("/api/auth/login", map[string]string{"email": "admin@example.com"}, nil),
		http.StatusBadRequest, "Email and password required")
	expectError(t, c.post("/api/auth/login", map[string]string{"email": " ", "password": "x"}, nil),
		http.StatusBadRequest, "Email and password required")
	expectError(t, c.post("/api/auth/login", map[string]any{"email": "a@b.c", "password": "x", "role": "admin"}, nil),
		http.StatusBadRequest, "Invalid request body")

	resp := c.get("/api/auth/login", nil)
	expectError(t, resp, http.StatusMethodNotAllowed, "Method not allowed")
	if resp.Header.Get("Allow") != http.MethodPost {
		t.Fatalf("expected Allow header, got %q", resp.Header.Get("Allow"))
	}
}

func TestLoginStorageFailure(t *testing.T) {
	c := newTestAPI(t)
	c.auth.loginErr = errors.New("connection refused")
	expectError(t, c.post("/api/auth/login", map[string]string{"email": "admin@example.com", "password": testPassword}, nil),
		http.StatusInternalServerError, "Login failed")
}

func TestGateRejectsUniformly(t *testing.T) {
	c := newTestAPI(t)

	otherIssuer, _ := auth.NewIssuer("another-secret")
	foreign, _ := otherIssuer.Issue(auth.Identity{ID: 1, RoleID: 1}, auth.NewPermissionSet(auth.PermOrdersView))
	pastIssuer, _ := auth.NewIssuer("test-secret", auth.WithClock(func() time.Time { return time.Now().Add(-48 * time.Hour) }))
	expired, _ := pastIssuer.Issue(auth.Identity{ID: 1, RoleID: 1}, auth.NewPermissionSet(auth.PermOrdersView))

	cases := map[string]map[string]string{
		"missing header": nil,
		"wrong scheme":   {"Authorization": "Basic YWRtaW46YWRtaW4="},
		"empty token":    {"Authorization": "Bearer "},
		"garbage token":  {"Authorization": "Bearer not.a.jwt"},
		"foreign secret": bearerHeader(foreign.Value),
		"expired":        bearerHeader(expired.Value),
	}
	for name, headers := range cases {
		t.Run(name, func(t *testing.T) {
			resp := c.get("/api/orders", headers)
			expectError(t, resp, http.StatusUnauthorized, "Authentication required")
			if resp.Header.Get("WWW-Authenticate") == "" {
				t.Fatal("expected WWW-Authenticate header")
			}
		})
	}
}

func TestPublicPathsBypassGate(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/health", nil)
	body := decode[map[string]string](t, resp)
	if resp.StatusCode != http.StatusOK || body["status"] != "OK" {
		t.Fatalf("unexpected /health: %d %v", resp.StatusCode, body)
	}
	for _, p := range []string{"/healthz", "/readyz", "/metrics"} {
		resp := c.get(p, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", p, resp.StatusCode)
		}
	}

	c.ready.set(errors.New("db down"))
	resp = c.get("/readyz", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestCreateOrder(t *testing.T) {
	c := newTestAPI(t)
	token := c.login("admin@example.com")
	c.ops.respond(gateway.Result{ID: 1001, Message: "Order created successfully"}, nil)

	resp := c.post("/api/orders", map[string]int64{"customer_id": 3, "product_id": 5, "quantity": 2}, bearerHeader(token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["success"] != true || body["order_id"] != float64(1001) || body["message"] != "Order created successfully" {
		t.Fatalf("unexpected body %v", body)
	}

	if c.ops.callCount() != 1 {
		t.Fatalf("expected one dispatch, got %d", c.ops.callCount())
	}
	call := c.ops.call(0)
	if call.actor.IdentityID != 1 {
		t.Fatalf("expected actor 1, got %d", call.actor.IdentityID)
	}
	req, ok := call.op.(gateway.CreateOrderRequest)
	if !ok || req != (gateway.CreateOrderRequest{CustomerID: 3, ProductID: 5, Quantity: 2}) {
		t.Fatalf("unexpected operation %#v", call.op)
	}
}

func TestCreateOrderWithoutPermissionNeverDispatches(t *testing.T) {
	c := newTestAPI(t)
	token := c.login("viewer@example.com")

	expectError(t, c.post("/api/orders", map[string]int64{"customer_id": 3, "product_id": 5, "quantity": 2}, bearerHeader(token)),
		http.StatusForbidden, "Insufficient permissions")
	expectError(t, c.post("/api/payments", map[string]any{"invoice_id": 1, "amount_paid": 10, "payment_method": "cash"}, bearerHeader(token)),
		http.StatusForbidden, "Insufficient permissions")
	expectError(t, c.get("/api/products", bearerHeader(token)),
		http.StatusForbidden, "Insufficient permissions")

	if c.ops.callCount() != 0 {
		t.Fatalf("gateway must not be reached, got %d calls", c.ops.callCount())
	}
}

func TestCreateOrderErrorMapping(t *testing.T) {
	c := newTestAPI(t)
	token := c.login("admin@example.com")
	payload := map[string]int64{"customer_id": 3, "product_id": 5, "quantity": 2}

	c.ops.respond(gateway.Result{}, &gateway.Error{Code: gateway.CodeBusinessRuleViolation, Message: "Insufficient stock: 1 available"})
	expectError(t, c.post("/api/orders", payload, bearerHeader(token)), http.StatusBadRequest, "Insufficient stock: 1 available")

	c.ops.respond(gateway.Result{}, &gateway.Error{Code: gateway.CodeInvalidRequest, Message: "customer_id, product_id, and quantity required"})
	expectError(t, c.post("/api/orders", payload, bearerHeader(token)), http.StatusBadRequest, "customer_id, product_id, and quantity required")

	c.ops.respond(gateway.Result{}, &gateway.Error{Code: gateway.CodeSystemFailure, Message: "Failed to create order", Err: errors.New("pq: relation missing")})
	expectError(t, c.post("/api/orders", payload, bearerHeader(token)), http.StatusInternalServerError, "Failed to create order")
}

func TestCreateOrderRejectsUnknownFields(t *testing.T) {
	c := newTestAPI(t)
	token := c.login("admin@example.com")

	expectError(t, c.post("/api/orders", map[string]any{"customer_id": 3, "product_id": 5, "quantity": 2, "price": 0}, bearerHeader(token)),
		http.StatusBadRequest, "Invalid request body")
	expectError(t, c.do(http.MethodPost, "/api/orders", strings.NewReader(`{"customer_id":3} {}`), bearerHeader(token)),
		http.StatusBadRequest, "Invalid request body")
	if c.ops.callCount() != 0 {
		t.Fatalf("gateway must not be reached, got %d calls", c.ops.callCount())
	}
}

func TestProcessPayment(t *testing.T) {
	c := newTestAPI(t)
	token := c.login("admin@example.com")
	c.ops.respond(gateway.Result{ID: 77, Message: "Payment processed successfully"}, nil)

	resp := c.do(http.MethodPost, "/api/payments",
		strings.NewReader(`{"invoice_id": 12, "amount_paid": 99.90, "payment_method": "card"}`), bearerHeader(token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["payment_id"] != float64(77) {
		t.Fatalf("unexpected body %v", body)
	}
	req, ok := c.ops.call(0).op.(gateway.ProcessPaymentRequest)
	if !ok || req.InvoiceID != 12 || req.AmountPaid != money.Amount(9990) || req.PaymentMethod != "card" {
		t.Fatalf("unexpected operation %#v", c.ops.call(0).op)
	}
}

func TestOrderReads(t *testing.T) {
	c := newTestAPI(t)
	token := c.login("viewer@example.com")
	c.catalog.PutOrder(catalog.Order{
		ID: 9, CustomerID: 3, CustomerName: "Acme", OrderDate: time.Now().UTC(), Status: "pending", TotalAmount: 2000,
		Items: []catalog.OrderItem{{ID: 1, OrderID: 9, ProductID: 5, ProductName: "Widget", Quantity: 2, UnitPrice: 1000, LineTotal: 2000}},
	})

	resp := c.get("/api/orders", bearerHeader(token))
	list := decode[struct {
		Success bool            `json:"success"`
		Orders  []catalog.Order `json:"orders"`
	}](t, resp)
	if !list.Success || len(list.Orders) != 1 || list.Orders[0].CustomerName != "Acme" {
		t.Fatalf("unexpected list %+v", list)
	}

	resp = c.get("/api/orders/9", bearerHeader(token))
	one := decode[struct {
		Success bool          `json:"success"`
		Order   catalog.Order `json:"order"`
	}](t, resp)
	if len(one.Order.Items) != 1 || one.Order.Items[0].ProductName != "Widget" || one.Order.TotalAmount != 2000 {
		t.Fatalf("unexpected order %+v", one.Order)
	}

	expectError(t, c.get("/api/orders/404", bearerHeader(token)), http.StatusNotFound, "Order not found")
	expectError(t, c.get("/api/orders/abc", bearerHeader(token)), http.StatusBadRequest, "Invalid order id")
}

func TestListProducts(t *testing.T) {
	c := newTestAPI(t)
	token := c.login("admin@example.com")
	c.catalog.PutProduct(catalog.Product{ID: 2, Name: "Widget", CategoryName: "Hardware", SupplierName: "Globex", UnitPrice: 1000})
	c.catalog.PutProduct(catalog.Product{ID: 1, Name: "Anchor", CategoryName: "Hardware", SupplierName: "Acme", UnitPrice: 250})

	resp := c.get("/api/products", bearerHeader(token))
	body := decode[struct {
		Success  bool              `json:"success"`
		Products []catalog.Product `json:"products"`
	}](t, resp)
	if !body.Success || len(body.Products) != 2 || body.Products[0].Name != "Anchor" {
		t.Fatalf("unexpected products %+v", body)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/api/orders", map[string]string{"X-Request-ID": "trace-123"})
	if got := resp.Header.Get("X-Request-ID"); got != "trace-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
	body := expectError(t, resp, http.StatusUnauthorized, "Authentication required")
	if body.RequestID != "trace-123" {
		t.Fatalf("expected request id in body, got %q", body.RequestID)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("expected error without dependencies")
	}
}
