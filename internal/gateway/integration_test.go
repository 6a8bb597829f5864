package gateway

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"stockroom.app/internal/ids"
	"stockroom.app/internal/migrate"
	"stockroom.app/ops/migrations"
)

// openIntegrationDB migrates and seeds the database named by
// STOCKROOM_TEST_PG_DSN, or skips the test.
func openIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("STOCKROOM_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("STOCKROOM_TEST_PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mgr := migrate.NewManager(db, migrations.SQL(), migrations.Seeds())
	if err := mgr.Up(context.Background()); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if err := mgr.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

type fixture struct {
	userID, customerID, productID int64
}

func newFixture(t *testing.T, db *sql.DB, stock int64) fixture {
	t.Helper()
	ctx := context.Background()
	var f fixture
	if err := db.QueryRowContext(ctx,
		`select user_id from users where email = 'admin@stockroom.local'`).Scan(&f.userID); err != nil {
		t.Fatalf("admin user: %v", err)
	}
	if err := db.QueryRowContext(ctx,
		`insert into customers (customer_name) values ($1) returning customer_id`, "it-"+ids.New()).Scan(&f.customerID); err != nil {
		t.Fatalf("insert customer: %v", err)
	}
	if err := db.QueryRowContext(ctx, `
		insert into products (product_name, sku, category_id, supplier_id, unit_price, stock_quantity)
		select $1, $1, min(c.category_id), min(s.supplier_id), 10.00, $2
		  from categories c, suppliers s
		returning product_id`, "it-"+ids.New(), stock).Scan(&f.productID); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	return f
}

func TestIntegrationConcurrentOrdersNeverOversell(t *testing.T) {
	db := openIntegrationDB(t)
	f := newFixture(t, db, 1)
	gw, err := New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejects   int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gw.Execute(context.Background(),
				CreateOrderRequest{CustomerID: f.customerID, ProductID: f.productID, Quantity: 1},
				Actor{IdentityID: f.userID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case CodeOf(err) == CodeBusinessRuleViolation:
				rejects++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || rejects != callers-1 {
		t.Fatalf("expected 1 success and %d rejects, got %d and %d", callers-1, successes, rejects)
	}

	var stock int64
	if err := db.QueryRow(`select stock_quantity from products where product_id = $1`, f.productID).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if stock != 0 {
		t.Fatalf("expected stock 0, got %d", stock)
	}
}

func TestIntegrationPaymentOnSettledInvoice(t *testing.T) {
	db := openIntegrationDB(t)
	f := newFixture(t, db, 5)
	gw, err := New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	actor := Actor{IdentityID: f.userID}

	order, err := gw.Execute(ctx, CreateOrderRequest{CustomerID: f.customerID, ProductID: f.productID, Quantity: 2}, actor)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	var invoiceID int64
	if err := db.QueryRow(`select invoice_id from invoices where order_id = $1`, order.ID).Scan(&invoiceID); err != nil {
		t.Fatalf("read invoice: %v", err)
	}

	_, err = gw.Execute(ctx, ProcessPaymentRequest{InvoiceID: invoiceID, AmountPaid: 2500, PaymentMethod: "cash"}, actor)
	if !errors.Is(err, ErrBusinessRule) {
		t.Fatalf("overpayment must be rejected, got %v", err)
	}

	pay, err := gw.Execute(ctx, ProcessPaymentRequest{InvoiceID: invoiceID, AmountPaid: 2000, PaymentMethod: "card"}, actor)
	if err != nil || pay.ID <= 0 {
		t.Fatalf("pay invoice: %+v, %v", pay, err)
	}

	_, err = gw.Execute(ctx, ProcessPaymentRequest{InvoiceID: invoiceID, AmountPaid: 100, PaymentMethod: "card"}, actor)
	if !errors.Is(err, ErrBusinessRule) {
		t.Fatalf("expected ErrBusinessRule, got %v", err)
	}
	var ge *Error
	if !errors.As(err, &ge) || ge.Message != "Invoice already paid" {
		t.Fatalf("unexpected error %v", err)
	}
}
