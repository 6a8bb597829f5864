package gateway

import (
	"strings"

	"stockroom.app/internal/money"
)

// Kind names a transactional operation.
type Kind string

const (
	KindCreateOrder    Kind = "create_order"
	KindProcessPayment Kind = "process_payment"
)

func (k Kind) String() string { return string(k) }

// failureMessage is what callers see when the data layer breaks.
func (k Kind) failureMessage() string {
	switch k {
	case KindCreateOrder:
		return "Failed to create order"
	case KindProcessPayment:
		return "Failed to process payment"
	default:
		return "Operation failed"
	}
}

const maxPaymentMethodLen = 32

// Operation is implemented only by the request types in this package.
type Operation interface {
	Kind() Kind
	normalize() (Operation, error)
	statement(actor Actor) (string, []any)
}

// Actor is the authenticated identity on whose behalf an operation runs.
type Actor struct {
	IdentityID int64
}

// Result is a successful operation: the created entity id and the
// procedure's confirmation message.
type Result struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// CreateOrderRequest places a single-line order.
type CreateOrderRequest struct {
	CustomerID int64 `json:"customer_id"`
	ProductID  int64 `json:"product_id"`
	Quantity   int64 `json:"quantity"`
}

func (CreateOrderRequest) Kind() Kind { return KindCreateOrder }

func (r CreateOrderRequest) normalize() (Operation, error) {
	if r.CustomerID == 0 || r.ProductID == 0 || r.Quantity == 0 {
		return nil, invalid("customer_id, product_id, and quantity required")
	}
	if r.CustomerID < 0 || r.ProductID < 0 || r.Quantity < 0 {
		return nil, invalid("customer_id, product_id, and quantity must be positive")
	}
	return r, nil
}

func (r CreateOrderRequest) statement(actor Actor) (string, []any) {
	return `select result_id, message from sp_create_order_v2($1, $2, $3, $4)`,
		[]any{r.CustomerID, r.ProductID, r.Quantity, actor.IdentityID}
}

// ProcessPaymentRequest settles (part of) an invoice.
type ProcessPaymentRequest struct {
	InvoiceID     int64        `json:"invoice_id"`
	AmountPaid    money.Amount `json:"amount_paid"`
	PaymentMethod string       `json:"payment_method"`
}

func (ProcessPaymentRequest) Kind() Kind { return KindProcessPayment }

func (r ProcessPaymentRequest) normalize() (Operation, error) {
	r.PaymentMethod = strings.ToLower(strings.TrimSpace(r.PaymentMethod))
	if r.InvoiceID == 0 || r.AmountPaid == 0 || r.PaymentMethod == "" {
		return nil, invalid("invoice_id, amount_paid, and payment_method required")
	}
	if r.InvoiceID < 0 || !r.AmountPaid.IsPositive() {
		return nil, invalid("invoice_id and amount_paid must be positive")
	}
	if len(r.PaymentMethod) > maxPaymentMethodLen {
		return nil, invalid("payment_method is too long")
	}
	return r, nil
}

func (r ProcessPaymentRequest) statement(actor Actor) (string, []any) {
	return `select result_id, message from sp_process_payment_v2($1, $2, $3, $4)`,
		[]any{r.InvoiceID, r.AmountPaid, r.PaymentMethod, actor.IdentityID}
}
