// Package catalog holds the read side of the back office: orders with their
// line items and the product list.
package catalog

import (
	"context"
	"errors"
	"time"

	"stockroom.app/internal/money"
)

// DefaultOrderLimit caps ListOrders.
const DefaultOrderLimit = 50

var ErrNotFound = errors.New("not found")

// Order is a placed order with its customer name.
type Order struct {
	ID           int64        `json:"order_id"`
	CustomerID   int64        `json:"customer_id"`
	CustomerName string       `json:"customer_name"`
	CreatedBy    int64        `json:"created_by"`
	OrderDate    time.Time    `json:"order_date"`
	Status       string       `json:"status"`
	TotalAmount  money.Amount `json:"total_amount"`
	Items        []OrderItem  `json:"items,omitempty"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID          int64        `json:"order_item_id"`
	OrderID     int64        `json:"order_id"`
	ProductID   int64        `json:"product_id"`
	ProductName string       `json:"product_name"`
	Quantity    int64        `json:"quantity"`
	UnitPrice   money.Amount `json:"unit_price"`
	LineTotal   money.Amount `json:"line_total"`
}

// Product is a catalog entry with its category and supplier.
type Product struct {
	ID            int64        `json:"product_id"`
	Name          string       `json:"product_name"`
	SKU           string       `json:"sku"`
	CategoryID    int64        `json:"category_id"`
	CategoryName  string       `json:"category_name"`
	SupplierID    int64        `json:"supplier_id"`
	SupplierName  string       `json:"supplier_name"`
	UnitPrice     money.Amount `json:"unit_price"`
	StockQuantity int64        `json:"stock_quantity"`
}

// Reader serves the read models.
type Reader interface {
	ListOrders(ctx context.Context, limit int) ([]Order, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

// ClampLimit bounds limit to (0, DefaultOrderLimit].
func ClampLimit(limit int) int {
	if limit <= 0 || limit > DefaultOrderLimit {
		return DefaultOrderLimit
	}
	return limit
}
