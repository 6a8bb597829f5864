package pg

import (
	"context"
	"database/sql"
	"errors"

	"stockroom.app/internal/catalog"
)

var _ catalog.Reader = (*Store)(nil)

func (s *Store) ListOrders(ctx context.Context, limit int) ([]catalog.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		select o.order_id, o.customer_id, c.customer_name, o.created_by, o.order_date, o.status, o.total_amount
		from orders o
		join customers c on c.customer_id = o.customer_id
		where o.deleted_at is null
		order by o.order_date desc, o.order_id desc
		limit $1
	`, catalog.ClampLimit(limit))
	if err != nil {
		return nil, wrap("list orders", err)
	}
	defer rows.Close()

	orders := []catalog.Order{}
	for rows.Next() {
		var o catalog.Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.CreatedBy, &o.OrderDate, &o.Status, &o.TotalAmount); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder reads the order header and its lines in one read-only transaction
// so both come from the same snapshot.
func (s *Store) GetOrder(ctx context.Context, id int64) (catalog.Order, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return catalog.Order{}, wrap("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	var o catalog.Order
	err = tx.QueryRowContext(ctx, `
		select o.order_id, o.customer_id, c.customer_name, o.created_by, o.order_date, o.status, o.total_amount
		from orders o
		join customers c on c.customer_id = o.customer_id
		where o.order_id = $1 and o.deleted_at is null
	`, id).Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.CreatedBy, &o.OrderDate, &o.Status, &o.TotalAmount)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Order{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Order{}, wrap("get order", err)
	}

	rows, err := tx.QueryContext(ctx, `
		select oi.order_item_id, oi.order_id, oi.product_id, p.product_name, oi.quantity, oi.unit_price, oi.line_total
		from order_items oi
		join products p on p.product_id = oi.product_id
		where oi.order_id = $1
		order by oi.order_item_id
	`, id)
	if err != nil {
		return catalog.Order{}, wrap("order items", err)
	}
	defer rows.Close()

	o.Items = []catalog.OrderItem{}
	for rows.Next() {
		var it catalog.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return catalog.Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return catalog.Order{}, err
	}
	return o, tx.Commit()
}

func (s *Store) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.product_id, p.product_name, p.sku, p.category_id, c.category_name,
		       p.supplier_id, s.supplier_name, p.unit_price, p.stock_quantity
		from products p
		join categories c on c.category_id = p.category_id
		join suppliers s on s.supplier_id = p.supplier_id
		where p.deleted_at is null
		order by p.product_name
	`)
	if err != nil {
		return nil, wrap("list products", err)
	}
	defer rows.Close()

	products := []catalog.Product{}
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.CategoryID, &p.CategoryName,
			&p.SupplierID, &p.SupplierName, &p.UnitPrice, &p.StockQuantity); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}
