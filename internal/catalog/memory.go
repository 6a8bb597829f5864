package catalog

import (
	"context"
	"sort"
	"sync"
)

// InMemory implements Reader over in-process maps. Used by API tests and the
// smoke fixtures.
type InMemory struct {
	mu       sync.RWMutex
	orders   map[int64]Order
	products map[int64]Product
}

// NewInMemory creates an empty reader.
func NewInMemory() *InMemory {
	return &InMemory{
		orders:   make(map[int64]Order),
		products: make(map[int64]Product),
	}
}

// PutOrder stores or replaces an order.
func (s *InMemory) PutOrder(o Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.Items = append([]OrderItem(nil), o.Items...)
	s.orders[o.ID] = o
}

// PutProduct stores or replaces a product.
func (s *InMemory) PutProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *InMemory) ListOrders(ctx context.Context, limit int) ([]Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		o.Items = nil
		out = append(out, o)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderDate.Equal(out[j].OrderDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].OrderDate.After(out[j].OrderDate)
	})
	if limit = ClampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) GetOrder(ctx context.Context, id int64) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	o.Items = append([]OrderItem{}, o.Items...)
	return o, nil
}

func (s *InMemory) ListProducts(ctx context.Context) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
