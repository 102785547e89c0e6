// Package memstore keeps orders in process memory. It is used when no database is configured
// and by tests that need deterministic store failures.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/DrGermanius/orderingest/internal"
	"github.com/DrGermanius/orderingest/internal/ingest"
	"github.com/DrGermanius/orderingest/internal/model"
)

type Store struct {
	mu      sync.RWMutex
	orders  map[string]model.Order
	nextID  int
	failErr error
}

func New() *Store {
	return &Store{orders: make(map[string]model.Order), nextID: 1}
}

// FailWith makes every following BulkInsert fail with err. Pass nil to clear.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *Store) BulkInsert(ctx context.Context, orders []model.Order) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, ingest.AsStoreError(err)
	}
	if s.failErr != nil {
		return 0, s.failErr
	}

	seen := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		_, exists := s.orders[o.OrderID]
		_, dup := seen[o.OrderID]
		if exists || dup {
			return 0, ingest.NewStoreError(ingest.ConstraintViolation,
				fmt.Errorf("duplicate key value violates unique constraint: order_id=%s", o.OrderID))
		}
		seen[o.OrderID] = struct{}{}
	}

	for _, o := range orders {
		o.ID = s.nextID
		s.nextID++
		s.orders[o.OrderID] = o
	}
	return len(orders), nil
}

func (s *Store) GetOrderByOrderID(_ context.Context, orderID string) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderID]
	if !ok {
		return model.Order{}, internal.ErrNoRecords
	}
	return o, nil
}

func (s *Store) ListOrders(_ context.Context, f model.OrderFilter) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Order
	for _, o := range s.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if f.Skip >= len(out) {
		return nil, nil
	}
	out = out[f.Skip:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
