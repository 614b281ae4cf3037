package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xenking/coursemart/internal/domain/order"
)

var _ order.Repository = (*OrderStore)(nil)

// OrderStore keeps orders in memory.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]order.Order
}

// NewOrderStore returns an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]order.Order)}
}

func (s *OrderStore) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *o
	cp.CouponCodes = slices.Clone(o.CouponCodes)
	s.orders[o.ID] = cp
	return nil
}

func (s *OrderStore) Get(_ context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.CouponCodes = slices.Clone(o.CouponCodes)
	return &o, nil
}

func (s *OrderStore) MarkFinalized(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status == order.StatusFinalized {
		return nil
	}
	o.Status = order.StatusFinalized
	o.FinalizedAt = &at
	s.orders[id] = o
	return nil
}
