// Package memory provides in-process implementations of the coupon, order
// and API key stores. CouponStore serializes writes under one mutex so
// redemption keeps the all-or-nothing guarantees of the Postgres store.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xenking/coursemart/internal/domain/coupon"
)

var _ coupon.Store = (*CouponStore)(nil)

// CouponStore keeps coupons and their redemptions in memory.
type CouponStore struct {
	mu          sync.Mutex
	coupons     map[string]coupon.Record
	redemptions map[string][]string
}

// NewCouponStore returns a store seeded with recs.
func NewCouponStore(recs ...coupon.Record) *CouponStore {
	s := &CouponStore{
		coupons:     make(map[string]coupon.Record, len(recs)),
		redemptions: make(map[string][]string),
	}
	for _, r := range recs {
		s.coupons[r.Code] = r
	}
	return s
}

// FindByCode returns a copy of the stored coupon.
func (s *CouponStore) FindByCode(_ context.Context, code string) (*coupon.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &rec, nil
}

// List returns all coupons ordered by code.
func (s *CouponStore) List(_ context.Context) ([]coupon.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]coupon.Record, 0, len(s.coupons))
	for _, rec := range s.coupons {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b coupon.Record) int { return cmp.Compare(a.Code, b.Code) })
	return out, nil
}

// Create inserts rec.
func (s *CouponStore) Create(_ context.Context, rec *coupon.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.coupons[rec.Code]; ok {
		return coupon.ErrCodeExists
	}
	s.coupons[rec.Code] = *rec
	return nil
}

// UpdateTerms replaces the terms of code unless the new usage limit is below
// the used count.
func (s *CouponStore) UpdateTerms(_ context.Context, code string, terms coupon.Terms, now time.Time) (*coupon.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	if terms.UsageLimit != nil && *terms.UsageLimit < rec.UsedCount {
		return nil, coupon.ErrUsageLimitBelowUsed
	}
	rec.Terms = terms
	rec.UpdatedAt = now
	s.coupons[code] = rec
	return &rec, nil
}

// SetActive sets the active flag of code.
func (s *CouponStore) SetActive(_ context.Context, code string, active bool, now time.Time) (*coupon.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	rec.Active = active
	rec.UpdatedAt = now
	s.coupons[code] = rec
	return &rec, nil
}

// Redeem checks every code before incrementing any, so a conflict on one
// code leaves all counters untouched.
func (s *CouponStore) Redeem(_ context.Context, orderID string, codes []string, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.redemptions[orderID]; ok {
		return nil, nil
	}

	var conflicts []string
	for _, code := range codes {
		rec, ok := s.coupons[code]
		if !ok || !redeemable(rec, now) {
			conflicts = append(conflicts, code)
		}
	}
	if len(conflicts) > 0 {
		return conflicts, nil
	}

	for _, code := range codes {
		rec := s.coupons[code]
		rec.UsedCount++
		rec.UpdatedAt = now
		s.coupons[code] = rec
	}
	s.redemptions[orderID] = slices.Clone(codes)
	return nil, nil
}

// Redemptions returns the codes redeemed for orderID.
func (s *CouponStore) Redemptions(orderID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.redemptions[orderID])
}

func redeemable(rec coupon.Record, now time.Time) bool {
	if !rec.Active || now.Before(rec.ValidFrom) {
		return false
	}
	if rec.ValidUntil != nil && now.After(*rec.ValidUntil) {
		return false
	}
	return rec.UsageLimit == nil || rec.UsedCount < *rec.UsageLimit
}
