// Package cache provides a Redis read-through cache in front of the coupon
// store. Cached snapshots only serve speculative validation; redemption
// always goes to the underlying store.
//
// Writes replace the snapshot with a tombstone that lives for
// tombstoneTTL, and read-through fills use SETNX. A reader that loaded the
// record before a write therefore cannot put the old snapshot back, unless
// its fill arrives more than tombstoneTTL after the write.
package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/coursemart/internal/domain/coupon"
)

const (
	keyPrefix = "coursemart:coupon:"

	tombstone    = "-"
	tombstoneTTL = 5 * time.Second
)

// Client is the subset of redis.Cmdable the cache needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

var _ coupon.Store = (*CouponStore)(nil)

// CouponStore caches FindByCode results and fences the cached entry after
// every write that goes through it.
type CouponStore struct {
	coupon.Store
	rdb Client
	ttl time.Duration
}

// NewCouponStore wraps next with a cache that keeps entries for ttl.
func NewCouponStore(next coupon.Store, rdb Client, ttl time.Duration) *CouponStore {
	return &CouponStore{Store: next, rdb: rdb, ttl: ttl}
}

func key(code string) string {
	return keyPrefix + code
}

// FindByCode serves from Redis when possible. Redis failures and fenced
// entries fall back to the store.
func (s *CouponStore) FindByCode(ctx context.Context, code string) (*coupon.Record, error) {
	lg := zctx.From(ctx)

	var corrupt bool
	data, err := s.rdb.Get(ctx, key(code)).Bytes()
	switch {
	case err == nil && string(data) == tombstone:
		// Fenced by a recent write.
	case err == nil:
		rec, err := decodeRecord(data)
		if err == nil {
			return rec, nil
		}
		corrupt = true
		lg.Warn("Drop undecodable coupon snapshot", zap.String("code", code), zap.Error(err))
	case !errors.Is(err, redis.Nil):
		lg.Warn("Coupon cache read failed", zap.String("code", code), zap.Error(err))
	}

	rec, err := s.Store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	snapshot := encodeRecord(rec)
	if corrupt {
		err = s.rdb.Set(ctx, key(code), snapshot, s.ttl).Err()
	} else {
		err = s.rdb.SetNX(ctx, key(code), snapshot, s.ttl).Err()
	}
	if err != nil {
		lg.Warn("Coupon cache write failed", zap.String("code", code), zap.Error(err))
	}
	return rec, nil
}

// Create stores rec and fences any snapshot left under its code.
func (s *CouponStore) Create(ctx context.Context, rec *coupon.Record) error {
	if err := s.Store.Create(ctx, rec); err != nil {
		return err
	}
	s.invalidate(ctx, rec.Code)
	return nil
}

// UpdateTerms replaces the terms in the store and fences the snapshot.
func (s *CouponStore) UpdateTerms(ctx context.Context, code string, terms coupon.Terms, now time.Time) (*coupon.Record, error) {
	rec, err := s.Store.UpdateTerms(ctx, code, terms, now)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, code)
	return rec, nil
}

// SetActive toggles the coupon in the store and fences the snapshot.
func (s *CouponStore) SetActive(ctx context.Context, code string, active bool, now time.Time) (*coupon.Record, error) {
	rec, err := s.Store.SetActive(ctx, code, active, now)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, code)
	return rec, nil
}

// Redeem always fences the snapshots: a success changed the used counts and
// a conflict means the cached counts were stale.
func (s *CouponStore) Redeem(ctx context.Context, orderID string, codes []string, now time.Time) ([]string, error) {
	conflicts, err := s.Store.Redeem(ctx, orderID, codes, now)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, codes...)
	return conflicts, nil
}

// invalidate replaces the snapshots of codes with tombstones.
func (s *CouponStore) invalidate(ctx context.Context, codes ...string) {
	for _, c := range codes {
		if err := s.rdb.Set(ctx, key(c), tombstone, tombstoneTTL).Err(); err != nil {
			zctx.From(ctx).Warn("Coupon cache invalidation failed", zap.String("code", c), zap.Error(err))
		}
	}
}
