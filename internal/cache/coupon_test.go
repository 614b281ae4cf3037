package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coursemart/internal/domain/coupon"
	"github.com/xenking/coursemart/internal/repository/memory"
)

type fakeRedis struct {
	data   map[string]string
	getErr error
	fills  int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.data[key] = asString(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.fills++
	f.data[key] = asString(value)
	return redis.NewBoolResult(true, nil)
}

// expire drops key as if its TTL ran out.
func (f *fakeRedis) expire(key string) {
	delete(f.data, key)
}

func asString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v.(string)
}

// interleavedStore runs after once, between reading a coupon and returning
// it, to reproduce a write racing a read-through fill.
type interleavedStore struct {
	coupon.Store
	after func()
}

func (s *interleavedStore) FindByCode(ctx context.Context, code string) (*coupon.Record, error) {
	rec, err := s.Store.FindByCode(ctx, code)
	if fn := s.after; fn != nil {
		s.after = nil
		fn()
	}
	return rec, err
}

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func sampleRecord(t *testing.T) coupon.Record {
	t.Helper()
	scope, err := coupon.RestrictedTo("go-101", "rust-201")
	require.NoError(t, err)
	limit := int64(25)
	until := fixedNow.Add(30 * 24 * time.Hour)
	return coupon.Record{
		Code:      "SPRING25",
		Active:    true,
		UsedCount: 4,
		Terms: coupon.Terms{
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.RequireFromString("12.50"),
			MinAmount:     decimal.RequireFromString("20"),
			MaxDiscount:   decimal.NewNullDecimal(decimal.RequireFromString("30.00")),
			UsageLimit:    &limit,
			ValidFrom:     fixedNow.Add(-time.Hour),
			ValidUntil:    &until,
			Courses:       scope,
			Stackable:     true,
			Description:   "Spring sale",
		},
		CreatedAt: fixedNow.Add(-48 * time.Hour),
		UpdatedAt: fixedNow,
	}
}

func TestCodec(t *testing.T) {
	t.Run("restricted coupon with every optional field", func(t *testing.T) {
		rec := sampleRecord(t)

		got, err := decodeRecord(encodeRecord(&rec))
		require.NoError(t, err)
		assert.Equal(t, rec.Code, got.Code)
		assert.True(t, rec.DiscountValue.Equal(got.DiscountValue))
		assert.True(t, got.MaxDiscount.Valid)
		assert.True(t, rec.MaxDiscount.Decimal.Equal(got.MaxDiscount.Decimal))
		assert.Equal(t, *rec.UsageLimit, *got.UsageLimit)
		assert.True(t, rec.ValidUntil.Equal(*got.ValidUntil))
		assert.Equal(t, rec.Courses.CourseIDs(), got.Courses.CourseIDs())
		assert.Equal(t, rec.UsedCount, got.UsedCount)
	})

	t.Run("open coupon keeps nulls", func(t *testing.T) {
		rec := coupon.Record{
			Code:   "OPEN",
			Active: false,
			Terms: coupon.Terms{
				DiscountType:  coupon.DiscountFixed,
				DiscountValue: decimal.NewFromInt(5),
				ValidFrom:     fixedNow,
			},
		}

		got, err := decodeRecord(encodeRecord(&rec))
		require.NoError(t, err)
		assert.False(t, got.MaxDiscount.Valid)
		assert.Nil(t, got.UsageLimit)
		assert.Nil(t, got.ValidUntil)
		assert.False(t, got.Courses.Restricted())
		assert.False(t, got.Active)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := decodeRecord([]byte(`{"discountValue":12}`))
		require.Error(t, err)
	})
}

func TestCouponStore(t *testing.T) {
	ctx := context.Background()

	t.Run("read through then served from cache", func(t *testing.T) {
		rdb := newFakeRedis()
		store := NewCouponStore(memory.NewCouponStore(sampleRecord(t)), rdb, time.Minute)

		first, err := store.FindByCode(ctx, "SPRING25")
		require.NoError(t, err)
		assert.Equal(t, 1, rdb.fills)
		assert.Contains(t, rdb.data, "coursemart:coupon:SPRING25")

		second, err := store.FindByCode(ctx, "SPRING25")
		require.NoError(t, err)
		assert.Equal(t, 1, rdb.fills)
		assert.Equal(t, first.Code, second.Code)
	})

	t.Run("unknown code is not cached", func(t *testing.T) {
		rdb := newFakeRedis()
		store := NewCouponStore(memory.NewCouponStore(), rdb, time.Minute)

		_, err := store.FindByCode(ctx, "NOPE")
		require.ErrorIs(t, err, coupon.ErrNotFound)
		assert.Empty(t, rdb.data)
	})

	t.Run("redis outage falls back to store", func(t *testing.T) {
		rdb := newFakeRedis()
		rdb.getErr = errors.New("dial tcp: connection refused")
		store := NewCouponStore(memory.NewCouponStore(sampleRecord(t)), rdb, time.Minute)

		rec, err := store.FindByCode(ctx, "SPRING25")
		require.NoError(t, err)
		assert.Equal(t, "SPRING25", rec.Code)
	})

	t.Run("admin writes invalidate", func(t *testing.T) {
		rdb := newFakeRedis()
		store := NewCouponStore(memory.NewCouponStore(sampleRecord(t)), rdb, time.Minute)

		_, err := store.FindByCode(ctx, "SPRING25")
		require.NoError(t, err)

		_, err = store.SetActive(ctx, "SPRING25", false, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, tombstone, rdb.data["coursemart:coupon:SPRING25"])

		rec, err := store.FindByCode(ctx, "SPRING25")
		require.NoError(t, err)
		assert.False(t, rec.Active)
		assert.Equal(t, 1, rdb.fills)

		rdb.expire("coursemart:coupon:SPRING25")
		_, err = store.FindByCode(ctx, "SPRING25")
		require.NoError(t, err)
		assert.Equal(t, 2, rdb.fills)

		cached, err := store.FindByCode(ctx, "SPRING25")
		require.NoError(t, err)
		assert.False(t, cached.Active)
	})

	t.Run("stale fill after a write is refused", func(t *testing.T) {
		rdb := newFakeRedis()
		var store *CouponStore
		racing := &interleavedStore{Store: memory.NewCouponStore(sampleRecord(t))}
		racing.after = func() {
			_, err := store.SetActive(ctx, "SPRING25", false, fixedNow)
			require.NoError(t, err)
		}
		store = NewCouponStore(racing, rdb, time.Minute)

		stale, err := store.FindByCode(ctx, "SPRING25")
		require.NoError(t, err)
		assert.True(t, stale.Active)
		assert.Equal(t, tombstone, rdb.data["coursemart:coupon:SPRING25"])
		assert.Zero(t, rdb.fills)

		rec, err := store.FindByCode(ctx, "SPRING25")
		require.NoError(t, err)
		assert.False(t, rec.Active)
	})

	t.Run("undecodable snapshot is overwritten", func(t *testing.T) {
		rdb := newFakeRedis()
		rdb.data["coursemart:coupon:SPRING25"] = `{"code":`
		store := NewCouponStore(memory.NewCouponStore(sampleRecord(t)), rdb, time.Minute)

		_, err := store.FindByCode(ctx, "SPRING25")
		require.NoError(t, err)

		got, err := decodeRecord([]byte(rdb.data["coursemart:coupon:SPRING25"]))
		require.NoError(t, err)
		assert.Equal(t, "SPRING25", got.Code)
	})

	t.Run("redemption invalidates", func(t *testing.T) {
		rdb := newFakeRedis()
		store := NewCouponStore(memory.NewCouponStore(sampleRecord(t)), rdb, time.Minute)

		_, err := store.FindByCode(ctx, "SPRING25")
		require.NoError(t, err)

		conflicts, err := store.Redeem(ctx, "order-1", []string{"SPRING25"}, fixedNow)
		require.NoError(t, err)
		assert.Empty(t, conflicts)
		assert.Equal(t, tombstone, rdb.data["coursemart:coupon:SPRING25"])

		rec, err := store.FindByCode(ctx, "SPRING25")
		require.NoError(t, err)
		assert.EqualValues(t, 5, rec.UsedCount)
	})
}
