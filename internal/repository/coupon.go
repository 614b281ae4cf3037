package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/coursemart/internal/domain/coupon"
)

const couponColumns = `code, discount_type, discount_value, min_amount, max_discount,
		usage_limit, used_count, is_active, valid_from, valid_until,
		applies_to_all_courses, allowed_course_ids, can_stack, description,
		created_at, updated_at`

const (
	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY code`

	createCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES (@code, @discount_type, @discount_value, @min_amount, @max_discount,
			@usage_limit, 0, @is_active, @valid_from, @valid_until,
			@applies_to_all_courses, @allowed_course_ids, @can_stack, @description,
			@now, @now)`

	// The used_count guard keeps the quota invariant under concurrent
	// redemptions between read and write.
	updateCouponTermsSQL = `UPDATE coupons SET
			discount_type = @discount_type,
			discount_value = @discount_value,
			min_amount = @min_amount,
			max_discount = @max_discount,
			usage_limit = @usage_limit,
			valid_from = @valid_from,
			valid_until = @valid_until,
			applies_to_all_courses = @applies_to_all_courses,
			allowed_course_ids = @allowed_course_ids,
			can_stack = @can_stack,
			description = @description,
			updated_at = @now
		WHERE code = @code AND (@usage_limit::BIGINT IS NULL OR used_count <= @usage_limit::BIGINT)
		RETURNING ` + couponColumns

	setCouponActiveSQL = `UPDATE coupons SET is_active = $2, updated_at = $3
		WHERE code = $1
		RETURNING ` + couponColumns

	couponExistsSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE code = $1)`

	redeemCouponSQL = `UPDATE coupons SET used_count = used_count + 1, updated_at = $2
		WHERE code = $1
			AND is_active
			AND valid_from <= $2
			AND (valid_until IS NULL OR valid_until >= $2)
			AND (usage_limit IS NULL OR used_count < usage_limit)`

	insertRedemptionSQL = `INSERT INTO coupon_redemptions (order_id, code, redeemed_at) VALUES ($1, $2, $3)`

	orderRedeemedSQL = `SELECT EXISTS (SELECT 1 FROM coupon_redemptions WHERE order_id = $1)`
)

var _ coupon.Store = (*CouponRepository)(nil)

// CouponRepository implements coupon.Store backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its normalized code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Record, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rec, nil
}

// List returns all coupons ordered by code.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Record, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}

	recs, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return recs, nil
}

// Create inserts rec with a zero used count.
func (r *CouponRepository) Create(ctx context.Context, rec *coupon.Record) error {
	args := termsArgs(rec.Code, rec.Terms, rec.CreatedAt)
	args["is_active"] = rec.Active

	if _, err := r.pool.Exec(ctx, createCouponSQL, args); err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrCodeExists
		}
		return fmt.Errorf("creating coupon %q: %w", rec.Code, err)
	}
	return nil
}

// UpdateTerms replaces the editable parameters of code.
func (r *CouponRepository) UpdateTerms(ctx context.Context, code string, terms coupon.Terms, now time.Time) (*coupon.Record, error) {
	rows, err := r.pool.Query(ctx, updateCouponTermsSQL, termsArgs(code, terms, now))
	if err != nil {
		return nil, fmt.Errorf("updating coupon %q: %w", code, err)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("updating coupon %q: %w", code, err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, couponExistsSQL, code).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking coupon %q: %w", code, err)
	}
	if !exists {
		return nil, coupon.ErrNotFound
	}
	return nil, coupon.ErrUsageLimitBelowUsed
}

// SetActive sets the active flag of code.
func (r *CouponRepository) SetActive(ctx context.Context, code string, active bool, now time.Time) (*coupon.Record, error) {
	rows, err := r.pool.Query(ctx, setCouponActiveSQL, code, active, now)
	if err != nil {
		return nil, fmt.Errorf("setting coupon %q active: %w", code, err)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("setting coupon %q active: %w", code, err)
	}
	return &rec, nil
}

// Redeem runs one conditional increment per code and records the
// redemptions in a single transaction. Any increment that matches no row
// rolls the whole transaction back.
func (r *CouponRepository) Redeem(ctx context.Context, orderID string, codes []string, now time.Time) ([]string, error) {
	redeemed, err := r.orderRedeemed(ctx, orderID)
	if err != nil || redeemed {
		return nil, err
	}

	conflicts, err := r.redeemTx(ctx, orderID, codes, now)
	switch {
	case isUniqueViolation(err):
		// A concurrent finalize of the same order committed first.
		return nil, nil
	case err != nil:
		return nil, err
	case len(conflicts) > 0:
		// The quota may have gone to a concurrent finalize of this order.
		redeemed, err := r.orderRedeemed(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if redeemed {
			return nil, nil
		}
	}
	return conflicts, nil
}

func (r *CouponRepository) redeemTx(ctx context.Context, orderID string, codes []string, now time.Time) ([]string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning redemption: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Rows are locked in code order so overlapping redemptions cannot
	// deadlock.
	var conflicts []string
	for _, code := range slices.Sorted(slices.Values(codes)) {
		tag, err := tx.Exec(ctx, redeemCouponSQL, code, now)
		if err != nil {
			return nil, fmt.Errorf("redeeming coupon %q: %w", code, err)
		}
		if tag.RowsAffected() == 0 {
			conflicts = append(conflicts, code)
		}
	}
	if len(conflicts) > 0 {
		return conflicts, nil
	}

	for _, code := range codes {
		if _, err := tx.Exec(ctx, insertRedemptionSQL, orderID, code, now); err != nil {
			return nil, fmt.Errorf("recording redemption of %q: %w", code, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing redemption: %w", err)
	}
	return nil, nil
}

func (r *CouponRepository) orderRedeemed(ctx context.Context, orderID string) (bool, error) {
	var redeemed bool
	if err := r.pool.QueryRow(ctx, orderRedeemedSQL, orderID).Scan(&redeemed); err != nil {
		return false, fmt.Errorf("checking redemptions of order %s: %w", orderID, err)
	}
	return redeemed, nil
}

func termsArgs(code string, t coupon.Terms, now time.Time) pgx.NamedArgs {
	ids := t.Courses.CourseIDs()
	if ids == nil {
		ids = []string{}
	}
	return pgx.NamedArgs{
		"code":                   code,
		"discount_type":          string(t.DiscountType),
		"discount_value":         t.DiscountValue,
		"min_amount":             t.MinAmount,
		"max_discount":           nullDecimal(t.MaxDiscount),
		"usage_limit":            t.UsageLimit,
		"valid_from":             t.ValidFrom,
		"valid_until":            t.ValidUntil,
		"applies_to_all_courses": !t.Courses.Restricted(),
		"allowed_course_ids":     ids,
		"can_stack":              t.Stackable,
		"description":            t.Description,
		"now":                    now,
	}
}

func nullDecimal(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	return &v.Decimal
}

func scanCoupon(row pgx.CollectableRow) (coupon.Record, error) {
	var (
		rec          coupon.Record
		discountType string
		maxDiscount  *decimal.Decimal
		allCourses   bool
		courseIDs    []string
	)
	err := row.Scan(
		&rec.Code, &discountType, &rec.DiscountValue, &rec.MinAmount, &maxDiscount,
		&rec.UsageLimit, &rec.UsedCount, &rec.Active, &rec.ValidFrom, &rec.ValidUntil,
		&allCourses, &courseIDs, &rec.Stackable, &rec.Description,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return rec, err
	}

	rec.DiscountType = coupon.DiscountType(discountType)
	if maxDiscount != nil {
		rec.MaxDiscount = decimal.NewNullDecimal(*maxDiscount)
	}
	if !allCourses {
		rec.Courses, err = coupon.RestrictedTo(courseIDs...)
		if err != nil {
			return rec, fmt.Errorf("coupon %q: %w", rec.Code, err)
		}
	}
	return rec, nil
}
