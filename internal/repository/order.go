package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/coursemart/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
		(id, buyer_id, course_id, subtotal, discount, total, coupon_codes, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getOrderSQL = `SELECT id, buyer_id, course_id, subtotal, discount, total,
		coupon_codes, status, created_at, finalized_at
		FROM orders WHERE id = $1`

	finalizeOrderSQL = `UPDATE orders SET status = 'FINALIZED', finalized_at = $2
		WHERE id = $1 AND status = 'PENDING'`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	codes := o.CouponCodes
	if codes == nil {
		codes = []string{}
	}
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.BuyerID, o.CourseID, o.Subtotal, o.Discount, o.Total,
		codes, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns the order with the given id. Malformed ids are reported as
// order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, order.ErrNotFound
	}
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// MarkFinalized transitions a pending order. Finalized orders are left as
// they are.
func (r *OrderRepository) MarkFinalized(ctx context.Context, id string, at time.Time) error {
	if _, err := r.pool.Exec(ctx, finalizeOrderSQL, id, at); err != nil {
		return fmt.Errorf("finalizing order %q: %w", id, err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.BuyerID, &o.CourseID, &o.Subtotal, &o.Discount, &o.Total,
		&o.CouponCodes, &status, &o.CreatedAt, &o.FinalizedAt,
	)
	o.Status = order.Status(status)
	return o, err
}
