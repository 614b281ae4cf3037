package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Committer consumes coupon quota when an order is finalized.
type Committer struct {
	store   Redeemer
	metrics *Metrics
	now     func() time.Time
}

// NewCommitter creates a Committer over store. metrics may be nil.
func NewCommitter(store Redeemer, metrics *Metrics) *Committer {
	return &Committer{store: store, metrics: metrics, now: time.Now}
}

// Commit redeems codes for orderID. Either every code is redeemed or none
// is; in the latter case a *ConflictError lists the codes that could not be
// redeemed. Store failures are returned as other errors and leave no
// partial redemption behind.
func (c *Committer) Commit(ctx context.Context, codes []string, orderID string) error {
	codes = normalizeCodes(codes)
	if len(codes) == 0 {
		return nil
	}

	conflicts, err := c.store.Redeem(ctx, orderID, codes, c.now())
	if err != nil {
		return errors.Wrapf(err, "redeem coupons for order %s", orderID)
	}
	if len(conflicts) > 0 {
		c.metrics.conflicted(ctx, len(conflicts))
		zctx.From(ctx).Info("Coupon redemption conflict",
			zap.String("order_id", orderID),
			zap.Strings("codes", conflicts),
		)
		return &ConflictError{Codes: conflicts}
	}

	c.metrics.redeemed(ctx, len(codes))
	return nil
}
