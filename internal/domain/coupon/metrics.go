package coupon

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "coursemart/coupon"

// Metrics records engine and redemption counters. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	validations metric.Int64Counter
	redemptions metric.Int64Counter
	conflicts   metric.Int64Counter
}

// NewMetrics registers the coupon counters on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	validations, err := meter.Int64Counter("coupon.validations",
		metric.WithDescription("Candidate codes evaluated, by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "validations counter")
	}
	redemptions, err := meter.Int64Counter("coupon.redemptions",
		metric.WithDescription("Coupon codes redeemed by finalized orders"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "redemptions counter")
	}
	conflicts, err := meter.Int64Counter("coupon.redemption.conflicts",
		metric.WithDescription("Redemption attempts that lost a quota race"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "conflicts counter")
	}

	return &Metrics{
		validations: validations,
		redemptions: redemptions,
		conflicts:   conflicts,
	}, nil
}

func (m *Metrics) validated(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) redeemed(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.redemptions.Add(ctx, int64(n))
}

func (m *Metrics) conflicted(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.conflicts.Add(ctx, int64(n))
}
