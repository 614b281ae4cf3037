package cache

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/coursemart/internal/domain/coupon"
)

// encodeRecord writes a snapshot of rec. Decimals are stored as strings so
// they survive the round trip exactly.
func encodeRecord(rec *coupon.Record) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(rec.Code) })
		e.Field("discountType", func(e *jx.Encoder) { e.Str(string(rec.DiscountType)) })
		e.Field("discountValue", func(e *jx.Encoder) { e.Str(rec.DiscountValue.String()) })
		e.Field("minAmount", func(e *jx.Encoder) { e.Str(rec.MinAmount.String()) })
		e.Field("maxDiscount", func(e *jx.Encoder) {
			if !rec.MaxDiscount.Valid {
				e.Null()
				return
			}
			e.Str(rec.MaxDiscount.Decimal.String())
		})
		e.Field("usageLimit", func(e *jx.Encoder) {
			if rec.UsageLimit == nil {
				e.Null()
				return
			}
			e.Int64(*rec.UsageLimit)
		})
		e.Field("usedCount", func(e *jx.Encoder) { e.Int64(rec.UsedCount) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(rec.Active) })
		e.Field("validFrom", func(e *jx.Encoder) { encodeTime(e, rec.ValidFrom) })
		e.Field("validUntil", func(e *jx.Encoder) {
			if rec.ValidUntil == nil {
				e.Null()
				return
			}
			encodeTime(e, *rec.ValidUntil)
		})
		e.Field("courses", func(e *jx.Encoder) {
			if !rec.Courses.Restricted() {
				e.Null()
				return
			}
			e.Arr(func(e *jx.Encoder) {
				for _, id := range rec.Courses.CourseIDs() {
					e.Str(id)
				}
			})
		})
		e.Field("stackable", func(e *jx.Encoder) { e.Bool(rec.Stackable) })
		e.Field("description", func(e *jx.Encoder) { e.Str(rec.Description) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, rec.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, rec.UpdatedAt) })
	})
	return e.Bytes()
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func decodeRecord(data []byte) (*coupon.Record, error) {
	var (
		rec       coupon.Record
		courseIDs []string
		scoped    bool
	)
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			rec.Code, err = d.Str()
		case "discountType":
			var s string
			s, err = d.Str()
			rec.DiscountType = coupon.DiscountType(s)
		case "discountValue":
			rec.DiscountValue, err = decodeDecimal(d)
		case "minAmount":
			rec.MinAmount, err = decodeDecimal(d)
		case "maxDiscount":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var v decimal.Decimal
			v, err = decodeDecimal(d)
			rec.MaxDiscount = decimal.NewNullDecimal(v)
		case "usageLimit":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var n int64
			n, err = d.Int64()
			rec.UsageLimit = &n
		case "usedCount":
			rec.UsedCount, err = d.Int64()
		case "active":
			rec.Active, err = d.Bool()
		case "validFrom":
			rec.ValidFrom, err = decodeTime(d)
		case "validUntil":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var t time.Time
			t, err = decodeTime(d)
			rec.ValidUntil = &t
		case "courses":
			if d.Next() == jx.Null {
				return d.Null()
			}
			scoped = true
			err = d.Arr(func(d *jx.Decoder) error {
				id, err := d.Str()
				courseIDs = append(courseIDs, id)
				return err
			})
		case "stackable":
			rec.Stackable, err = d.Bool()
		case "description":
			rec.Description, err = d.Str()
		case "createdAt":
			rec.CreatedAt, err = decodeTime(d)
		case "updatedAt":
			rec.UpdatedAt, err = decodeTime(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode %q", key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if scoped {
		rec.Courses, err = coupon.RestrictedTo(courseIDs...)
		if err != nil {
			return nil, errors.Wrap(err, "decode courses")
		}
	}
	return &rec, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := d.Str()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(s)
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}
