package api

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/coursemart/internal/domain/coupon"
)

// encodeMoney writes v as a JSON number with coupon.MinorUnits decimals.
func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.StringFixed(coupon.MinorUnits)))
}

// decodeDecimal accepts a JSON number or a string holding a decimal.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(strings.TrimSpace(s))
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Decimal{}, errors.Errorf("expected decimal, got %s", d.Next())
	}
}

func decodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func encodeOptTime(e *jx.Encoder, t *time.Time) {
	if t == nil {
		e.Null()
		return
	}
	encodeTime(e, *t)
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, s)
}

func decodeOptTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	t, err := decodeTime(d)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeOptInt64(d *jx.Decoder) (*int64, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	n, err := d.Int64()
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func encodeStrings(e *jx.Encoder, ss []string) {
	e.ArrStart()
	for _, s := range ss {
		e.Str(s)
	}
	e.ArrEnd()
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// decodeCourseIDs accepts an array of ids or a comma-joined string.
func decodeCourseIDs(d *jx.Decoder) ([]string, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		var ids []string
		for _, id := range strings.Split(s, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		return ids, nil
	default:
		return decodeStrings(d)
	}
}

func wrapField(err error, key []byte) error {
	if err != nil {
		return errors.Wrapf(err, "decode field %q", key)
	}
	return nil
}

// Encode writes r as JSON.
func (r *ValidateRequest) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("codes")
	encodeStrings(e, r.Codes)
	e.FieldStart("courseId")
	e.Str(r.CourseID)
	e.FieldStart("subtotal")
	encodeMoney(e, r.Subtotal)
	if r.BuyerID != "" {
		e.FieldStart("buyerId")
		e.Str(r.BuyerID)
	}
	e.ObjEnd()
}

// Decode reads r from JSON. courseId and subtotal are required.
func (r *ValidateRequest) Decode(d *jx.Decoder) error {
	var hasCourse, hasSubtotal bool
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "codes":
			r.Codes, err = decodeStrings(d)
		case "courseId":
			hasCourse = true
			r.CourseID, err = d.Str()
		case "subtotal":
			hasSubtotal = true
			r.Subtotal, err = decodeDecimal(d)
		case "buyerId":
			r.BuyerID, err = d.Str()
		default:
			return d.Skip()
		}
		return wrapField(err, key)
	})
	if err != nil {
		return err
	}
	if !hasCourse {
		return errors.New("courseId is required")
	}
	if !hasSubtotal {
		return errors.New("subtotal is required")
	}
	return nil
}

// Encode writes r as JSON.
func (r *DiscountResult) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("subtotal")
	encodeMoney(e, r.Subtotal)
	e.FieldStart("accepted")
	e.ArrStart()
	for _, a := range r.Accepted {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(a.Code)
		e.FieldStart("amount")
		encodeMoney(e, a.Amount)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("rejected")
	e.ArrStart()
	for _, rj := range r.Rejected {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(rj.Code)
		e.FieldStart("reason")
		e.Str(rj.Reason)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("totalDiscount")
	encodeMoney(e, r.TotalDiscount)
	e.FieldStart("finalAmount")
	encodeMoney(e, r.FinalAmount)
	e.ObjEnd()
}

// Decode reads r from JSON.
func (r *DiscountResult) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "subtotal":
			r.Subtotal, err = decodeDecimal(d)
		case "accepted":
			r.Accepted = []AppliedCoupon{}
			err = d.Arr(func(d *jx.Decoder) error {
				var a AppliedCoupon
				if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					var err error
					switch string(key) {
					case "code":
						a.Code, err = d.Str()
					case "amount":
						a.Amount, err = decodeDecimal(d)
					default:
						return d.Skip()
					}
					return wrapField(err, key)
				}); err != nil {
					return err
				}
				r.Accepted = append(r.Accepted, a)
				return nil
			})
		case "rejected":
			r.Rejected = []RejectedCoupon{}
			err = d.Arr(func(d *jx.Decoder) error {
				var rj RejectedCoupon
				if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					var err error
					switch string(key) {
					case "code":
						rj.Code, err = d.Str()
					case "reason":
						rj.Reason, err = d.Str()
					default:
						return d.Skip()
					}
					return wrapField(err, key)
				}); err != nil {
					return err
				}
				r.Rejected = append(r.Rejected, rj)
				return nil
			})
		case "totalDiscount":
			r.TotalDiscount, err = decodeDecimal(d)
		case "finalAmount":
			r.FinalAmount, err = decodeDecimal(d)
		default:
			return d.Skip()
		}
		return wrapField(err, key)
	})
}

// Encode writes o as JSON.
func (o *Order) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("buyerId")
	e.Str(o.BuyerID)
	e.FieldStart("courseId")
	e.Str(o.CourseID)
	e.FieldStart("subtotal")
	encodeMoney(e, o.Subtotal)
	e.FieldStart("discount")
	encodeMoney(e, o.Discount)
	e.FieldStart("total")
	encodeMoney(e, o.Total)
	e.FieldStart("couponCodes")
	encodeStrings(e, o.CouponCodes)
	e.FieldStart("status")
	e.Str(o.Status)
	e.FieldStart("createdAt")
	encodeTime(e, o.CreatedAt)
	e.FieldStart("finalizedAt")
	encodeOptTime(e, o.FinalizedAt)
	e.ObjEnd()
}

// Decode reads o from JSON.
func (o *Order) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			o.ID, err = d.Str()
		case "buyerId":
			o.BuyerID, err = d.Str()
		case "courseId":
			o.CourseID, err = d.Str()
		case "subtotal":
			o.Subtotal, err = decodeDecimal(d)
		case "discount":
			o.Discount, err = decodeDecimal(d)
		case "total":
			o.Total, err = decodeDecimal(d)
		case "couponCodes":
			o.CouponCodes, err = decodeStrings(d)
		case "status":
			o.Status, err = d.Str()
		case "createdAt":
			o.CreatedAt, err = decodeTime(d)
		case "finalizedAt":
			o.FinalizedAt, err = decodeOptTime(d)
		default:
			return d.Skip()
		}
		return wrapField(err, key)
	})
}

// Encode writes p as JSON.
func (p *PlacedOrder) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("order")
	p.Order.Encode(e)
	e.FieldStart("discount")
	p.Discount.Encode(e)
	e.ObjEnd()
}

// Decode reads p from JSON.
func (p *PlacedOrder) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "order":
			return wrapField(p.Order.Decode(d), key)
		case "discount":
			return wrapField(p.Discount.Decode(d), key)
		default:
			return d.Skip()
		}
	})
}

func (t *CouponTerms) encodeFields(e *jx.Encoder) {
	e.FieldStart("discountType")
	e.Str(t.DiscountType)
	e.FieldStart("discountValue")
	encodeMoney(e, t.DiscountValue)
	e.FieldStart("minAmount")
	encodeMoney(e, t.MinAmount)
	e.FieldStart("maxDiscount")
	if t.MaxDiscount.Valid {
		encodeMoney(e, t.MaxDiscount.Decimal)
	} else {
		e.Null()
	}
	e.FieldStart("usageLimit")
	if t.UsageLimit != nil {
		e.Int64(*t.UsageLimit)
	} else {
		e.Null()
	}
	e.FieldStart("validFrom")
	encodeTime(e, t.ValidFrom)
	e.FieldStart("validUntil")
	encodeOptTime(e, t.ValidUntil)
	e.FieldStart("appliesToAllCourses")
	e.Bool(t.AppliesToAllCourses)
	e.FieldStart("allowedCourseIds")
	encodeStrings(e, t.AllowedCourseIDs)
	e.FieldStart("canStackWithOtherCoupons")
	e.Bool(t.CanStack)
	e.FieldStart("description")
	e.Str(t.Description)
}

// decodeField reads one CouponTerms field. It reports false for keys that
// do not belong to the terms.
func (t *CouponTerms) decodeField(d *jx.Decoder, key []byte) (bool, error) {
	var err error
	switch string(key) {
	case "discountType":
		t.DiscountType, err = d.Str()
	case "discountValue":
		t.DiscountValue, err = decodeDecimal(d)
	case "minAmount":
		if d.Next() == jx.Null {
			t.MinAmount = decimal.Zero
			err = d.Null()
			break
		}
		t.MinAmount, err = decodeDecimal(d)
	case "maxDiscount":
		t.MaxDiscount, err = decodeNullDecimal(d)
	case "usageLimit":
		t.UsageLimit, err = decodeOptInt64(d)
	case "validFrom":
		t.ValidFrom, err = decodeTime(d)
	case "validUntil":
		t.ValidUntil, err = decodeOptTime(d)
	case "appliesToAllCourses":
		t.AppliesToAllCourses, err = d.Bool()
	case "allowedCourseIds":
		t.AllowedCourseIDs, err = decodeCourseIDs(d)
	case "canStackWithOtherCoupons":
		t.CanStack, err = d.Bool()
	case "description":
		t.Description, err = d.Str()
	default:
		return false, nil
	}
	return true, wrapField(err, key)
}

// Encode writes the terms as JSON.
func (t *CouponTerms) Encode(e *jx.Encoder) {
	e.ObjStart()
	t.encodeFields(e)
	e.ObjEnd()
}

// Decode reads the terms from JSON. appliesToAllCourses defaults to true.
func (t *CouponTerms) Decode(d *jx.Decoder) error {
	t.AppliesToAllCourses = true
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		ok, err := t.decodeField(d, key)
		if !ok {
			return d.Skip()
		}
		return err
	})
}

// Encode writes r as JSON.
func (r *CreateCouponRequest) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(r.Code)
	e.FieldStart("isActive")
	e.Bool(r.IsActive)
	r.encodeFields(e)
	e.ObjEnd()
}

// Decode reads r from JSON. isActive and appliesToAllCourses default to
// true.
func (r *CreateCouponRequest) Decode(d *jx.Decoder) error {
	r.IsActive = true
	r.AppliesToAllCourses = true
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			r.Code, err = d.Str()
		case "isActive":
			r.IsActive, err = d.Bool()
		default:
			ok, err := r.decodeField(d, key)
			if !ok {
				return d.Skip()
			}
			return err
		}
		return wrapField(err, key)
	})
}

// Encode writes r as JSON.
func (r *SetActiveRequest) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("isActive")
	e.Bool(r.IsActive)
	e.ObjEnd()
}

// Decode reads r from JSON. isActive is required.
func (r *SetActiveRequest) Decode(d *jx.Decoder) error {
	var seen bool
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "isActive" {
			return d.Skip()
		}
		seen = true
		v, err := d.Bool()
		r.IsActive = v
		return wrapField(err, key)
	})
	if err != nil {
		return err
	}
	if !seen {
		return errors.New("isActive is required")
	}
	return nil
}

// Encode writes c as JSON.
func (c *Coupon) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("isActive")
	e.Bool(c.IsActive)
	e.FieldStart("usedCount")
	e.Int64(c.UsedCount)
	c.encodeFields(e)
	e.FieldStart("createdAt")
	encodeTime(e, c.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, c.UpdatedAt)
	e.ObjEnd()
}

// Decode reads c from JSON.
func (c *Coupon) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			c.Code, err = d.Str()
		case "isActive":
			c.IsActive, err = d.Bool()
		case "usedCount":
			c.UsedCount, err = d.Int64()
		case "createdAt":
			c.CreatedAt, err = decodeTime(d)
		case "updatedAt":
			c.UpdatedAt, err = decodeTime(d)
		default:
			ok, err := c.decodeField(d, key)
			if !ok {
				return d.Skip()
			}
			return err
		}
		return wrapField(err, key)
	})
}

// Encode writes e as JSON.
func (r *Error) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(r.Code)
	e.FieldStart("message")
	e.Str(r.Message)
	if len(r.Codes) > 0 {
		e.FieldStart("codes")
		encodeStrings(e, r.Codes)
	}
	e.ObjEnd()
}

// Decode reads r from JSON.
func (r *Error) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			r.Code, err = d.Int()
		case "message":
			r.Message, err = d.Str()
		case "codes":
			r.Codes, err = decodeStrings(d)
		default:
			return d.Skip()
		}
		return wrapField(err, key)
	})
}

// Encoder is implemented by every wire type.
type Encoder interface {
	Encode(e *jx.Encoder)
}

// Decoder is implemented by every wire type.
type Decoder interface {
	Decode(d *jx.Decoder) error
}

// Marshal encodes v.
func Marshal(v Encoder) []byte {
	var e jx.Encoder
	v.Encode(&e)
	return e.Bytes()
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v Decoder) error {
	return v.Decode(jx.DecodeBytes(data))
}
