package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/coursemart/internal/api"
	"github.com/xenking/coursemart/internal/domain/coupon"
)

// ValidateCoupons evaluates candidate codes against an order without
// redeeming anything.
func (h *Handler) ValidateCoupons(w http.ResponseWriter, r *http.Request) {
	var req api.ValidateRequest
	if err := readBody(w, r, &req); err != nil {
		mapCouponError(w, r, err)
		return
	}

	res, err := h.coupons.Validate(r.Context(), req.OrderContext())
	if err != nil {
		mapCouponError(w, r, err)
		return
	}
	out := api.NewDiscountResult(res)
	writeJSON(w, http.StatusOK, &out)
}

// mapCouponError converts validation errors to responses.
func mapCouponError(w http.ResponseWriter, r *http.Request, err error) {
	var unknown *coupon.UnknownCodesError
	switch {
	case isMalformed(err), errors.Is(err, coupon.ErrInvalidOrderContext):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unknown):
		writeError(w, http.StatusUnprocessableEntity, "unknown coupon codes", unknown.Codes...)
	default:
		writeInternal(w, r, err)
	}
}
