package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/coursemart/internal/api"
	"github.com/xenking/coursemart/internal/domain/coupon"
	"github.com/xenking/coursemart/internal/domain/order"
)

// PlaceOrder evaluates the candidate codes and stores a pending order with
// the accepted ones.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req api.PlaceOrderRequest
	if err := readBody(w, r, &req); err != nil {
		mapOrderError(w, r, err)
		return
	}

	res, err := h.orders.Place(r.Context(), req.OrderContext())
	if err != nil {
		mapOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &api.PlacedOrder{
		Order:    api.NewOrder(res.Order),
		Discount: api.NewDiscountResult(res.Discount),
	})
}

// GetOrder returns an order by id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapOrderError(w, r, err)
		return
	}
	out := api.NewOrder(o)
	writeJSON(w, http.StatusOK, &out)
}

// FinalizeOrder redeems the coupons of an order. A lost quota race answers
// 409 with the conflicting codes and leaves the order pending.
func (h *Handler) FinalizeOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Finalize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapOrderError(w, r, err)
		return
	}
	out := api.NewOrder(o)
	writeJSON(w, http.StatusOK, &out)
}

// mapOrderError converts order errors to responses.
func mapOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unknown  *coupon.UnknownCodesError
		conflict *coupon.ConflictError
	)
	switch {
	case isMalformed(err), errors.Is(err, coupon.ErrInvalidOrderContext):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.As(err, &unknown):
		writeError(w, http.StatusUnprocessableEntity, "unknown coupon codes", unknown.Codes...)
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "coupon usage limit reached, re-validate the order", conflict.Codes...)
	default:
		writeInternal(w, r, err)
	}
}
