package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/coursemart/internal/api"
	"github.com/xenking/coursemart/internal/domain/coupon"
)

// CreateCoupon stores a new coupon.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req api.CreateCouponRequest
	if err := readBody(w, r, &req); err != nil {
		mapAdminError(w, r, err)
		return
	}
	terms, err := req.CouponTerms.Terms()
	if err != nil {
		mapAdminError(w, r, err)
		return
	}

	rec, err := h.admin.Create(r.Context(), req.Code, terms, req.IsActive)
	if err != nil {
		mapAdminError(w, r, err)
		return
	}
	out := api.NewCoupon(rec)
	writeJSON(w, http.StatusCreated, &out)
}

// ListCoupons returns every coupon.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	recs, err := h.admin.List(r.Context())
	if err != nil {
		mapAdminError(w, r, err)
		return
	}
	out := make(couponList, len(recs))
	for i := range recs {
		out[i] = api.NewCoupon(&recs[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCoupon returns a coupon by code.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	rec, err := h.admin.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		mapAdminError(w, r, err)
		return
	}
	out := api.NewCoupon(rec)
	writeJSON(w, http.StatusOK, &out)
}

// UpdateCoupon replaces the terms of a coupon.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req api.CouponTerms
	if err := readBody(w, r, &req); err != nil {
		mapAdminError(w, r, err)
		return
	}
	terms, err := req.Terms()
	if err != nil {
		mapAdminError(w, r, err)
		return
	}

	rec, err := h.admin.UpdateTerms(r.Context(), chi.URLParam(r, "code"), terms)
	if err != nil {
		mapAdminError(w, r, err)
		return
	}
	out := api.NewCoupon(rec)
	writeJSON(w, http.StatusOK, &out)
}

// SetCouponActive toggles a coupon on or off.
func (h *Handler) SetCouponActive(w http.ResponseWriter, r *http.Request) {
	var req api.SetActiveRequest
	if err := readBody(w, r, &req); err != nil {
		mapAdminError(w, r, err)
		return
	}

	rec, err := h.admin.SetActive(r.Context(), chi.URLParam(r, "code"), req.IsActive)
	if err != nil {
		mapAdminError(w, r, err)
		return
	}
	out := api.NewCoupon(rec)
	writeJSON(w, http.StatusOK, &out)
}

// mapAdminError converts coupon administration errors to responses.
func mapAdminError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *coupon.ValidationError
	switch {
	case isMalformed(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, coupon.ErrNotFound):
		writeError(w, http.StatusNotFound, "coupon not found")
	case errors.Is(err, coupon.ErrCodeExists), errors.Is(err, coupon.ErrUsageLimitBelowUsed):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeInternal(w, r, err)
	}
}
