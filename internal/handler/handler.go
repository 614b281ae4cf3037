// Package handler exposes the coupon engine over HTTP.
package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/coursemart/internal/api"
	"github.com/xenking/coursemart/internal/domain/auth"
	"github.com/xenking/coursemart/internal/domain/coupon"
	"github.com/xenking/coursemart/internal/domain/order"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the public checkout API and coupon administration.
type Handler struct {
	coupons coupon.Validator
	orders  *order.Service
	admin   *coupon.Admin
}

// NewHandler creates a Handler with the required domain dependencies.
func NewHandler(coupons coupon.Validator, orders *order.Service, admin *coupon.Admin) *Handler {
	return &Handler{
		coupons: coupons,
		orders:  orders,
		admin:   admin,
	}
}

// Mount registers API routes on r. Admin routes require an API key with the
// coupons:admin scope.
func (h *Handler) Mount(r chi.Router, security *SecurityHandler) {
	r.Post("/coupons/validate", h.ValidateCoupons)

	r.Post("/orders", h.PlaceOrder)
	r.Get("/orders/{id}", h.GetOrder)
	r.Post("/orders/{id}/finalize", h.FinalizeOrder)

	r.Route("/admin/coupons", func(r chi.Router) {
		r.Use(security.Require(auth.ScopeCouponsAdmin))
		r.Post("/", h.CreateCoupon)
		r.Get("/", h.ListCoupons)
		r.Get("/{code}", h.GetCoupon)
		r.Put("/{code}", h.UpdateCoupon)
		r.Patch("/{code}/active", h.SetCouponActive)
	})
}

// malformedError marks request bodies that cannot be decoded.
type malformedError struct {
	reason string
}

func (e *malformedError) Error() string {
	return "malformed request body: " + e.reason
}

func isMalformed(err error) bool {
	var m *malformedError
	return errors.As(err, &m)
}

// readBody decodes the request body into v.
func readBody(w http.ResponseWriter, r *http.Request, v api.Decoder) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &malformedError{reason: err.Error()}
	}
	if len(data) == 0 {
		return &malformedError{reason: "empty body"}
	}
	if err := api.Unmarshal(data, v); err != nil {
		return &malformedError{reason: err.Error()}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v api.Encoder) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	v.Encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string, codes ...string) {
	writeJSON(w, status, &api.Error{Code: status, Message: message, Codes: codes})
}

// writeInternal logs err and hides it from the client.
func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// couponList encodes a list of coupons as a JSON array.
type couponList []api.Coupon

func (l couponList) Encode(e *jx.Encoder) {
	e.ArrStart()
	for i := range l {
		l[i].Encode(e)
	}
	e.ArrEnd()
}
