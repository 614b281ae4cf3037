package handler_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coursemart/internal/api"
	"github.com/xenking/coursemart/internal/domain/auth"
	"github.com/xenking/coursemart/internal/domain/coupon"
	"github.com/xenking/coursemart/internal/domain/order"
	"github.com/xenking/coursemart/internal/handler"
	"github.com/xenking/coursemart/internal/repository/memory"
)

var pepper = []byte("test-pepper")

const (
	adminKey  = "admin-secret"
	readerKey = "reader-secret"
)

func seedCoupons() []coupon.Record {
	since := time.Now().Add(-24 * time.Hour)
	one := int64(1)
	goOnly, err := coupon.RestrictedTo("go-101")
	if err != nil {
		panic(err)
	}
	return []coupon.Record{
		{
			Code:   "SAVE20",
			Active: true,
			Terms: coupon.Terms{
				DiscountType:  coupon.DiscountPercentage,
				DiscountValue: decimal.NewFromInt(20),
				ValidFrom:     since,
				Stackable:     true,
			},
		},
		{
			Code:   "FIVEOFF",
			Active: true,
			Terms: coupon.Terms{
				DiscountType:  coupon.DiscountFixed,
				DiscountValue: decimal.NewFromInt(5),
				ValidFrom:     since,
				Stackable:     true,
			},
		},
		{
			Code:   "LASTSEAT",
			Active: true,
			Terms: coupon.Terms{
				DiscountType:  coupon.DiscountFixed,
				DiscountValue: decimal.NewFromInt(10),
				ValidFrom:     since,
				UsageLimit:    &one,
				Courses:       goOnly,
			},
		},
		{
			Code:   "RETIRED",
			Active: false,
			Terms: coupon.Terms{
				DiscountType:  coupon.DiscountPercentage,
				DiscountValue: decimal.NewFromInt(90),
				ValidFrom:     since,
			},
		},
	}
}

func newServer(t *testing.T) http.Handler {
	t.Helper()

	coupons := memory.NewCouponStore(seedCoupons()...)
	engine := coupon.NewEngine(coupons, nil)
	committer := coupon.NewCommitter(coupons, nil)
	orders := order.NewService(engine, committer, memory.NewOrderStore())
	keys := memory.NewAPIKeyStore(
		auth.APIKeyInfo{ID: "k1", KeyHash: auth.HashKey(adminKey, pepper), Name: "ops", Scopes: []string{auth.ScopeCouponsAdmin}},
		auth.APIKeyInfo{ID: "k2", KeyHash: auth.HashKey(readerKey, pepper), Name: "reader"},
	)

	h := handler.NewHandler(engine, orders, coupon.NewAdmin(coupons))
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.Mount(r, handler.NewSecurityHandler(keys, pepper))
	})
	return r
}

func do(t *testing.T, srv http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequestWithContext(context.Background(), method, path, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v api.Decoder) {
	t.Helper()
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.NoError(t, api.Unmarshal(w.Body.Bytes(), v))
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, codes ...string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	var e api.Error
	decode(t, w, &e)
	assert.Equal(t, status, e.Code)
	assert.NotEmpty(t, e.Message)
	if len(codes) > 0 {
		assert.Equal(t, codes, e.Codes)
	}
}

func TestValidateCoupons(t *testing.T) {
	srv := newServer(t)

	w := do(t, srv, http.MethodPost, "/api/coupons/validate",
		`{"codes":["save20","FIVEOFF","RETIRED"],"courseId":"go-101","subtotal":"100.00","buyerId":"b1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res api.DiscountResult
	decode(t, w, &res)
	require.Len(t, res.Accepted, 2)
	assert.Equal(t, "SAVE20", res.Accepted[0].Code)
	assert.True(t, decimal.NewFromInt(20).Equal(res.Accepted[0].Amount))
	assert.Equal(t, "FIVEOFF", res.Accepted[1].Code)
	assert.True(t, decimal.NewFromInt(25).Equal(res.TotalDiscount))
	assert.True(t, decimal.NewFromInt(75).Equal(res.FinalAmount))
	assert.Equal(t, []api.RejectedCoupon{{Code: "RETIRED", Reason: "INACTIVE"}}, res.Rejected)
}

func TestValidateCoupons_Errors(t *testing.T) {
	srv := newServer(t)

	for _, tt := range []struct {
		name   string
		body   string
		status int
		codes  []string
	}{
		{name: "Malformed", body: `{"codes":`, status: http.StatusBadRequest},
		{name: "Empty", body: ``, status: http.StatusBadRequest},
		{name: "NoCodes", body: `{"codes":[],"courseId":"go-101","subtotal":10}`, status: http.StatusBadRequest},
		{name: "NegativeSubtotal", body: `{"codes":["SAVE20"],"courseId":"go-101","subtotal":-1}`, status: http.StatusBadRequest},
		{name: "SubCentSubtotal", body: `{"codes":["SAVE20"],"courseId":"go-101","subtotal":0.005}`, status: http.StatusBadRequest},
		{
			name:   "UnknownCodes",
			body:   `{"codes":["SAVE20","NOPE","GHOST"],"courseId":"go-101","subtotal":10}`,
			status: http.StatusUnprocessableEntity,
			codes:  []string{"NOPE", "GHOST"},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/coupons/validate", tt.body)
			assertError(t, w, tt.status, tt.codes...)
		})
	}
}

func placeOrder(t *testing.T, srv http.Handler, body string) api.PlacedOrder {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var placed api.PlacedOrder
	decode(t, w, &placed)
	return placed
}

func TestOrderLifecycle(t *testing.T) {
	srv := newServer(t)

	placed := placeOrder(t, srv, `{"codes":["LASTSEAT"],"courseId":"go-101","subtotal":49.99,"buyerId":"b1"}`)
	assert.Equal(t, "PENDING", placed.Order.Status)
	assert.Equal(t, []string{"LASTSEAT"}, placed.Order.CouponCodes)
	assert.True(t, decimal.RequireFromString("39.99").Equal(placed.Order.Total))

	w := do(t, srv, http.MethodGet, "/api/orders/"+placed.Order.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodPost, "/api/orders/"+placed.Order.ID+"/finalize", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var finalized api.Order
	decode(t, w, &finalized)
	assert.Equal(t, "FINALIZED", finalized.Status)
	require.NotNil(t, finalized.FinalizedAt)

	// Finalizing again is a no-op.
	w = do(t, srv, http.MethodPost, "/api/orders/"+placed.Order.ID+"/finalize", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFinalizeOrder_Conflict(t *testing.T) {
	srv := newServer(t)
	body := `{"codes":["LASTSEAT"],"courseId":"go-101","subtotal":100}`

	first := placeOrder(t, srv, body)
	second := placeOrder(t, srv, body)
	require.Equal(t, []string{"LASTSEAT"}, second.Order.CouponCodes, "validation does not reserve quota")

	w := do(t, srv, http.MethodPost, "/api/orders/"+first.Order.ID+"/finalize", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodPost, "/api/orders/"+second.Order.ID+"/finalize", "")
	assertError(t, w, http.StatusConflict, "LASTSEAT")

	w = do(t, srv, http.MethodGet, "/api/orders/"+second.Order.ID, "")
	var o api.Order
	decode(t, w, &o)
	assert.Equal(t, "PENDING", o.Status)
}

func TestPlaceOrder_WithoutCodes(t *testing.T) {
	srv := newServer(t)

	placed := placeOrder(t, srv, `{"courseId":"go-101","subtotal":10}`)
	assert.Empty(t, placed.Order.CouponCodes)
	assert.True(t, decimal.NewFromInt(10).Equal(placed.Order.Total))
}

func TestOrder_NotFound(t *testing.T) {
	srv := newServer(t)

	assertError(t, do(t, srv, http.MethodGet, "/api/orders/missing", ""), http.StatusNotFound)
	assertError(t, do(t, srv, http.MethodPost, "/api/orders/missing/finalize", ""), http.StatusNotFound)
}

func TestAdmin_Auth(t *testing.T) {
	srv := newServer(t)

	assertError(t, do(t, srv, http.MethodGet, "/api/admin/coupons", ""), http.StatusUnauthorized)
	assertError(t, do(t, srv, http.MethodGet, "/api/admin/coupons", "", handler.APIKeyHeader, "wrong"), http.StatusUnauthorized)
	assertError(t, do(t, srv, http.MethodGet, "/api/admin/coupons", "", handler.APIKeyHeader, readerKey), http.StatusForbidden)

	w := do(t, srv, http.MethodGet, "/api/admin/coupons", "", handler.APIKeyHeader, adminKey)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdmin_CouponCRUD(t *testing.T) {
	srv := newServer(t)
	key := []string{handler.APIKeyHeader, adminKey}

	w := do(t, srv, http.MethodPost, "/api/admin/coupons",
		`{"code":"spring25","discountType":"PERCENTAGE","discountValue":25,"maxDiscount":"30.00","usageLimit":2,`+
			`"appliesToAllCourses":false,"allowedCourseIds":"go-101, rust-201","description":"Spring sale"}`, key...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created api.Coupon
	decode(t, w, &created)
	assert.Equal(t, "SPRING25", created.Code)
	assert.True(t, created.IsActive)
	assert.Equal(t, []string{"go-101", "rust-201"}, created.AllowedCourseIDs)
	assert.False(t, created.ValidFrom.IsZero())

	assertError(t, do(t, srv, http.MethodPost, "/api/admin/coupons",
		`{"code":"SPRING25","discountType":"FIXED_AMOUNT","discountValue":1}`, key...), http.StatusConflict)

	w = do(t, srv, http.MethodGet, "/api/admin/coupons/spring25", "", key...)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodPatch, "/api/admin/coupons/SPRING25/active", `{"isActive":false}`, key...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var toggled api.Coupon
	decode(t, w, &toggled)
	assert.False(t, toggled.IsActive)

	w = do(t, srv, http.MethodPut, "/api/admin/coupons/SPRING25",
		`{"discountType":"FIXED_AMOUNT","discountValue":"7.50","validFrom":"2026-01-01T00:00:00Z"}`, key...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated api.Coupon
	decode(t, w, &updated)
	assert.Equal(t, "FIXED_AMOUNT", updated.DiscountType)
	assert.True(t, updated.AppliesToAllCourses)

	w = do(t, srv, http.MethodGet, "/api/admin/coupons", "", key...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"SPRING25"`)
}

func TestAdmin_Errors(t *testing.T) {
	srv := newServer(t)
	key := []string{handler.APIKeyHeader, adminKey}

	// Redeem the only LASTSEAT use so its limit cannot drop to zero.
	placed := placeOrder(t, srv, `{"codes":["LASTSEAT"],"courseId":"go-101","subtotal":20}`)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/orders/"+placed.Order.ID+"/finalize", "").Code)

	for _, tt := range []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{
			name:   "PercentOver100",
			method: http.MethodPost,
			path:   "/api/admin/coupons",
			body:   `{"code":"HUGE","discountType":"PERCENTAGE","discountValue":101}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "SubCentAmount",
			method: http.MethodPost,
			path:   "/api/admin/coupons",
			body:   `{"code":"ODDCENT","discountType":"FIXED_AMOUNT","discountValue":10.555}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "BadCode",
			method: http.MethodPost,
			path:   "/api/admin/coupons",
			body:   `{"code":"x","discountType":"FIXED_AMOUNT","discountValue":1}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "EmptyRestriction",
			method: http.MethodPost,
			path:   "/api/admin/coupons",
			body:   `{"code":"NOBODY","discountType":"FIXED_AMOUNT","discountValue":1,"appliesToAllCourses":false}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "Missing",
			method: http.MethodGet,
			path:   "/api/admin/coupons/NOPE",
			status: http.StatusNotFound,
		},
		{
			name:   "LimitBelowUsed",
			method: http.MethodPut,
			path:   "/api/admin/coupons/LASTSEAT",
			body:   `{"discountType":"FIXED_AMOUNT","discountValue":10,"usageLimit":0,"validFrom":"2026-01-01T00:00:00Z"}`,
			status: http.StatusConflict,
		},
		{
			name:   "SetActiveWithoutFlag",
			method: http.MethodPatch,
			path:   "/api/admin/coupons/SAVE20/active",
			body:   `{}`,
			status: http.StatusBadRequest,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, do(t, srv, tt.method, tt.path, tt.body, key...), tt.status)
		})
	}
}
