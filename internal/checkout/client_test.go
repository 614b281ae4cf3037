package checkout_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/coursemart/internal/api"
	"github.com/xenking/coursemart/internal/checkout"
	"github.com/xenking/coursemart/internal/domain/coupon"
	"github.com/xenking/coursemart/internal/domain/order"
	"github.com/xenking/coursemart/internal/handler"
	"github.com/xenking/coursemart/internal/repository/memory"
)

func newAPI(t *testing.T, recs ...coupon.Record) *checkout.Client {
	t.Helper()

	coupons := memory.NewCouponStore(recs...)
	engine := coupon.NewEngine(coupons, nil)
	orders := order.NewService(engine, coupon.NewCommitter(coupons, nil), memory.NewOrderStore())
	h := handler.NewHandler(engine, orders, coupon.NewAdmin(coupons))

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.Mount(r, handler.NewSecurityHandler(memory.NewAPIKeyStore(), nil))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := checkout.NewClient(srv.URL+"/api/", checkout.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func percent(code string, value int64, stack bool, limit *int64) coupon.Record {
	return coupon.Record{
		Code:   code,
		Active: true,
		Terms: coupon.Terms{
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(value),
			ValidFrom:     time.Now().Add(-time.Hour),
			Stackable:     stack,
			UsageLimit:    limit,
		},
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := checkout.NewClient("localhost/api")
	require.Error(t, err)
}

func TestClient_SessionCompounding(t *testing.T) {
	c := newAPI(t, percent("TEN", 10, true, nil), percent("ALSOTEN", 10, true, nil), percent("SOLO", 30, false, nil))
	ctx := context.Background()
	s := checkout.NewSession(c, "go-101", decimal.RequireFromString("100.00"), "b1")

	_, err := s.Add(ctx, "ten")
	require.NoError(t, err)
	res, err := s.Add(ctx, "alsoten")
	require.NoError(t, err)

	require.Len(t, res.Accepted, 2)
	assert.True(t, decimal.RequireFromString("10.00").Equal(res.Accepted[0].Amount))
	assert.True(t, decimal.RequireFromString("9.00").Equal(res.Accepted[1].Amount))
	assert.True(t, decimal.RequireFromString("19.00").Equal(res.TotalDiscount))
	assert.True(t, decimal.RequireFromString("81.00").Equal(res.FinalAmount))

	res, err = s.Add(ctx, "SOLO")
	require.NoError(t, err)
	// A non-stackable coupon excludes every other code.
	assert.Equal(t, []string{"SOLO"}, res.AcceptedCodes())
	assert.Equal(t, []coupon.Rejection{
		{Code: "TEN", Reason: coupon.ReasonStackingConflict},
		{Code: "ALSOTEN", Reason: coupon.ReasonStackingConflict},
	}, res.Rejected)
	assert.True(t, decimal.RequireFromString("70.00").Equal(res.FinalAmount))
}

func TestClient_ValidateErrors(t *testing.T) {
	c := newAPI(t, percent("TEN", 10, true, nil))
	ctx := context.Background()

	_, err := c.Validate(ctx, coupon.OrderContext{CourseID: "go-101", Subtotal: decimal.NewFromInt(10), Codes: []string{"TEN", "NOPE"}})
	var unknown *coupon.UnknownCodesError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"NOPE"}, unknown.Codes)

	_, err = c.Validate(ctx, coupon.OrderContext{CourseID: "go-101", Subtotal: decimal.NewFromInt(-1), Codes: []string{"TEN"}})
	assert.ErrorIs(t, err, coupon.ErrInvalidOrderContext)
}

func TestClient_FinalizeConflict(t *testing.T) {
	one := int64(1)
	c := newAPI(t, percent("LASTSEAT", 50, false, &one))
	ctx := context.Background()
	oc := coupon.OrderContext{CourseID: "go-101", Subtotal: decimal.NewFromInt(100), BuyerID: "b1", Codes: []string{"LASTSEAT"}}

	placed := make([]*api.PlacedOrder, 2)
	for i := range placed {
		var err error
		placed[i], err = c.PlaceOrder(ctx, oc)
		require.NoError(t, err)
		require.Equal(t, []string{"LASTSEAT"}, placed[i].Order.CouponCodes)
	}

	errs := make([]error, len(placed))
	var wg sync.WaitGroup
	for i, p := range placed {
		wg.Go(func() {
			_, errs[i] = c.Finalize(ctx, p.Order.ID)
		})
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		var conflict *coupon.ConflictError
		switch {
		case err == nil:
			ok++
		case assert.ErrorAs(t, err, &conflict):
			assert.Equal(t, []string{"LASTSEAT"}, conflict.Codes)
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	_, err := c.Finalize(ctx, "missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestClient_UnexpectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c, err := checkout.NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Validate(context.Background(), coupon.OrderContext{CourseID: "go-101", Codes: []string{"TEN"}})
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Code)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Message)
}
