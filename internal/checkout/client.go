package checkout

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/coursemart/internal/api"
	"github.com/xenking/coursemart/internal/domain/coupon"
	"github.com/xenking/coursemart/internal/domain/order"
)

// maxResponseBytes bounds decoded response bodies.
const maxResponseBytes = 4 << 20

var _ coupon.Validator = (*Client)(nil)

// Client calls the coupon API. It satisfies coupon.Validator so a Session
// can run against a remote engine.
type Client struct {
	base string
	http *http.Client
}

// ClientOption configures a Client.
type ClientOption func(c *Client)

// WithHTTPClient replaces the default instrumented http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a Client for the API served under baseURL, e.g.
// "https://shop.example/api".
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		base: strings.TrimSuffix(u.String(), "/"),
		http: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Validate calls POST /coupons/validate. Unknown codes yield
// *coupon.UnknownCodesError and rejected input an error wrapping
// coupon.ErrInvalidOrderContext.
func (c *Client) Validate(ctx context.Context, oc coupon.OrderContext) (*coupon.Result, error) {
	req := api.NewValidateRequest(oc)
	var out api.DiscountResult
	status, apiErr, err := c.do(ctx, http.MethodPost, "/coupons/validate", &req, &out)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return out.Result(), nil
	case http.StatusBadRequest:
		return nil, errors.Wrap(coupon.ErrInvalidOrderContext, apiErr.Message)
	case http.StatusUnprocessableEntity:
		return nil, &coupon.UnknownCodesError{Codes: apiErr.Codes}
	default:
		return nil, unexpected(status, apiErr)
	}
}

// PlaceOrder calls POST /orders.
func (c *Client) PlaceOrder(ctx context.Context, oc coupon.OrderContext) (*api.PlacedOrder, error) {
	req := api.NewValidateRequest(oc)
	var out api.PlacedOrder
	status, apiErr, err := c.do(ctx, http.MethodPost, "/orders", &req, &out)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusCreated:
		return &out, nil
	case http.StatusBadRequest:
		return nil, errors.Wrap(coupon.ErrInvalidOrderContext, apiErr.Message)
	case http.StatusUnprocessableEntity:
		return nil, &coupon.UnknownCodesError{Codes: apiErr.Codes}
	default:
		return nil, unexpected(status, apiErr)
	}
}

// Finalize calls POST /orders/{id}/finalize. A lost quota race yields
// *coupon.ConflictError; the caller should Refresh its session.
func (c *Client) Finalize(ctx context.Context, orderID string) (*api.Order, error) {
	var out api.Order
	status, apiErr, err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/finalize", nil, &out)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return &out, nil
	case http.StatusNotFound:
		return nil, order.ErrNotFound
	case http.StatusConflict:
		return nil, &coupon.ConflictError{Codes: apiErr.Codes}
	default:
		return nil, unexpected(status, apiErr)
	}
}

// do sends body and decodes a 2xx response into out, or any other response
// into the returned *api.Error.
func (c *Client) do(ctx context.Context, method, path string, body api.Encoder, out api.Decoder) (int, *api.Error, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(api.Marshal(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return 0, nil, errors.Wrap(err, "create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := api.Unmarshal(data, out); err != nil {
			return 0, nil, errors.Wrap(err, "decode response")
		}
		return resp.StatusCode, nil, nil
	}

	apiErr := &api.Error{Code: resp.StatusCode}
	if err := api.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	apiErr.Code = resp.StatusCode
	return resp.StatusCode, apiErr, nil
}

// unexpected reports a status the operation does not define.
func unexpected(status int, apiErr *api.Error) error {
	if apiErr == nil {
		return errors.Errorf("unexpected status %d", status)
	}
	return apiErr
}
