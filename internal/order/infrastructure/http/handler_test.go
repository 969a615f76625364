package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmehra2102/qr-order-flow/internal/checkout"
	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	authhttp "github.com/dmehra2102/qr-order-flow/internal/identity/infrastructure/http"
	"github.com/dmehra2102/qr-order-flow/internal/order/application"
	"github.com/dmehra2102/qr-order-flow/internal/order/domain"
	"github.com/dmehra2102/qr-order-flow/pkg/apperr"
	"github.com/dmehra2102/qr-order-flow/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceStub struct {
	orders   map[string]domain.Order
	getErr   error
	lastList application.Filter
}

func (s *serviceStub) GetOrder(_ context.Context, actor identity.Actor, id string) (domain.Order, error) {
	if s.getErr != nil {
		return domain.Order{}, s.getErr
	}
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *serviceStub) MarkCompleted(_ context.Context, actor identity.Actor, id string) (domain.Order, error) {
	if err := actor.Require(identity.RoleShop, identity.RoleAdmin); err != nil {
		return domain.Order{}, err
	}
	o := s.orders[id]
	if err := o.Complete(o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	s.orders[id] = o
	return o, nil
}

func (s *serviceStub) CancelOrder(_ context.Context, _ identity.Actor, id string) (domain.Order, error) {
	o := s.orders[id]
	if err := o.Cancel(o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	s.orders[id] = o
	return o, nil
}

func (s *serviceStub) ListShopOrders(_ context.Context, _ identity.Actor, shopID string, f application.Filter) ([]domain.Order, error) {
	s.lastList = f
	return nil, nil
}

type checkoutStub struct {
	err error
}

func (c checkoutStub) Checkout(context.Context, identity.Actor) (domain.Order, error) {
	if c.err != nil {
		return domain.Order{}, c.err
	}
	return domain.Order{
		ID:            "order-1",
		TotalAmount:   decimal.NewFromInt(200),
		Currency:      "INR",
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentUnpaid,
	}, nil
}

var (
	customer = identity.Actor{Role: identity.RoleCustomer, ID: "cust-1", ShopID: "shop-1", SlipID: "slip-1"}
	shop     = identity.Actor{Role: identity.RoleShop, ID: "owner", ShopID: "shop-1"}
)

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/orders", h.Mount)
	r.Route("/shops/{shopID}", h.MountShop)
	return r
}

func do(h *Handler, method, path string, actor identity.Actor) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(authhttp.WithActor(req.Context(), actor))
	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, req)
	return w
}

func pendingOrder() domain.Order {
	return domain.Order{ID: "order-1", ShopID: "shop-1", Status: domain.StatusPending, PaymentStatus: domain.PaymentUnpaid}
}

func TestPlaceOrder(t *testing.T) {
	h := NewHandler(logging.Discard(), &serviceStub{}, checkoutStub{})

	w := do(h, http.MethodPost, "/orders/checkout", customer)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "order-1", resp["orderId"])
	assert.Equal(t, "200.00", resp["totalAmount"])
	assert.Equal(t, "pending", resp["status"])
	assert.Equal(t, "unpaid", resp["paymentStatus"])
}

func TestPlaceOrder_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"empty cart", domain.ErrEmptyCart, http.StatusUnprocessableEntity},
		{"in flight", checkout.ErrCheckoutInFlight, http.StatusConflict},
		{"anonymous", identity.ErrUnauthenticated, http.StatusUnauthorized},
		{"network", apperr.Transient(context.DeadlineExceeded), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(logging.Discard(), &serviceStub{}, checkoutStub{err: tt.err})
			w := do(h, http.MethodPost, "/orders/checkout", customer)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestGetOrder_NotFoundVersusUnavailable(t *testing.T) {
	h := NewHandler(logging.Discard(), &serviceStub{orders: map[string]domain.Order{}}, checkoutStub{})
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/orders/missing", customer).Code)

	h = NewHandler(logging.Discard(), &serviceStub{getErr: apperr.Transient(context.DeadlineExceeded)}, checkoutStub{})
	w := do(h, http.MethodGet, "/orders/order-1", customer)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"retryable":true`)
}

func TestComplete(t *testing.T) {
	stub := &serviceStub{orders: map[string]domain.Order{"order-1": pendingOrder()}}
	h := NewHandler(logging.Discard(), stub, checkoutStub{})

	assert.Equal(t, http.StatusForbidden, do(h, http.MethodPost, "/orders/order-1/complete", customer).Code)
	assert.Equal(t, http.StatusPaymentRequired, do(h, http.MethodPost, "/orders/order-1/complete", shop).Code)

	paid := pendingOrder()
	paid.Status, paid.PaymentStatus = domain.StatusProcessing, domain.PaymentPaid
	stub.orders["order-1"] = paid

	w := do(h, http.MethodPost, "/orders/order-1/complete", shop)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)

	assert.Equal(t, http.StatusConflict, do(h, http.MethodPost, "/orders/order-1/cancel", shop).Code)
}

func TestListShopOrders_Filter(t *testing.T) {
	stub := &serviceStub{}
	h := NewHandler(logging.Discard(), stub, checkoutStub{})

	w := do(h, http.MethodGet, "/shops/shop-1/orders?status=processing&paymentStatus=paid", shop)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"orders":[]}`, w.Body.String())
	assert.Equal(t, domain.StatusProcessing, stub.lastList.Status)
	assert.Equal(t, domain.PaymentPaid, stub.lastList.PaymentStatus)
}
