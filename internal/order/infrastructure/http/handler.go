package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmehra2102/qr-order-flow/internal/checkout"
	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	authhttp "github.com/dmehra2102/qr-order-flow/internal/identity/infrastructure/http"
	"github.com/dmehra2102/qr-order-flow/internal/order/application"
	"github.com/dmehra2102/qr-order-flow/internal/order/domain"
	"github.com/dmehra2102/qr-order-flow/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type OrderService interface {
	GetOrder(ctx context.Context, actor identity.Actor, orderID string) (domain.Order, error)
	MarkCompleted(ctx context.Context, actor identity.Actor, orderID string) (domain.Order, error)
	CancelOrder(ctx context.Context, actor identity.Actor, orderID string) (domain.Order, error)
	ListShopOrders(ctx context.Context, actor identity.Actor, shopID string, f application.Filter) ([]domain.Order, error)
}

type Checkouter interface {
	Checkout(ctx context.Context, actor identity.Actor) (domain.Order, error)
}

type Handler struct {
	log      *slog.Logger
	service  OrderService
	checkout Checkouter
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, service OrderService, checkout Checkouter) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		checkout: checkout,
		tracer:   otel.Tracer("order-http"),
	}
}

// ErrorMap is shared with the other handlers that surface order errors.
var ErrorMap = []httpx.Mapping{
	{Err: domain.ErrOrderNotFound, Status: http.StatusNotFound},
	{Err: domain.ErrEmptyCart, Status: http.StatusUnprocessableEntity},
	{Err: domain.ErrUnknownItem, Status: http.StatusUnprocessableEntity},
	{Err: domain.ErrAlreadyPaid, Status: http.StatusConflict},
	{Err: domain.ErrInvalidTransition, Status: http.StatusConflict},
	{Err: domain.ErrPaymentRequired, Status: http.StatusPaymentRequired},
	{Err: checkout.ErrCheckoutInFlight, Status: http.StatusConflict},
	{Err: application.ErrInvalidFilter, Status: http.StatusBadRequest},
}

type checkoutResp struct {
	OrderID       string               `json:"orderId"`
	TotalAmount   string               `json:"totalAmount"`
	Currency      string               `json:"currency"`
	Status        domain.Status        `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
}

// Mount registers the order routes on a router scoped to /orders.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/checkout", h.placeOrder)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/complete", h.complete)
	r.Post("/{orderID}/cancel", h.cancel)
}

// MountShop registers the queue route on a router scoped to /shops/{shopID}.
func (h *Handler) MountShop(r chi.Router) {
	r.Get("/orders", h.listShopOrders)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Checkout")
	defer span.End()

	actor := authhttp.ActorFrom(ctx)
	o, err := h.checkout.Checkout(ctx, actor)
	if err != nil {
		span.RecordError(err)
		httpx.WriteError(w, r, h.log, err, ErrorMap...)
		return
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, checkoutResp{
		OrderID:       o.ID,
		TotalAmount:   o.TotalAmount.StringFixed(2),
		Currency:      o.Currency,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrder(r.Context(), authhttp.ActorFrom(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.WriteError(w, r, h.log, err, ErrorMap...)
		return
	}
	render.JSON(w, r, o)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "MarkCompleted", h.service.MarkCompleted)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "CancelOrder", h.service.CancelOrder)
}

type transitionFunc func(ctx context.Context, actor identity.Actor, orderID string) (domain.Order, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, name string, fn transitionFunc) {
	ctx, span := h.tracer.Start(r.Context(), name)
	defer span.End()

	orderID := chi.URLParam(r, "orderID")
	span.SetAttributes(attribute.String("order.id", orderID))

	o, err := fn(ctx, authhttp.ActorFrom(ctx), orderID)
	if err != nil {
		span.RecordError(err)
		httpx.WriteError(w, r, h.log, err, ErrorMap...)
		return
	}
	render.JSON(w, r, o)
}

func (h *Handler) listShopOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := application.Filter{
		Status:        domain.Status(q.Get("status")),
		PaymentStatus: domain.PaymentStatus(q.Get("paymentStatus")),
	}
	orders, err := h.service.ListShopOrders(r.Context(), authhttp.ActorFrom(r.Context()), chi.URLParam(r, "shopID"), filter)
	if err != nil {
		httpx.WriteError(w, r, h.log, err, ErrorMap...)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	render.JSON(w, r, map[string]any{"orders": orders})
}
