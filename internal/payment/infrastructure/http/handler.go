package http

import (
	"context"
	"log/slog"
	"net/http"

	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	authhttp "github.com/dmehra2102/qr-order-flow/internal/identity/infrastructure/http"
	order "github.com/dmehra2102/qr-order-flow/internal/order/domain"
	orderhttp "github.com/dmehra2102/qr-order-flow/internal/order/infrastructure/http"
	"github.com/dmehra2102/qr-order-flow/internal/payment/domain"
	"github.com/dmehra2102/qr-order-flow/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PaymentService interface {
	InitiatePayment(ctx context.Context, actor identity.Actor, orderID string) (domain.Session, error)
	Reconcile(ctx context.Context, actor identity.Actor, cb domain.Callback) (order.Order, error)
}

type Handler struct {
	log     *slog.Logger
	service PaymentService
	keyID   string
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service PaymentService, keyID string) *Handler {
	return &Handler{log: log, service: service, keyID: keyID, tracer: otel.Tracer("payment-http")}
}

var errorMap = append([]httpx.Mapping{
	{Err: domain.ErrPaymentInFlight, Status: http.StatusConflict},
	{Err: domain.ErrSessionNotFound, Status: http.StatusNotFound},
	{Err: domain.ErrInvalidSignature, Status: http.StatusBadRequest},
	{Err: domain.ErrPaymentFailed, Status: http.StatusUnprocessableEntity},
	{Err: domain.ErrGatewayUnavailable, Status: http.StatusServiceUnavailable},
	{Err: domain.ErrNetwork, Status: http.StatusServiceUnavailable},
}, orderhttp.ErrorMap...)

type initiateResp struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"keyId"`
	Attempt        int    `json:"attempt"`
}

// MountOrders registers the initiation route on a router scoped to /orders.
func (h *Handler) MountOrders(r chi.Router) {
	r.Post("/{orderID}/payment", h.initiate)
}

// MountPayments registers the callback route on a router scoped to /payments.
func (h *Handler) MountPayments(r chi.Router) {
	r.Post("/callback", h.callback)
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "InitiatePayment")
	defer span.End()

	orderID := chi.URLParam(r, "orderID")
	span.SetAttributes(attribute.String("order.id", orderID))

	sess, err := h.service.InitiatePayment(ctx, authhttp.ActorFrom(ctx), orderID)
	if err != nil {
		span.RecordError(err)
		httpx.WriteError(w, r, h.log, err, errorMap...)
		return
	}
	render.JSON(w, r, initiateResp{
		GatewayOrderID: sess.GatewayOrderID,
		Amount:         sess.Amount,
		Currency:       sess.Currency,
		KeyID:          h.keyID,
		Attempt:        sess.Attempt,
	})
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ReconcilePayment")
	defer span.End()

	var cb domain.Callback
	if err := render.DecodeJSON(r.Body, &cb); err != nil || cb.GatewayOrderID == "" {
		httpx.BadRequest(w, r, "invalid callback body")
		return
	}
	span.SetAttributes(attribute.String("gateway.order_id", cb.GatewayOrderID), attribute.Bool("gateway.success", cb.Success))

	o, err := h.service.Reconcile(ctx, authhttp.ActorFrom(ctx), cb)
	if err != nil {
		span.RecordError(err)
		httpx.WriteError(w, r, h.log, err, errorMap...)
		return
	}
	render.JSON(w, r, o)
}
