package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	authhttp "github.com/dmehra2102/qr-order-flow/internal/identity/infrastructure/http"
	"github.com/dmehra2102/qr-order-flow/internal/notifier/application"
	orderapp "github.com/dmehra2102/qr-order-flow/internal/order/application"
	order "github.com/dmehra2102/qr-order-flow/internal/order/domain"
	orderhttp "github.com/dmehra2102/qr-order-flow/internal/order/infrastructure/http"
	"github.com/dmehra2102/qr-order-flow/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OrderService interface {
	GetOrder(ctx context.Context, actor identity.Actor, orderID string) (order.Order, error)
	ListShopOrders(ctx context.Context, actor identity.Actor, shopID string, f orderapp.Filter) ([]order.Order, error)
}

type Options struct {
	FallbackPoll time.Duration
	Heartbeat    time.Duration
	QueueRefresh time.Duration
	// ShopBuffer bounds the per-stream backlog of shop events.
	ShopBuffer int
}

// Handler serves order and shop status as server-sent events.
type Handler struct {
	log    *slog.Logger
	hub    *application.Hub
	orders OrderService
	opts   Options
}

func NewHandler(log *slog.Logger, hub *application.Hub, orders OrderService, opts Options) *Handler {
	if opts.FallbackPoll <= 0 {
		opts.FallbackPoll = 15 * time.Second
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 20 * time.Second
	}
	if opts.QueueRefresh <= 0 {
		opts.QueueRefresh = 30 * time.Second
	}
	if opts.ShopBuffer <= 0 {
		opts.ShopBuffer = 32
	}
	return &Handler{log: log, hub: hub, orders: orders, opts: opts}
}

// MountOrders registers GET /{orderID}/events on a router scoped to /orders.
func (h *Handler) MountOrders(r chi.Router) {
	r.Get("/{orderID}/events", h.orderEvents)
}

// MountShop registers GET /events on a router scoped to /shops/{shopID}.
func (h *Handler) MountShop(r chi.Router) {
	r.Get("/events", h.shopEvents)
}

func (h *Handler) orderEvents(w http.ResponseWriter, r *http.Request) {
	actor := authhttp.ActorFrom(r.Context())
	orderID := chi.URLParam(r, "orderID")

	// authorizes the caller before the stream opens
	if _, err := h.orders.GetOrder(r.Context(), actor, orderID); err != nil {
		httpx.WriteError(w, r, h.log, err, orderhttp.ErrorMap...)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	key := subscriberKey(r)
	tracker := application.NewTracker(h.log, h.hub, h.orders, actor, orderID, key, h.opts.FallbackPoll)
	go func() { _ = tracker.Run(ctx) }()

	stream := openStream(w)
	heartbeat := time.NewTicker(h.opts.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-tracker.Updates():
			if err := stream.event("order", snap.Token, snap); err != nil {
				return
			}
			if snap.Order.Status.Terminal() {
				h.log.Debug("order stream finished", "order_id", orderID, "status", snap.Order.Status)
				return
			}
		case <-heartbeat.C:
			if err := stream.ping(); err != nil {
				return
			}
		}
	}
}

type queueSnapshot struct {
	Orders []order.Order `json:"orders"`
}

func (h *Handler) shopEvents(w http.ResponseWriter, r *http.Request) {
	actor := authhttp.ActorFrom(r.Context())
	shopID := chi.URLParam(r, "shopID")

	queue, err := h.orders.ListShopOrders(r.Context(), actor, shopID, orderapp.Filter{})
	if err != nil {
		httpx.WriteError(w, r, h.log, err, orderhttp.ErrorMap...)
		return
	}

	events := make(chan application.Message, h.opts.ShopBuffer)
	sub := h.hub.SubscribeShop(shopID, subscriberKey(r), func(m application.Message) {
		select {
		case events <- m:
		default:
			h.log.Warn("shop stream backlog full, event dropped", "shop_id", shopID, "order_id", m.Event.OrderID)
		}
	})
	defer sub.Unsubscribe()

	stream := openStream(w)
	var seq uint64
	send := func(name string, v any) error {
		seq++
		return stream.event(name, seq, v)
	}

	if err := send("queue", queueSnapshot{Orders: nonNil(queue)}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.opts.Heartbeat)
	defer heartbeat.Stop()
	refresh := time.NewTicker(h.opts.QueueRefresh)
	defer refresh.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-events:
			if err := send("status", m); err != nil {
				return
			}
		case <-refresh.C:
			queue, err := h.orders.ListShopOrders(ctx, actor, shopID, orderapp.Filter{})
			if err != nil {
				h.log.Warn("queue refresh failed", "shop_id", shopID, "err", err)
				continue
			}
			if err := send("queue", queueSnapshot{Orders: nonNil(queue)}); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := stream.ping(); err != nil {
				return
			}
		}
	}
}

// subscriberKey lets a reconnecting client replace its previous registration.
func subscriberKey(r *http.Request) string {
	if id := r.URL.Query().Get("clientId"); id != "" {
		return "sse:" + id
	}
	return "sse:" + uuid.NewString()
}

func nonNil(orders []order.Order) []order.Order {
	if orders == nil {
		return []order.Order{}
	}
	return orders
}

type eventStream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func openStream(w http.ResponseWriter) *eventStream {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &eventStream{w: w, rc: http.NewResponseController(w)}
	_ = s.rc.Flush()
	return s
}

func (s *eventStream) event(name string, id uint64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", id, name, data); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *eventStream) ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}
