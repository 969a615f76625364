package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmehra2102/qr-order-flow/internal/cart/application"
	"github.com/dmehra2102/qr-order-flow/internal/cart/domain"
	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	authhttp "github.com/dmehra2102/qr-order-flow/internal/identity/infrastructure/http"
	"github.com/dmehra2102/qr-order-flow/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type CartService interface {
	View(ctx context.Context, actor identity.Actor) (application.View, error)
	AddItem(ctx context.Context, actor identity.Actor, itemID string) (application.View, error)
	RemoveItem(ctx context.Context, actor identity.Actor, itemID string) (application.View, error)
	ClearItem(ctx context.Context, actor identity.Actor, itemID string) (application.View, error)
	Clear(ctx context.Context, actor identity.Actor) error
}

type Handler struct {
	log     *slog.Logger
	service CartService
}

func NewHandler(log *slog.Logger, service CartService) *Handler {
	return &Handler{log: log, service: service}
}

var errorMap = []httpx.Mapping{
	{Err: application.ErrUnknownItem, Status: http.StatusUnprocessableEntity},
	{Err: domain.ErrInvalidItem, Status: http.StatusBadRequest},
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.view)
	r.Delete("/", h.clear)
	r.Post("/items/{itemID}", h.itemAction(h.service.AddItem))
	r.Delete("/items/{itemID}", h.itemAction(h.service.RemoveItem))
	r.Delete("/items/{itemID}/all", h.itemAction(h.service.ClearItem))
	return r
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.View(r.Context(), authhttp.ActorFrom(r.Context()))
	if err != nil {
		httpx.WriteError(w, r, h.log, err, errorMap...)
		return
	}
	render.JSON(w, r, view)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), authhttp.ActorFrom(r.Context())); err != nil {
		httpx.WriteError(w, r, h.log, err, errorMap...)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type itemFunc func(ctx context.Context, actor identity.Actor, itemID string) (application.View, error)

func (h *Handler) itemAction(fn itemFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := fn(r.Context(), authhttp.ActorFrom(r.Context()), chi.URLParam(r, "itemID"))
		if err != nil {
			httpx.WriteError(w, r, h.log, err, errorMap...)
			return
		}
		render.JSON(w, r, view)
	}
}
