package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmehra2102/qr-order-flow/internal/catalog/application"
	"github.com/dmehra2102/qr-order-flow/internal/catalog/domain"
	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	authhttp "github.com/dmehra2102/qr-order-flow/internal/identity/infrastructure/http"
	"github.com/dmehra2102/qr-order-flow/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type MenuService interface {
	Menu(ctx context.Context, shopID string, state domain.ItemState) ([]domain.MenuItem, error)
	AddItem(ctx context.Context, actor identity.Actor, shopID string, in application.ItemInput) (domain.MenuItem, error)
	UpdateItem(ctx context.Context, actor identity.Actor, shopID, itemID string, in application.ItemInput) (domain.MenuItem, error)
	DeactivateItem(ctx context.Context, actor identity.Actor, shopID, itemID string) (domain.MenuItem, error)
}

type Handler struct {
	log     *slog.Logger
	service MenuService
}

func NewHandler(log *slog.Logger, service MenuService) *Handler {
	return &Handler{log: log, service: service}
}

var errorMap = []httpx.Mapping{
	{Err: domain.ErrShopNotFound, Status: http.StatusNotFound},
	{Err: domain.ErrItemNotFound, Status: http.StatusNotFound},
	{Err: domain.ErrInvalidItem, Status: http.StatusBadRequest},
}

type menuResp struct {
	ShopID string            `json:"shopId"`
	Items  []domain.MenuItem `json:"items"`
}

// Mount registers the menu routes on a router already scoped to /shops/{shopID}.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/menu", h.getMenu)
	r.Post("/menu", h.addItem)
	r.Put("/menu/{itemID}", h.updateItem)
	r.Delete("/menu/{itemID}", h.deactivateItem)
}

// getMenu lists active items unless itemState asks otherwise; "all" lists
// every item.
func (h *Handler) getMenu(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")

	state := domain.ItemState(r.URL.Query().Get("itemState"))
	switch state {
	case "":
		state = domain.ItemActive
	case "all":
		state = ""
	}

	items, err := h.service.Menu(r.Context(), shopID, state)
	if err != nil {
		httpx.WriteError(w, r, h.log, err, errorMap...)
		return
	}
	render.JSON(w, r, menuResp{ShopID: shopID, Items: items})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var in application.ItemInput
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		httpx.BadRequest(w, r, "invalid menu item body")
		return
	}
	item, err := h.service.AddItem(r.Context(), authhttp.ActorFrom(r.Context()), chi.URLParam(r, "shopID"), in)
	if err != nil {
		httpx.WriteError(w, r, h.log, err, errorMap...)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var in application.ItemInput
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		httpx.BadRequest(w, r, "invalid menu item body")
		return
	}
	item, err := h.service.UpdateItem(r.Context(), authhttp.ActorFrom(r.Context()),
		chi.URLParam(r, "shopID"), chi.URLParam(r, "itemID"), in)
	if err != nil {
		httpx.WriteError(w, r, h.log, err, errorMap...)
		return
	}
	render.JSON(w, r, item)
}

func (h *Handler) deactivateItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.DeactivateItem(r.Context(), authhttp.ActorFrom(r.Context()),
		chi.URLParam(r, "shopID"), chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.WriteError(w, r, h.log, err, errorMap...)
		return
	}
	render.JSON(w, r, item)
}
