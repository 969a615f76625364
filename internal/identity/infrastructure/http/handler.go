package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmehra2102/qr-order-flow/internal/identity/application"
	"github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	"github.com/dmehra2102/qr-order-flow/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type SlipOpener interface {
	OpenSlip(ctx context.Context, shopID, customerID string) (domain.Slip, error)
	CloseSession(ctx context.Context, actor domain.Actor) error
}

type Handler struct {
	log   *slog.Logger
	slips SlipOpener
}

func NewHandler(log *slog.Logger, slips SlipOpener) *Handler {
	return &Handler{log: log, slips: slips}
}

type openSlipReq struct {
	ShopID     string `json:"shopId"`
	CustomerID string `json:"customerId"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.openSlip)
	r.Delete("/current", h.closeSlip)
	return r
}

func (h *Handler) openSlip(w http.ResponseWriter, r *http.Request) {
	var req openSlipReq
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "invalid body"})
		return
	}

	slip, err := h.slips.OpenSlip(r.Context(), req.ShopID, req.CustomerID)
	if err != nil {
		if errors.Is(err, application.ErrInvalidSlipRequest) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}
		h.log.Error("open slip failed", "shop_id", req.ShopID, "err", err)
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]any{"error": "could not open slip", "retryable": true})
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, slip)
}

func (h *Handler) closeSlip(w http.ResponseWriter, r *http.Request) {
	if err := h.slips.CloseSession(r.Context(), ActorFrom(r.Context())); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
