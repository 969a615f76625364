package http

import (
	"context"
	"log/slog"
	"net/http"

	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	authhttp "github.com/dmehra2102/qr-order-flow/internal/identity/infrastructure/http"
	"github.com/dmehra2102/qr-order-flow/internal/order/application"
	"github.com/dmehra2102/qr-order-flow/internal/order/domain"
	"github.com/dmehra2102/qr-order-flow/pkg/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type DashboardService interface {
	TopItems(ctx context.Context, actor identity.Actor, shopID string, p domain.Period) (application.TopItemsReport, error)
	RevenueByHour(ctx context.Context, actor identity.Actor, shopID string, p domain.Period) ([]domain.HourlyRevenue, error)
}

type DashboardHandler struct {
	log     *slog.Logger
	service DashboardService
}

func NewDashboardHandler(log *slog.Logger, service DashboardService) *DashboardHandler {
	return &DashboardHandler{log: log, service: service}
}

var dashboardErrors = []httpx.Mapping{
	{Err: domain.ErrInvalidPeriod, Status: http.StatusBadRequest},
}

// MountShop registers the sales routes on a router scoped to /shops/{shopID}.
func (h *DashboardHandler) MountShop(r chi.Router) {
	r.Get("/dashboard/top-items", h.topItems)
	r.Get("/dashboard/revenue-by-hour", h.revenueByHour)
}

func (h *DashboardHandler) topItems(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.TopItems(r.Context(), authhttp.ActorFrom(r.Context()),
		chi.URLParam(r, "shopID"), domain.Period(r.URL.Query().Get("period")))
	if err != nil {
		httpx.WriteError(w, r, h.log, err, dashboardErrors...)
		return
	}
	render.JSON(w, r, report)
}

func (h *DashboardHandler) revenueByHour(w http.ResponseWriter, r *http.Request) {
	hours, err := h.service.RevenueByHour(r.Context(), authhttp.ActorFrom(r.Context()),
		chi.URLParam(r, "shopID"), domain.Period(r.URL.Query().Get("period")))
	if err != nil {
		httpx.WriteError(w, r, h.log, err, dashboardErrors...)
		return
	}
	render.JSON(w, r, hours)
}
