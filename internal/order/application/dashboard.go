package application

import (
	"context"
	"fmt"
	"time"

	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	"github.com/dmehra2102/qr-order-flow/internal/order/domain"
	"github.com/shopspring/decimal"
)

const topItemsLimit = 10

// SalesReader aggregates paid orders of a shop placed at or after since.
type SalesReader interface {
	TopItems(ctx context.Context, shopID string, since time.Time, limit int) ([]domain.ItemSales, error)
	RevenueByHour(ctx context.Context, shopID string, since time.Time) ([]domain.HourlyRevenue, error)
}

type TopItemsReport struct {
	ShopID          string             `json:"shopId"`
	Period          domain.Period      `json:"period"`
	Since           time.Time          `json:"since"`
	TopSellingItems []domain.ItemSales `json:"topSellingItems"`
	TotalRevenue    decimal.Decimal    `json:"totalRevenue"`
}

// Dashboard serves a shop's sales figures. Only paid orders count.
type Dashboard struct {
	sales SalesReader
	now   func() time.Time
}

func NewDashboard(sales SalesReader) *Dashboard {
	return &Dashboard{sales: sales, now: time.Now}
}

func (d *Dashboard) TopItems(ctx context.Context, actor identity.Actor, shopID string, p domain.Period) (TopItemsReport, error) {
	since, err := d.window(actor, shopID, p)
	if err != nil {
		return TopItemsReport{}, err
	}
	if p == "" {
		p = domain.DefaultPeriod
	}
	items, err := d.sales.TopItems(ctx, shopID, since, topItemsLimit)
	if err != nil {
		return TopItemsReport{}, err
	}

	report := TopItemsReport{ShopID: shopID, Period: p, Since: since, TopSellingItems: items, TotalRevenue: decimal.Zero}
	if report.TopSellingItems == nil {
		report.TopSellingItems = []domain.ItemSales{}
	}
	for _, it := range items {
		report.TotalRevenue = report.TotalRevenue.Add(it.TotalRevenue)
	}
	return report, nil
}

// RevenueByHour always returns 24 buckets, hours without sales included.
func (d *Dashboard) RevenueByHour(ctx context.Context, actor identity.Actor, shopID string, p domain.Period) ([]domain.HourlyRevenue, error) {
	since, err := d.window(actor, shopID, p)
	if err != nil {
		return nil, err
	}
	rows, err := d.sales.RevenueByHour(ctx, shopID, since)
	if err != nil {
		return nil, err
	}

	out := make([]domain.HourlyRevenue, 24)
	for h := range out {
		out[h] = domain.HourlyRevenue{Hour: h, Revenue: decimal.Zero}
	}
	for _, r := range rows {
		if r.Hour >= 0 && r.Hour < 24 {
			out[r.Hour] = r
		}
	}
	return out, nil
}

func (d *Dashboard) window(actor identity.Actor, shopID string, p domain.Period) (time.Time, error) {
	if err := actor.Require(identity.RoleShop, identity.RoleAdmin); err != nil {
		return time.Time{}, err
	}
	if !actor.CanActForShop(shopID) {
		return time.Time{}, identity.ErrForbidden
	}
	if p == "" {
		p = domain.DefaultPeriod
	}
	since, err := p.Since(d.now().UTC())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", err, p)
	}
	return since, nil
}
