package application

import (
	"context"
	"testing"
	"time"

	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	"github.com/dmehra2102/qr-order-flow/internal/order/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type salesStub struct {
	since time.Time
	limit int
	items []domain.ItemSales
	hours []domain.HourlyRevenue
}

func (s *salesStub) TopItems(_ context.Context, _ string, since time.Time, limit int) ([]domain.ItemSales, error) {
	s.since, s.limit = since, limit
	return s.items, nil
}

func (s *salesStub) RevenueByHour(_ context.Context, _ string, since time.Time) ([]domain.HourlyRevenue, error) {
	s.since = since
	return s.hours, nil
}

func fixedDashboard(sales SalesReader, now time.Time) *Dashboard {
	d := NewDashboard(sales)
	d.now = func() time.Time { return now }
	return d
}

func TestDashboard_TopItems(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	sales := &salesStub{items: []domain.ItemSales{
		{ItemID: "a", Name: "Dosa", QuantitySold: 5, TotalRevenue: decimal.NewFromInt(250)},
		{ItemID: "b", Name: "Thali", QuantitySold: 2, TotalRevenue: decimal.NewFromInt(200)},
	}}
	d := fixedDashboard(sales, now)

	report, err := d.TopItems(context.Background(), shop, "shop-1", "30d")
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -30), sales.since)
	assert.Equal(t, topItemsLimit, sales.limit)
	assert.Equal(t, "450", report.TotalRevenue.String())
	assert.Len(t, report.TopSellingItems, 2)

	report, err = d.TopItems(context.Background(), shop, "shop-1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPeriod, report.Period)
	assert.Equal(t, now.AddDate(0, 0, -7), sales.since)
}

func TestDashboard_RevenueByHourFillsEveryHour(t *testing.T) {
	sales := &salesStub{hours: []domain.HourlyRevenue{
		{Hour: 9, Revenue: decimal.NewFromInt(300), Orders: 3},
		{Hour: 20, Revenue: decimal.NewFromInt(120), Orders: 1},
	}}
	d := fixedDashboard(sales, time.Now())

	hours, err := d.RevenueByHour(context.Background(), shop, "shop-1", "7d")
	require.NoError(t, err)
	require.Len(t, hours, 24)
	assert.Equal(t, int64(3), hours[9].Orders)
	assert.Equal(t, "120", hours[20].Revenue.String())
	assert.True(t, hours[0].Revenue.IsZero())
	assert.Equal(t, 13, hours[13].Hour)
}

func TestDashboard_Rejections(t *testing.T) {
	d := fixedDashboard(&salesStub{}, time.Now())
	ctx := context.Background()

	_, err := d.TopItems(ctx, customer, "shop-1", "7d")
	assert.ErrorIs(t, err, identity.ErrForbidden)

	_, err = d.TopItems(ctx, other, "shop-1", "7d")
	assert.ErrorIs(t, err, identity.ErrForbidden)

	_, err = d.RevenueByHour(ctx, identity.Actor{}, "shop-1", "7d")
	assert.ErrorIs(t, err, identity.ErrUnauthenticated)

	_, err = d.RevenueByHour(ctx, shop, "shop-1", "2w")
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}
