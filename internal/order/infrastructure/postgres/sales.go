package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dmehra2102/qr-order-flow/internal/order/domain"
	"github.com/shopspring/decimal"
)

// TopItems ranks the shop's items by quantity sold in paid orders.
func (r *Repository) TopItems(ctx context.Context, shopID string, since time.Time, limit int) ([]domain.ItemSales, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.item_id, MAX(l.name), SUM(l.quantity)::bigint, SUM(l.unit_price * l.quantity)::text
		FROM order_lines l
		JOIN orders o ON o.id = l.order_id
		WHERE o.shop_id = $1 AND o.payment_status = 'paid' AND o.created_at >= $2
		GROUP BY l.item_id
		ORDER BY 3 DESC, SUM(l.unit_price * l.quantity) DESC, l.item_id
		LIMIT $3`, shopID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query top items: %w", err)
	}
	defer rows.Close()

	var out []domain.ItemSales
	for rows.Next() {
		var (
			s       domain.ItemSales
			revenue string
		)
		if err := rows.Scan(&s.ItemID, &s.Name, &s.QuantitySold, &revenue); err != nil {
			return nil, fmt.Errorf("scan top item: %w", err)
		}
		if s.TotalRevenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("parse revenue of %s: %w", s.ItemID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RevenueByHour groups paid orders by the UTC hour they were placed in.
// Hours without orders are absent.
func (r *Repository) RevenueByHour(ctx context.Context, shopID string, since time.Time) ([]domain.HourlyRevenue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT EXTRACT(HOUR FROM created_at AT TIME ZONE 'UTC')::int AS hour,
		       SUM(total_amount)::text, COUNT(*)
		FROM orders
		WHERE shop_id = $1 AND payment_status = 'paid' AND created_at >= $2
		GROUP BY hour
		ORDER BY hour`, shopID, since)
	if err != nil {
		return nil, fmt.Errorf("query revenue by hour: %w", err)
	}
	defer rows.Close()

	var out []domain.HourlyRevenue
	for rows.Next() {
		var (
			h       domain.HourlyRevenue
			revenue string
		)
		if err := rows.Scan(&h.Hour, &revenue, &h.Orders); err != nil {
			return nil, fmt.Errorf("scan hourly revenue: %w", err)
		}
		if h.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("parse hourly revenue: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
