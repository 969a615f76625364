package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/qr-order-flow/internal/catalog/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Lookup returns the active items of shopID among itemIDs, keyed by id.
// Unknown or inactive ids are simply absent from the result.
func (r *Repository) Lookup(ctx context.Context, shopID string, itemIDs []string) (map[string]domain.MenuItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, shop_id, name, price::text, state
		FROM menu_items
		WHERE shop_id = $1 AND id = ANY($2) AND state = 'active'`, shopID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("query menu items: %w", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}

	out := make(map[string]domain.MenuItem, len(items))
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

// Menu lists the shop's items, optionally only those in state. A shop with no
// items at all is ErrShopNotFound; a shop with none in state gets an empty list.
func (r *Repository) Menu(ctx context.Context, shopID string, state domain.ItemState) ([]domain.MenuItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, shop_id, name, price::text, state
		FROM menu_items
		WHERE shop_id = $1 AND ($2 = '' OR state = $2)
		ORDER BY name, id`, shopID, string(state))
	if err != nil {
		return nil, fmt.Errorf("query menu: %w", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		return items, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM menu_items WHERE shop_id = $1)`, shopID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check shop menu: %w", err)
	}
	if !exists {
		return nil, domain.ErrShopNotFound
	}
	return []domain.MenuItem{}, nil
}

// Upsert writes item. An id already owned by another shop is left untouched
// and reported as ErrItemNotFound.
func (r *Repository) Upsert(ctx context.Context, item domain.MenuItem) error {
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO menu_items (id, shop_id, name, price, state)
		VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (id) DO UPDATE SET name = $3, price = $4::numeric, state = $5
		WHERE menu_items.shop_id = EXCLUDED.shop_id`,
		item.ID, item.ShopID, item.Name, item.Price.String(), string(item.State))
	if err != nil {
		return fmt.Errorf("upsert menu item %s: %w", item.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// Update rewrites an existing item of the shop.
func (r *Repository) Update(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error) {
	return r.one(ctx, `
		UPDATE menu_items SET name = $3, price = $4::numeric, state = $5
		WHERE id = $1 AND shop_id = $2
		RETURNING id, shop_id, name, price::text, state`,
		item.ID, item.ShopID, item.Name, item.Price.String(), string(item.State))
}

// Deactivate takes an item off the menu. Past orders keep their line snapshots.
func (r *Repository) Deactivate(ctx context.Context, shopID, itemID string) (domain.MenuItem, error) {
	return r.one(ctx, `
		UPDATE menu_items SET state = 'inactive'
		WHERE id = $1 AND shop_id = $2
		RETURNING id, shop_id, name, price::text, state`,
		itemID, shopID)
}

func (r *Repository) one(ctx context.Context, sql string, args ...any) (domain.MenuItem, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("write menu item: %w", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return domain.MenuItem{}, err
	}
	if len(items) == 0 {
		return domain.MenuItem{}, domain.ErrItemNotFound
	}
	return items[0], nil
}

func collectItems(rows pgx.Rows) ([]domain.MenuItem, error) {
	defer rows.Close()

	var items []domain.MenuItem
	for rows.Next() {
		var (
			it    domain.MenuItem
			price string
			state string
		)
		if err := rows.Scan(&it.ID, &it.ShopID, &it.Name, &price, &state); err != nil {
			return nil, err
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse price of %s: %w", it.ID, err)
		}
		it.Price = p
		it.State = domain.ItemState(state)
		items = append(items, it)
	}
	return items, rows.Err()
}
